package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Backend is a filesystem implementation of the guidedcontent.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL the base directory is served under, e.g. http://localhost:8080/media
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	// Validate and create base directory if it doesn't exist
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.URLPrefix == "" {
		return nil, errors.New("url prefix is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   filepath.Clean(config.BaseDir),
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

// pathFor maps a key to a file below baseDir, refusing keys that escape it.
func (b *Backend) pathFor(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(clean)), nil
}

// Write writes the content of r to the file for key
func (b *Backend) Write(ctx context.Context, key string, r io.Reader, mimeType string) (*guidedcontent.BlobHandle, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}

	// Create directory structure if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &guidedcontent.BlobHandle{Key: key, MimeType: mimeType, Size: n}, nil
}

// MakePublic makes the file world-readable
func (b *Backend) MakePublic(ctx context.Context, h *guidedcontent.BlobHandle) error {
	filePath, err := b.pathFor(h.Key)
	if err != nil {
		return err
	}
	if err := os.Chmod(filePath, 0644); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", h.Key, guidedcontent.ErrNotFound)
		}
		return fmt.Errorf("failed to change file mode: %w", err)
	}
	return nil
}

// PublicURL returns the URL the file is served under
func (b *Backend) PublicURL(h *guidedcontent.BlobHandle) string {
	return b.urlPrefix + "/" + h.Key
}

// KeyFor returns the object key addressed by url
func (b *Backend) KeyFor(url string) (string, error) {
	key, ok := strings.CutPrefix(url, b.urlPrefix+"/")
	if !ok {
		return "", fmt.Errorf("%s: %w", url, guidedcontent.ErrForeignURL)
	}
	if _, err := b.pathFor(key); err != nil {
		return "", fmt.Errorf("%s: %w", url, guidedcontent.ErrForeignURL)
	}
	return key, nil
}

// Delete deletes the file addressed by url
func (b *Backend) Delete(ctx context.Context, url string) error {
	key, err := b.KeyFor(url)
	if err != nil {
		return err
	}
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Clean up empty directories
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Open opens the file for key for serving. The second result is its
// content type, guessed from the extension and then from the content.
func (b *Backend) Open(key string) (io.ReadCloser, string, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, "", fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
	}
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, "", fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		buffer := make([]byte, 512)
		n, _ := file.Read(buffer)
		contentType = http.DetectContentType(buffer[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, "", fmt.Errorf("failed to rewind file: %w", err)
		}
	}
	return file, contentType, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	// Don't remove the base directory
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	// Check if directory is empty
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
