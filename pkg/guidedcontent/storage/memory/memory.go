package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// DefaultBaseURL prefixes the public URLs of a Backend created with New.
const DefaultBaseURL = "memory://blobs/"

type object struct {
	data     []byte
	mimeType string
	public   bool
}

// Backend is an in-memory implementation of the guidedcontent.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]*object
	writes  int
	deletes int
}

// New creates a new in-memory storage backend
func New() *Backend {
	return NewWithBaseURL(DefaultBaseURL)
}

// NewWithBaseURL creates a backend whose public URLs start with baseURL.
func NewWithBaseURL(baseURL string) *Backend {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Backend{
		baseURL: baseURL,
		objects: make(map[string]*object),
	}
}

// Write stores the content of r under key
func (b *Backend) Write(ctx context.Context, key string, r io.Reader, mimeType string) (*guidedcontent.BlobHandle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.objects[key] = &object{data: data, mimeType: mimeType}
	b.writes++
	return &guidedcontent.BlobHandle{Key: key, MimeType: mimeType, Size: int64(len(data))}, nil
}

// MakePublic marks the object as public
func (b *Backend) MakePublic(ctx context.Context, h *guidedcontent.BlobHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[h.Key]
	if !exists {
		return fmt.Errorf("object %s: %w", h.Key, guidedcontent.ErrNotFound)
	}
	obj.public = true
	return nil
}

// PublicURL returns the URL of the object
func (b *Backend) PublicURL(h *guidedcontent.BlobHandle) string {
	return b.baseURL + h.Key
}

// KeyFor returns the object key addressed by url
func (b *Backend) KeyFor(url string) (string, error) {
	key, ok := strings.CutPrefix(url, b.baseURL)
	if !ok || key == "" {
		return "", fmt.Errorf("%s: %w", url, guidedcontent.ErrForeignURL)
	}
	return key, nil
}

// Delete deletes the object addressed by url
func (b *Backend) Delete(ctx context.Context, url string) error {
	key, err := b.KeyFor(url)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
	}
	delete(b.objects, key)
	b.deletes++
	return nil
}

// Open returns the content of a public object, for serving over HTTP.
func (b *Backend) Open(key string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists || !obj.public {
		return nil, "", fmt.Errorf("object %s: %w", key, guidedcontent.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.mimeType, nil
}

// Keys returns the stored keys in sorted order.
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsPublic reports whether key exists and was made public.
func (b *Backend) IsPublic(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	return exists && obj.public
}

// Writes returns the number of successful writes.
func (b *Backend) Writes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writes
}

// Deletes returns the number of successful deletes.
func (b *Backend) Deletes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.deletes
}
