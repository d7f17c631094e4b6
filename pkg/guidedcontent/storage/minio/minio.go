package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint  string // host:port, an http:// or https:// prefix is stripped
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string // Defaults to us-east-1; set so presigning needs no lookup

	// PublicBaseURL overrides the URL objects are served under.
	PublicBaseURL string
}

// Backend is a MinIO implementation of the guidedcontent.BlobStore interface
type Backend struct {
	cfg        Config
	client     *minio.Client
	publicBase string
}

// New creates a new MinIO storage backend. No request is made until the
// first operation; call EnsureBucket to create and publish the bucket.
func New(cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")

	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	return &Backend{cfg: cfg, client: cl, publicBase: base}, nil
}

// ReadOnlyPolicy returns a bucket policy granting anonymous GetObject.
func ReadOnlyPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// EnsureBucket creates the bucket if needed and makes its objects
// anonymously readable.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := b.client.MakeBucket(ctx, b.cfg.Bucket, minio.MakeBucketOptions{Region: b.cfg.Region}); err != nil {
			return err
		}
	}
	return b.client.SetBucketPolicy(ctx, b.cfg.Bucket, ReadOnlyPolicy(b.cfg.Bucket))
}

// Write uploads the content of r
func (b *Backend) Write(ctx context.Context, key string, r io.Reader, mimeType string) (*guidedcontent.BlobHandle, error) {
	info, err := b.client.PutObject(ctx, b.cfg.Bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to minio: %w", err)
	}
	return &guidedcontent.BlobHandle{Key: key, MimeType: mimeType, Size: info.Size}, nil
}

// MakePublic checks the object exists. Read access itself comes from the
// bucket policy set by EnsureBucket.
func (b *Backend) MakePublic(ctx context.Context, h *guidedcontent.BlobHandle) error {
	_, err := b.client.StatObject(ctx, b.cfg.Bucket, h.Key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("object %s: %w", h.Key, guidedcontent.ErrNotFound)
		}
		return fmt.Errorf("failed to stat object: %w", err)
	}
	return nil
}

// PublicURL returns the anonymous URL of the object
func (b *Backend) PublicURL(h *guidedcontent.BlobHandle) string {
	segments := strings.Split(h.Key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return b.publicBase + "/" + strings.Join(segments, "/")
}

// KeyFor returns the object key addressed by one of this backend's public URLs.
func (b *Backend) KeyFor(publicURL string) (string, error) {
	rest, ok := strings.CutPrefix(publicURL, b.publicBase+"/")
	if !ok || rest == "" {
		return "", fmt.Errorf("%s: %w", publicURL, guidedcontent.ErrForeignURL)
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("%s: %w", publicURL, guidedcontent.ErrForeignURL)
	}
	return key, nil
}

// Delete removes the object addressed by publicURL
func (b *Backend) Delete(ctx context.Context, publicURL string) error {
	key, err := b.KeyFor(publicURL)
	if err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, b.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

// PresignUpload returns a presigned PUT URL for key.
func (b *Backend) PresignUpload(ctx context.Context, key, mimeType string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedPutObject(ctx, b.cfg.Bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}
	return u.String(), nil
}
