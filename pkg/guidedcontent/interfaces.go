package guidedcontent

import (
	"context"
	"io"
	"time"
)

// BlobHandle identifies an object written to a BlobStore.
type BlobHandle struct {
	Key      string
	MimeType string
	Size     int64
}

// BlobStore defines the interface for binary object storage backends
type BlobStore interface {
	// Write stores the bytes from r under key
	Write(ctx context.Context, key string, r io.Reader, mimeType string) (*BlobHandle, error)

	// MakePublic marks the object as publicly retrievable
	MakePublic(ctx context.Context, h *BlobHandle) error

	// PublicURL returns the stable public URL of the object
	PublicURL(h *BlobHandle) string

	// Delete deletes the object addressed by one of this store's public URLs.
	// URLs that do not belong to the store fail with ErrForeignURL.
	Delete(ctx context.Context, url string) error
}

// KeyResolver is implemented by blob stores that can map one of their
// public URLs back to its object key. URLs that do not belong to the store
// fail with ErrForeignURL.
type KeyResolver interface {
	KeyFor(url string) (string, error)
}

// UploadSigner is implemented by blob stores that can hand out presigned
// upload URLs for clients that write bytes out-of-band.
type UploadSigner interface {
	PresignUpload(ctx context.Context, key, mimeType string, ttl time.Duration) (string, error)
}

// Document is a schemaless record. The "id" key is owned by the store.
type Document map[string]any

// Filter selects documents whose top-level fields equal the given values.
type Filter map[string]any

// DocumentStore defines the interface for schemaless metadata persistence.
// Get, Update and Delete fail with ErrNotFound for unknown ids.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Add(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
}

// Repository is typed CRUD over content items and categories.
type Repository interface {
	CreateContent(ctx context.Context, item *ContentItem) (*ContentItem, error)
	GetContent(ctx context.Context, id string) (*ContentItem, error)
	UpdateContent(ctx context.Context, id string, patch map[string]any) (*ContentItem, error)
	DeleteContent(ctx context.Context, id string) error
	ListByKind(ctx context.Context, contentType string) ([]*ContentItem, error)
	ListByKindAndCategory(ctx context.Context, contentType, categoryID string) ([]*ContentItem, error)

	CreateCategory(ctx context.Context, category *Category) (*Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	UpdateCategory(ctx context.Context, id string, patch map[string]any) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListCategories(ctx context.Context, contentType string) ([]*Category, error)
}

// EventSink receives lifecycle notifications. Errors are logged by the
// service and never fail the operation that fired the event.
type EventSink interface {
	// ContentCreated is fired when content is created
	ContentCreated(ctx context.Context, item *ContentItem) error

	// ContentUpdated is fired when content is updated
	ContentUpdated(ctx context.Context, item *ContentItem) error

	// ContentDeleted is fired when content is deleted
	ContentDeleted(ctx context.Context, kind, id string) error

	// BlobUploaded is fired after a raw file is written and made public
	BlobUploaded(ctx context.Context, kind string, h *BlobHandle, url string) error

	// BlobDeleted is fired after a backing object is deleted
	BlobDeleted(ctx context.Context, kind, url string) error

	// BlobCleanupFailed is fired when a best-effort deletion fails
	BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error
}
