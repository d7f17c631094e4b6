package guidedcontent

import (
	"context"
)

// Service defines the main interface for the guided-content library
type Service interface {
	// Content kind operations
	ListKinds() []ContentKind

	// Category operations
	ListCategories(ctx context.Context, kind string) ([]*Category, error)
	CreateCategory(ctx context.Context, kind string, fields map[string]any) (*Category, error)
	UpdateCategory(ctx context.Context, id string, fields map[string]any) (*Category, error)
	DeleteCategory(ctx context.Context, id string) (*DeleteResult, error)

	// Content operations
	ListContent(ctx context.Context, kind string) ([]*ContentItem, error)
	ListContentByCategory(ctx context.Context, kind, categoryID string) ([]*ContentItem, error)
	GetContent(ctx context.Context, kind, id string) (*ContentItem, error)
	CreateContent(ctx context.Context, req CreateContentRequest) (*ContentItem, error)
	UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentItem, error)
	DeleteContent(ctx context.Context, kind, id string) (*DeleteResult, error)

	// Direct upload operations
	PrepareUpload(ctx context.Context, req PrepareUploadRequest) (*UploadTicket, error)
}

// CreateContentRequest contains parameters for creating a content item.
// Fields carries categoryId, isPublished, isPremium and any free-form
// attributes; Media selects the ingestion mode.
type CreateContentRequest struct {
	Kind   string
	Fields map[string]any
	Media  *MediaRequest
}

// UpdateContentRequest contains parameters for updating a content item.
// A nil or empty Media leaves the stored media untouched.
type UpdateContentRequest struct {
	Kind  string
	ID    string
	Patch map[string]any
	Media *MediaRequest
}

// PrepareUploadRequest contains parameters for a direct upload.
type PrepareUploadRequest struct {
	Kind     string
	FileName string
	MimeType string
	Size     int64
}
