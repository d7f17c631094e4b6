package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

const (
	defaultMaxMemory    = 32 << 20
	defaultMaxJSONBytes = 1 << 20
)

// Handler serves the content service over HTTP.
type Handler struct {
	service   guidedcontent.Service
	logger    *slog.Logger
	adminAuth func(http.Handler) http.Handler
	maxMemory int64
	maxJSON   int64
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAdminAuth guards every mutating route with mw.
func WithAdminAuth(mw func(http.Handler) http.Handler) HandlerOption {
	return func(h *Handler) {
		h.adminAuth = mw
	}
}

// WithMaxMemory sets how much of a multipart body is held in memory
// before spilling file parts to disk.
func WithMaxMemory(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxMemory = n
		}
	}
}

// WithMaxJSONBytes caps the size of JSON request bodies.
func WithMaxJSONBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxJSON = n
		}
	}
}

// NewHandler creates a new content handler
func NewHandler(service guidedcontent.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:   service,
		logger:    slog.Default(),
		maxMemory: defaultMaxMemory,
		maxJSON:   defaultMaxJSONBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/content-kinds", h.ListKinds)

	r.Route("/{kind}", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)
		r.Get("/", h.ListContent)
		r.Get("/category/{categoryId}", h.ListContentByCategory)
		r.Get("/{id}", h.GetContent)

		r.Group(func(r chi.Router) {
			if h.adminAuth != nil {
				r.Use(h.adminAuth)
			}
			r.Post("/categories", h.CreateCategory)
			r.Put("/categories/{id}", h.UpdateCategory)
			r.Delete("/categories/{id}", h.DeleteCategory)

			r.Post("/", h.CreateContent)
			r.Put("/{id}", h.UpdateContent)
			r.Delete("/{id}", h.DeleteContent)
			r.Post("/uploads", h.PrepareUpload)
		})
	})

	return r
}

// DeleteResponse is the response body of delete operations
type DeleteResponse struct {
	Message        string   `json:"message"`
	ID             string   `json:"id"`
	FailedCleanups []string `json:"failedCleanups,omitempty"`
}

// PrepareUploadBody is the request body for a direct upload
type PrepareUploadBody struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// ListKinds returns the configured content kinds
func (h *Handler) ListKinds(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.ListKinds())
}

// ListCategories returns the categories of a kind with fresh item counts
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	categories, err := h.service.ListCategories(r.Context(), kind)
	if err != nil {
		h.writeError(w, r, "Failed to list categories", err, "kind", kind)
		return
	}
	render.JSON(w, r, nonNil(categories))
}

// CreateCategory creates a category under a kind
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	fields, err := h.decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode request", err, "kind", kind)
		return
	}
	category, err := h.service.CreateCategory(r.Context(), kind, fields)
	if err != nil {
		h.writeError(w, r, "Failed to create category", err, "kind", kind)
		return
	}
	h.logger.InfoContext(r.Context(), "Category created", "kind", kind, "category_id", category.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, category)
}

// UpdateCategory applies a partial update to a category
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := h.decodeObject(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode request", err, "category_id", id)
		return
	}
	category, err := h.service.UpdateCategory(r.Context(), id, fields)
	if err != nil {
		h.writeError(w, r, "Failed to update category", err, "category_id", id)
		return
	}
	render.JSON(w, r, category)
}

// DeleteCategory deletes a category
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.DeleteCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to delete category", err, "category_id", id)
		return
	}
	render.JSON(w, r, DeleteResponse{Message: "Category deleted successfully", ID: result.ID})
}

// ListContent returns all content items of a kind
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	items, err := h.service.ListContent(r.Context(), kind)
	if err != nil {
		h.writeError(w, r, "Failed to list content", err, "kind", kind)
		return
	}
	render.JSON(w, r, nonNil(items))
}

// ListContentByCategory returns the content items of a kind in one category
func (h *Handler) ListContentByCategory(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	categoryID := chi.URLParam(r, "categoryId")
	items, err := h.service.ListContentByCategory(r.Context(), kind, categoryID)
	if err != nil {
		h.writeError(w, r, "Failed to list content", err, "kind", kind, "category_id", categoryID)
		return
	}
	render.JSON(w, r, nonNil(items))
}

// GetContent returns one content item
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")
	item, err := h.service.GetContent(r.Context(), kind, id)
	if err != nil {
		h.writeError(w, r, "Failed to get content", err, "kind", kind, "content_id", id)
		return
	}
	render.JSON(w, r, item)
}

// CreateContent creates a content item from a JSON or multipart body
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	body, err := h.decodeMutation(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode request", err, "kind", kind)
		return
	}
	defer body.Close()

	item, err := h.service.CreateContent(r.Context(), guidedcontent.CreateContentRequest{
		Kind:   kind,
		Fields: body.Fields,
		Media:  body.Media,
	})
	if err != nil {
		h.writeError(w, r, "Failed to create content", err, "kind", kind)
		return
	}
	h.logger.InfoContext(r.Context(), "Content created", "kind", kind, "content_id", item.ID, "media", len(item.Media))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// UpdateContent applies a partial update and media reconciliation
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")
	body, err := h.decodeMutation(w, r)
	if err != nil {
		h.writeError(w, r, "Failed to decode request", err, "kind", kind, "content_id", id)
		return
	}
	defer body.Close()

	item, err := h.service.UpdateContent(r.Context(), guidedcontent.UpdateContentRequest{
		Kind:  kind,
		ID:    id,
		Patch: body.Fields,
		Media: body.Media,
	})
	if err != nil {
		h.writeError(w, r, "Failed to update content", err, "kind", kind, "content_id", id)
		return
	}
	render.JSON(w, r, item)
}

// DeleteContent deletes a content item and its blobs
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id := chi.URLParam(r, "id")
	result, err := h.service.DeleteContent(r.Context(), kind, id)
	if err != nil {
		h.writeError(w, r, "Failed to delete content", err, "kind", kind, "content_id", id)
		return
	}
	if len(result.FailedCleanups) > 0 {
		h.logger.WarnContext(r.Context(), "Content deleted with leftover blobs", "kind", kind, "content_id", id, "failed", len(result.FailedCleanups))
	}
	render.JSON(w, r, DeleteResponse{
		Message:        "Content item deleted successfully",
		ID:             result.ID,
		FailedCleanups: result.FailedCleanups,
	})
}

// PrepareUpload returns a presigned URL for an out-of-band upload
func (h *Handler) PrepareUpload(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	var body PrepareUploadBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, "Failed to decode request", badRequest(err), "kind", kind)
		return
	}
	ticket, err := h.service.PrepareUpload(r.Context(), guidedcontent.PrepareUploadRequest{
		Kind:     kind,
		FileName: body.FileName,
		MimeType: body.MimeType,
		Size:     body.Size,
	})
	if err != nil {
		h.writeError(w, r, "Failed to prepare upload", err, "kind", kind)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ticket)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
