package guidedcontent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/guided-content/pkg/guidedcontent/objectkey"
)

const defaultUploadTTL = 15 * time.Minute

// Keys a client may never set directly on a content item.
var reservedContentFields = []string{"id", "contentType", "createdAt", "updatedAt", "media"}

// Keys a client may never set directly on a category.
var reservedCategoryFields = []string{"id", "contentType", "createdAt", "updatedAt", "itemCount"}

// service implements the Service interface
type service struct {
	registry   *Registry
	repository Repository
	docStore   DocumentStore
	blobStore  BlobStore
	eventSink  EventSink
	logger     *slog.Logger
	keys       objectkey.Generator
	now        func() time.Time
	uploadTTL  time.Duration

	contentCollection  string
	categoryCollection string

	ingest     *IngestionResolver
	reconciler *Reconciler
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRegistry sets the content kind registry. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(s *service) {
		s.registry = r
	}
}

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithDocumentStore builds a DocumentRepository over store. Ignored when
// WithRepository is also given.
func WithDocumentStore(store DocumentStore) Option {
	return func(s *service) {
		s.docStore = store
	}
}

// WithCollections overrides the collection names used with WithDocumentStore.
func WithCollections(contents, categories string) Option {
	return func(s *service) {
		s.contentCollection = contents
		s.categoryCollection = categories
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithKeyGenerator sets the blob key generator
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithUploadTTL sets how long prepared upload URLs stay valid
func WithUploadTTL(ttl time.Duration) Option {
	return func(s *service) {
		s.uploadTTL = ttl
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		now:       time.Now,
		uploadTTL: defaultUploadTTL,
	}

	for _, option := range options {
		option(s)
	}

	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	if s.repository == nil && s.docStore != nil {
		s.repository = NewDocumentRepository(s.docStore,
			WithCollectionNames(s.contentCollection, s.categoryCollection),
			WithRepositoryClock(s.now))
	}
	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keys == nil {
		s.keys = &objectkey.TimestampGenerator{Now: s.now}
	}

	s.ingest = NewIngestionResolver(s.blobStore, s.keys, s.eventSink, s.logger)
	s.reconciler = NewReconciler(s.blobStore, s.ingest, s.eventSink, s.logger)
	return s, nil
}

func (s *service) ListKinds() []ContentKind {
	return s.registry.Kinds()
}

// Category operations

func (s *service) ListCategories(ctx context.Context, kind string) ([]*Category, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return s.repository.ListCategories(ctx, k.ID)
}

func (s *service) CreateCategory(ctx context.Context, kind string, fields map[string]any) (*Category, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	fields = withoutKeys(fields, reservedCategoryFields...)
	category := &Category{ContentType: k.ID}
	if v, ok := fields["name"]; ok {
		name, ok := v.(string)
		if !ok {
			return nil, rejectf("name must be a string")
		}
		category.Name = strings.TrimSpace(name)
		delete(fields, "name")
	}
	if len(fields) > 0 {
		category.Fields = fields
	}

	created, err := s.repository.CreateCategory(ctx, category)
	if err != nil {
		s.logger.Error("Failed to create category", "kind", k.ID, "error", err)
		return nil, err
	}
	return created, nil
}

func (s *service) UpdateCategory(ctx context.Context, id string, fields map[string]any) (*Category, error) {
	fields = withoutKeys(fields, reservedCategoryFields...)
	if v, ok := fields["name"]; ok {
		if _, ok := v.(string); !ok && v != nil {
			return nil, rejectf("name must be a string")
		}
	}
	updated, err := s.repository.UpdateCategory(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) DeleteCategory(ctx context.Context, id string) (*DeleteResult, error) {
	if err := s.repository.DeleteCategory(ctx, id); err != nil {
		return nil, err
	}
	return &DeleteResult{ID: id}, nil
}

// Content operations

func (s *service) ListContent(ctx context.Context, kind string) ([]*ContentItem, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return s.repository.ListByKind(ctx, k.ID)
}

func (s *service) ListContentByCategory(ctx context.Context, kind, categoryID string) ([]*ContentItem, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return s.repository.ListByKindAndCategory(ctx, k.ID, categoryID)
}

func (s *service) GetContent(ctx context.Context, kind, id string) (*ContentItem, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return s.getOwned(ctx, k, id)
}

func (s *service) CreateContent(ctx context.Context, req CreateContentRequest) (*ContentItem, error) {
	k, err := s.registry.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	fields, err := normalizeContentFields(req.Fields)
	if err != nil {
		return nil, err
	}
	item := &ContentItem{ContentType: k.ID}
	if err := applyContentFields(item, fields); err != nil {
		return nil, err
	}
	plan, err := s.ingest.Prepare(k, req.Media, 0)
	if err != nil {
		return nil, err
	}

	media, err := s.ingest.Execute(ctx, plan)
	if err != nil {
		s.logger.Error("Failed to ingest media", "kind", k.ID, "error", err)
		return nil, err
	}
	item.Media = media

	created, err := s.repository.CreateContent(ctx, item)
	if err != nil {
		s.logOrphans("create", k.ID, "", plan, media, err)
		return nil, &ContentError{Op: "create", Err: err}
	}

	if err := s.eventSink.ContentCreated(ctx, created); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_created", "content_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *service) UpdateContent(ctx context.Context, req UpdateContentRequest) (*ContentItem, error) {
	k, err := s.registry.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	patch, err := normalizeContentFields(req.Patch)
	if err != nil {
		return nil, err
	}
	if v, ok := patch["categoryId"]; ok && v != nil {
		if _, ok := v.(string); !ok {
			return nil, rejectf("categoryId must be a string")
		}
	}

	stored, err := s.getOwned(ctx, k, req.ID)
	if err != nil {
		return nil, err
	}

	var (
		rec   *Reconciliation
		final []MediaAttachment
	)
	if !req.Media.IsEmpty() {
		rec, err = s.reconciler.Plan(k, stored.Media, req.Media)
		if err != nil {
			return nil, err
		}
		final, err = s.reconciler.Apply(ctx, rec)
		if err != nil {
			s.logger.Error("Failed to ingest media", "kind", k.ID, "content_id", req.ID, "error", err)
			return nil, &ContentError{ContentID: req.ID, Op: "update", Err: err}
		}
		patch["media"] = final
	}

	updated, err := s.repository.UpdateContent(ctx, req.ID, patch)
	if err != nil {
		if rec != nil {
			s.logOrphans("update", k.ID, req.ID, rec.plan, final, err)
		}
		return nil, &ContentError{ContentID: req.ID, Op: "update", Err: err}
	}

	if rec != nil {
		s.reconciler.Cleanup(ctx, rec, final)
		if orphans := rec.Orphans(stored.Media, final); len(orphans) > 0 {
			s.logger.Warn("Media omitted without deletedIndices; blobs left in store",
				"kind", k.ID, "content_id", req.ID, "urls", orphans)
		}
	}

	if err := s.eventSink.ContentUpdated(ctx, updated); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_updated", "content_id", updated.ID, "error", err)
	}
	return updated, nil
}

func (s *service) DeleteContent(ctx context.Context, kind, id string) (*DeleteResult, error) {
	k, err := s.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	stored, err := s.getOwned(ctx, k, id)
	if err != nil {
		return nil, err
	}

	failed := s.reconciler.DeleteBlobs(ctx, k, stored.Media, nil)
	if len(failed) > 0 {
		s.logger.Warn("Deleting content with blobs left behind", "kind", k.ID, "content_id", id, "urls", failed)
	}

	if err := s.repository.DeleteContent(ctx, id); err != nil {
		return nil, &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	if err := s.eventSink.ContentDeleted(ctx, k.ID, id); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_deleted", "content_id", id, "error", err)
	}
	return &DeleteResult{ID: id, FailedCleanups: failed}, nil
}

// Direct upload operations

func (s *service) PrepareUpload(ctx context.Context, req PrepareUploadRequest) (*UploadTicket, error) {
	k, err := s.registry.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	if !k.AcceptsMedia(MediaKindAudio) {
		return nil, rejectf("content kind %q does not accept uploaded files", k.ID)
	}
	if !k.AcceptsMime(req.MimeType) {
		return nil, rejectf("type %q not allowed; allowed types: %s", req.MimeType, strings.Join(k.AcceptedMimePatterns, ", "))
	}
	if req.Size <= 0 || req.Size > k.MaxBytesPerFile {
		return nil, rejectf("size %d outside allowed range 1..%d bytes", req.Size, k.MaxBytesPerFile)
	}
	signer, ok := s.blobStore.(UploadSigner)
	if !ok {
		return nil, rejectf("direct upload not supported by blob store")
	}

	key := s.keys.GenerateKey(k.BlobNamespace, req.FileName)
	uploadURL, err := signer.PresignUpload(ctx, key, req.MimeType, s.uploadTTL)
	if err != nil {
		return nil, storeErr("blob", key, "presign", err)
	}
	h := &BlobHandle{Key: key, MimeType: req.MimeType, Size: req.Size}
	return &UploadTicket{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: s.blobStore.PublicURL(h),
		MimeType:  req.MimeType,
		ExpiresAt: s.now().UTC().Add(s.uploadTTL),
	}, nil
}

// getOwned loads id and hides items that belong to another kind.
func (s *service) getOwned(ctx context.Context, k ContentKind, id string) (*ContentItem, error) {
	item, err := s.repository.GetContent(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ContentType != k.ID {
		return nil, fmt.Errorf("%w: %s content %s", ErrNotFound, k.ID, id)
	}
	return item, nil
}

// logOrphans reports blobs uploaded by a request whose document write failed.
func (s *service) logOrphans(op, kind, id string, plan *IngestionPlan, media []MediaAttachment, cause error) {
	if plan == nil || plan.Uploads() == 0 {
		return
	}
	var urls []string
	for _, m := range media {
		if m.IsBlob() {
			urls = append(urls, m.URL)
		}
	}
	uploaded := urls
	if n := plan.Uploads(); len(urls) > n {
		uploaded = urls[len(urls)-n:]
	}
	s.logger.Error("Document write failed after upload; blobs orphaned",
		"op", op, "kind", kind, "content_id", id, "urls", uploaded, "error", cause)
}

// normalizeContentFields drops reserved keys and coerces the boolean flags,
// which multipart clients send as strings.
func normalizeContentFields(in map[string]any) (map[string]any, error) {
	out := withoutKeys(in, reservedContentFields...)
	for _, key := range []string{"isPublished", "isPremium"} {
		v, ok := out[key]
		if !ok {
			continue
		}
		b, err := coerceBool(v)
		if err != nil {
			return nil, rejectf("%s: %v", key, err)
		}
		out[key] = b
	}
	return out, nil
}

func coerceBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", t)
		}
		return b, nil
	}
	return false, fmt.Errorf("invalid boolean %v", v)
}

// applyContentFields moves first-class fields out of fields into item.
func applyContentFields(item *ContentItem, fields map[string]any) error {
	if v, ok := fields["categoryId"]; ok {
		if v != nil {
			id, ok := v.(string)
			if !ok {
				return rejectf("categoryId must be a string")
			}
			item.CategoryID = id
		}
		delete(fields, "categoryId")
	}
	if v, ok := fields["isPublished"]; ok {
		item.IsPublished = v.(bool)
		delete(fields, "isPublished")
	}
	if v, ok := fields["isPremium"]; ok {
		item.IsPremium = v.(bool)
		delete(fields, "isPremium")
	}
	if len(fields) > 0 {
		item.Fields = fields
	}
	return nil
}
