package guidedcontent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Default collection names.
const (
	DefaultContentCollection  = "guided_content"
	DefaultCategoryCollection = "guided_content_categories"
)

// protectedFields can never be changed through a patch.
var protectedFields = []string{"id", "contentType", "createdAt"}

// Document keys owned by the typed structs; everything else is a free-form field.
var (
	contentKeys  = []string{"id", "contentType", "categoryId", "media", "isPublished", "isPremium", "createdAt", "updatedAt"}
	categoryKeys = []string{"id", "contentType", "name", "itemCount", "createdAt", "updatedAt"}
)

// DocumentRepository implements Repository on top of a DocumentStore.
type DocumentRepository struct {
	store      DocumentStore
	contents   string
	categories string
	now        func() time.Time
}

// RepositoryOption configures a DocumentRepository.
type RepositoryOption func(*DocumentRepository)

// WithCollectionNames overrides the content and category collection names.
func WithCollectionNames(contents, categories string) RepositoryOption {
	return func(r *DocumentRepository) {
		if contents != "" {
			r.contents = contents
		}
		if categories != "" {
			r.categories = categories
		}
	}
}

// WithRepositoryClock overrides the time source used for timestamps.
func WithRepositoryClock(now func() time.Time) RepositoryOption {
	return func(r *DocumentRepository) {
		r.now = now
	}
}

// NewDocumentRepository creates a repository over store.
func NewDocumentRepository(store DocumentStore, opts ...RepositoryOption) *DocumentRepository {
	r := &DocumentRepository{
		store:      store,
		contents:   DefaultContentCollection,
		categories: DefaultCategoryCollection,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DocumentRepository) timestamp() time.Time {
	return r.now().UTC()
}

// Content operations

func (r *DocumentRepository) CreateContent(ctx context.Context, item *ContentItem) (*ContentItem, error) {
	now := r.timestamp()
	created := *item
	created.ID = ""
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Media == nil {
		created.Media = []MediaAttachment{}
	}

	doc, err := toDocument(created)
	if err != nil {
		return nil, err
	}
	delete(doc, "id")
	id, err := r.store.Add(ctx, r.contents, doc)
	if err != nil {
		return nil, storeErr("document", r.contents, "add", err)
	}
	created.ID = id
	return &created, nil
}

func (r *DocumentRepository) GetContent(ctx context.Context, id string) (*ContentItem, error) {
	doc, err := r.store.Get(ctx, r.contents, id)
	if err != nil {
		return nil, storeErr("document", r.contents+"/"+id, "get", err)
	}
	return decodeContent(doc)
}

// UpdateContent merges patch into the stored item as an RFC 7386 merge
// patch: objects merge recursively, arrays (media included) are replaced
// and null removes a field.
func (r *DocumentRepository) UpdateContent(ctx context.Context, id string, patch map[string]any) (*ContentItem, error) {
	doc, err := r.update(ctx, r.contents, id, patch)
	if err != nil {
		return nil, err
	}
	return decodeContent(doc)
}

func (r *DocumentRepository) DeleteContent(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.contents, id); err != nil {
		return storeErr("document", r.contents+"/"+id, "delete", err)
	}
	return nil
}

func (r *DocumentRepository) ListByKind(ctx context.Context, contentType string) ([]*ContentItem, error) {
	return r.listContent(ctx, Filter{"contentType": contentType})
}

func (r *DocumentRepository) ListByKindAndCategory(ctx context.Context, contentType, categoryID string) ([]*ContentItem, error) {
	return r.listContent(ctx, Filter{"contentType": contentType, "categoryId": categoryID})
}

func (r *DocumentRepository) listContent(ctx context.Context, filter Filter) ([]*ContentItem, error) {
	docs, err := r.store.List(ctx, r.contents, filter)
	if err != nil {
		return nil, storeErr("document", r.contents, "list", err)
	}
	items := make([]*ContentItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeContent(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Category operations

func (r *DocumentRepository) CreateCategory(ctx context.Context, category *Category) (*Category, error) {
	now := r.timestamp()
	created := *category
	created.ID = ""
	created.ItemCount = 0
	created.CreatedAt = now
	created.UpdatedAt = now

	doc, err := toDocument(created)
	if err != nil {
		return nil, err
	}
	delete(doc, "id")
	delete(doc, "itemCount")
	id, err := r.store.Add(ctx, r.categories, doc)
	if err != nil {
		return nil, storeErr("document", r.categories, "add", err)
	}
	created.ID = id
	return &created, nil
}

func (r *DocumentRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	doc, err := r.store.Get(ctx, r.categories, id)
	if err != nil {
		return nil, storeErr("document", r.categories+"/"+id, "get", err)
	}
	return decodeCategory(doc)
}

func (r *DocumentRepository) UpdateCategory(ctx context.Context, id string, patch map[string]any) (*Category, error) {
	patch = withoutKeys(patch, "itemCount")
	doc, err := r.update(ctx, r.categories, id, patch)
	if err != nil {
		return nil, err
	}
	return decodeCategory(doc)
}

func (r *DocumentRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.categories, id); err != nil {
		return storeErr("document", r.categories+"/"+id, "delete", err)
	}
	return nil
}

// ListCategories returns the categories of contentType with ItemCount
// computed from the current content items. Nothing is cached.
func (r *DocumentRepository) ListCategories(ctx context.Context, contentType string) ([]*Category, error) {
	docs, err := r.store.List(ctx, r.categories, Filter{"contentType": contentType})
	if err != nil {
		return nil, storeErr("document", r.categories, "list", err)
	}
	items, err := r.ListByKind(ctx, contentType)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(docs))
	for _, item := range items {
		if item.CategoryID != "" {
			counts[item.CategoryID]++
		}
	}

	categories := make([]*Category, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeCategory(doc)
		if err != nil {
			return nil, err
		}
		c.ItemCount = counts[c.ID]
		categories = append(categories, c)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].CreatedAt.After(categories[j].CreatedAt)
	})
	return categories, nil
}

func (r *DocumentRepository) update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	current, err := r.store.Get(ctx, collection, id)
	if err != nil {
		return nil, storeErr("document", collection+"/"+id, "get", err)
	}

	patch = withoutKeys(patch, protectedFields...)
	patch["updatedAt"] = r.timestamp().Format(time.RFC3339Nano)

	original, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", id, err)
	}
	delta, err := json.Marshal(patch)
	if err != nil {
		return nil, rejectf("patch is not valid JSON: %v", err)
	}
	merged, err := jsonpatch.MergePatch(original, delta)
	if err != nil {
		return nil, rejectf("cannot apply patch: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(merged, &doc); err != nil {
		return nil, fmt.Errorf("decode merged document %s: %w", id, err)
	}
	delete(doc, "id")

	if err := r.store.Update(ctx, collection, id, doc); err != nil {
		return nil, storeErr("document", collection+"/"+id, "update", err)
	}
	doc["id"] = id
	return doc, nil
}

// toDocument encodes v (a ContentItem or Category) into its flattened
// document form.
func toDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func decodeContent(doc Document) (*ContentItem, error) {
	type alias ContentItem
	var a alias
	if err := decodeInto(doc, &a); err != nil {
		return nil, err
	}
	item := ContentItem(a)
	if item.Media == nil {
		item.Media = []MediaAttachment{}
	}
	item.Fields = extraFields(doc, contentKeys)
	return &item, nil
}

func decodeCategory(doc Document) (*Category, error) {
	type alias Category
	var a alias
	if err := decodeInto(doc, &a); err != nil {
		return nil, err
	}
	c := Category(a)
	c.Fields = extraFields(doc, categoryKeys)
	return &c, nil
}

func decodeInto(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document %v: %w", doc["id"], err)
	}
	return nil
}

func extraFields(doc Document, known []string) map[string]any {
	extra := withoutKeys(doc, known...)
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// withoutKeys returns a shallow copy of m without keys.
func withoutKeys[M ~map[string]any](m M, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
