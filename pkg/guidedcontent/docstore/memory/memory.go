package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Store implements guidedcontent.DocumentStore in process memory.
// Documents are copied through their JSON form on the way in and out so
// callers never share maps with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// New creates a new in-memory document store
func New() *Store {
	return &Store{
		collections: make(map[string]map[string][]byte),
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (guidedcontent.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.collections[collection][id]
	if !exists {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	return decode(id, data)
}

func (s *Store) List(ctx context.Context, collection string, filter guidedcontent.Filter) ([]guidedcontent.Document, error) {
	want, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var docs []guidedcontent.Document
	for _, id := range ids {
		doc, err := decode(id, s.collections[collection][id])
		if err != nil {
			return nil, err
		}
		if matches(doc, want) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Store) Add(ctx context.Context, collection string, doc guidedcontent.Document) (string, error) {
	id := uuid.NewString()
	data, err := encode(doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string][]byte)
	}
	s.collections[collection][id] = data
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, doc guidedcontent.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection][id]; !exists {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	s.collections[collection][id] = data
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection][id]; !exists {
		return fmt.Errorf("%s/%s: %w", collection, id, guidedcontent.ErrNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}

// Len returns the number of documents in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func encode(doc guidedcontent.Document) ([]byte, error) {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" {
			stripped[k] = v
		}
	}
	data, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func decode(id string, data []byte) (guidedcontent.Document, error) {
	var doc guidedcontent.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}

func normalize(filter guidedcontent.Filter) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return out, nil
}

func matches(doc guidedcontent.Document, want map[string]any) bool {
	for k, v := range want {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}
