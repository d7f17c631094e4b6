package guidedcontent_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/tendant/guided-content/pkg/guidedcontent"
	memorystorage "github.com/tendant/guided-content/pkg/guidedcontent/storage/memory"
)

func audioFile(name, content string) guidedcontent.FilePayload {
	return guidedcontent.FilePayload{
		Name:     name,
		MimeType: "audio/mpeg",
		Size:     int64(len(content)),
		Reader:   strings.NewReader(content),
	}
}

func mustKind(id string) guidedcontent.ContentKind {
	k, err := guidedcontent.DefaultRegistry().Lookup(id)
	if err != nil {
		panic(err)
	}
	return k
}

// flakyBlobStore wraps the memory backend and fails selected calls.
type flakyBlobStore struct {
	*memorystorage.Backend

	mu          sync.Mutex
	failDeletes map[string]bool
	failWriteAt int // 1-based write number to fail; 0 disables
	writeCalls  int
	deleteCalls []string
}

var errInjected = errors.New("injected failure")

func newFlakyBlobStore() *flakyBlobStore {
	return &flakyBlobStore{
		Backend:     memorystorage.New(),
		failDeletes: make(map[string]bool),
	}
}

func (f *flakyBlobStore) Write(ctx context.Context, key string, r io.Reader, mimeType string) (*guidedcontent.BlobHandle, error) {
	f.mu.Lock()
	f.writeCalls++
	fail := f.failWriteAt > 0 && f.writeCalls == f.failWriteAt
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Backend.Write(ctx, key, r, mimeType)
}

func (f *flakyBlobStore) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, url)
	fail := f.failDeletes[url]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Backend.Delete(ctx, url)
}

func (f *flakyBlobStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleteCalls...)
}

// recordingSink records event names in order.
type recordingSink struct {
	guidedcontent.NoopEventSink

	mu     sync.Mutex
	events []string
}

func (r *recordingSink) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingSink) ContentCreated(ctx context.Context, item *guidedcontent.ContentItem) error {
	r.record("content_created")
	return nil
}

func (r *recordingSink) ContentUpdated(ctx context.Context, item *guidedcontent.ContentItem) error {
	r.record("content_updated")
	return nil
}

func (r *recordingSink) ContentDeleted(ctx context.Context, kind, id string) error {
	r.record("content_deleted")
	return nil
}

func (r *recordingSink) BlobUploaded(ctx context.Context, kind string, h *guidedcontent.BlobHandle, url string) error {
	r.record("blob_uploaded")
	return nil
}

func (r *recordingSink) BlobDeleted(ctx context.Context, kind, url string) error {
	r.record("blob_deleted")
	return nil
}

func (r *recordingSink) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	r.record("blob_cleanup_failed")
	return errors.New("sink down")
}
