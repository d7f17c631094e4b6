package guidedcontent

import (
	"context"
	"errors"
	"log/slog"
)

// Reconciler computes the media list of an updated item from its stored
// list, the indices the client removed and any newly ingested media.
//
// Work is split so that the caller controls ordering against the document
// store: Plan validates without I/O, Apply uploads new media, and Cleanup
// deletes removed blobs once the document no longer references them.
type Reconciler struct {
	blobs  BlobStore
	ingest *IngestionResolver
	events EventSink
	logger *slog.Logger
}

// NewReconciler creates a reconciler sharing the resolver's blob store.
func NewReconciler(blobs BlobStore, ingest *IngestionResolver, events EventSink, logger *slog.Logger) *Reconciler {
	if events == nil {
		events = NewNoopEventSink()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{blobs: blobs, ingest: ingest, events: events, logger: logger}
}

// Reconciliation is a validated update to one item's media.
type Reconciliation struct {
	kind     ContentKind
	retained []MediaAttachment
	removed  []MediaAttachment
	plan     *IngestionPlan
}

// Removed returns the stored attachments selected for removal.
func (r *Reconciliation) Removed() []MediaAttachment {
	return r.removed
}

// Plan validates req against stored media. Out-of-range and duplicate
// indices are ignored. In ModeReferences the supplied media array replaces
// the stored one wholesale; deleted indices still select blobs to remove.
func (r *Reconciler) Plan(kind ContentKind, stored []MediaAttachment, req *MediaRequest) (*Reconciliation, error) {
	mode, err := req.Mode()
	if err != nil {
		return nil, err
	}

	var indices []int
	if req != nil {
		indices = req.DeletedIndices
	}
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(stored) {
			drop[i] = true
		}
	}

	rec := &Reconciliation{kind: kind}
	for i, m := range stored {
		if drop[i] {
			rec.removed = append(rec.removed, m)
		} else {
			rec.retained = append(rec.retained, m)
		}
	}

	retained := len(rec.retained)
	if mode == ModeReferences {
		retained = 0
	}
	rec.plan, err = r.ingest.Prepare(kind, req, retained)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Apply executes the ingestion plan and returns the final media list:
// retained attachments in their original order, then the new ones.
func (r *Reconciler) Apply(ctx context.Context, rec *Reconciliation) ([]MediaAttachment, error) {
	added, err := r.ingest.Execute(ctx, rec.plan)
	if err != nil {
		return nil, err
	}
	if rec.plan.mode == ModeReferences {
		return added, nil
	}
	final := make([]MediaAttachment, 0, len(rec.retained)+len(added))
	final = append(final, rec.retained...)
	return append(final, added...), nil
}

// Cleanup deletes the backing objects of removed Blob attachments that are
// not referenced by final. Failures are logged and reported, never fatal;
// the returned slice lists the URLs that could not be deleted.
func (r *Reconciler) Cleanup(ctx context.Context, rec *Reconciliation, final []MediaAttachment) []string {
	return r.DeleteBlobs(ctx, rec.kind, rec.removed, final)
}

// DeleteBlobs deletes the backing object of every Blob attachment in media
// unless its URL is still referenced by keep. External attachments have no
// backing object and are skipped, as are blobs outside kind's namespace.
func (r *Reconciler) DeleteBlobs(ctx context.Context, k ContentKind, media, keep []MediaAttachment) []string {
	kind := k.ID
	referenced := make(map[string]bool, len(keep))
	for _, m := range keep {
		if m.IsBlob() {
			referenced[m.URL] = true
		}
	}

	var failed []string
	seen := make(map[string]bool, len(media))
	for _, m := range media {
		if !m.IsBlob() || referenced[m.URL] || seen[m.URL] {
			continue
		}
		seen[m.URL] = true
		if err := OwnedBy(r.blobs, k, m.URL); err != nil {
			r.logger.Warn("Skipping blob not owned by content kind", "kind", kind, "url", m.URL, "error", err)
			continue
		}
		if err := r.blobs.Delete(ctx, m.URL); err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug("Blob already gone", "kind", kind, "url", m.URL)
				continue
			}
			r.logger.Warn("Failed to delete blob", "kind", kind, "url", m.URL, "error", err)
			if serr := r.events.BlobCleanupFailed(ctx, kind, m.URL, err); serr != nil {
				r.logger.Warn("Event sink failed", "event", "blob_cleanup_failed", "error", serr)
			}
			failed = append(failed, m.URL)
			continue
		}
		if serr := r.events.BlobDeleted(ctx, kind, m.URL); serr != nil {
			r.logger.Warn("Event sink failed", "event", "blob_deleted", "error", serr)
		}
	}
	return failed
}

// Orphans returns the Blob URLs of stored that final no longer references
// and that were not explicitly removed. Only ModeReferences updates can
// produce them.
func (r *Reconciliation) Orphans(stored, final []MediaAttachment) []string {
	gone := make(map[string]bool)
	for _, m := range r.removed {
		gone[m.URL] = true
	}
	for _, m := range final {
		gone[m.URL] = true
	}
	var out []string
	for _, m := range stored {
		if m.IsBlob() && !gone[m.URL] {
			out = append(out, m.URL)
		}
	}
	return out
}
