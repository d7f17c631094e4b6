package guidedcontent

import (
	"context"
	"errors"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ContentCreated(ctx context.Context, item *ContentItem) error { return nil }
func (n *NoopEventSink) ContentUpdated(ctx context.Context, item *ContentItem) error { return nil }
func (n *NoopEventSink) ContentDeleted(ctx context.Context, kind, id string) error   { return nil }

func (n *NoopEventSink) BlobUploaded(ctx context.Context, kind string, h *BlobHandle, url string) error {
	return nil
}

func (n *NoopEventSink) BlobDeleted(ctx context.Context, kind, url string) error { return nil }

func (n *NoopEventSink) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	return nil
}

// LoggingEventSink logs every event at debug level.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ContentCreated(ctx context.Context, item *ContentItem) error {
	l.logger.DebugContext(ctx, "Content created", "kind", item.ContentType, "content_id", item.ID, "media", len(item.Media))
	return nil
}

func (l *LoggingEventSink) ContentUpdated(ctx context.Context, item *ContentItem) error {
	l.logger.DebugContext(ctx, "Content updated", "kind", item.ContentType, "content_id", item.ID, "media", len(item.Media))
	return nil
}

func (l *LoggingEventSink) ContentDeleted(ctx context.Context, kind, id string) error {
	l.logger.DebugContext(ctx, "Content deleted", "kind", kind, "content_id", id)
	return nil
}

func (l *LoggingEventSink) BlobUploaded(ctx context.Context, kind string, h *BlobHandle, url string) error {
	l.logger.DebugContext(ctx, "Blob uploaded", "kind", kind, "key", h.Key, "size", h.Size, "url", url)
	return nil
}

func (l *LoggingEventSink) BlobDeleted(ctx context.Context, kind, url string) error {
	l.logger.DebugContext(ctx, "Blob deleted", "kind", kind, "url", url)
	return nil
}

func (l *LoggingEventSink) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	l.logger.DebugContext(ctx, "Blob cleanup failed", "kind", kind, "url", url, "error", cause)
	return nil
}

// MultiEventSink fans every event out to all sinks and joins their errors.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, sink := range m {
		if err := fn(sink); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ContentCreated(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ContentCreated(ctx, item) })
}

func (m MultiEventSink) ContentUpdated(ctx context.Context, item *ContentItem) error {
	return m.each(func(s EventSink) error { return s.ContentUpdated(ctx, item) })
}

func (m MultiEventSink) ContentDeleted(ctx context.Context, kind, id string) error {
	return m.each(func(s EventSink) error { return s.ContentDeleted(ctx, kind, id) })
}

func (m MultiEventSink) BlobUploaded(ctx context.Context, kind string, h *BlobHandle, url string) error {
	return m.each(func(s EventSink) error { return s.BlobUploaded(ctx, kind, h, url) })
}

func (m MultiEventSink) BlobDeleted(ctx context.Context, kind, url string) error {
	return m.each(func(s EventSink) error { return s.BlobDeleted(ctx, kind, url) })
}

func (m MultiEventSink) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	return m.each(func(s EventSink) error { return s.BlobCleanupFailed(ctx, kind, url, cause) })
}
