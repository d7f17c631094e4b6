// Package redis publishes content lifecycle events to a Redis pub/sub
// channel as JSON messages.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "guided-content.events"

// Event types
const (
	TypeContentCreated    = "content.created"
	TypeContentUpdated    = "content.updated"
	TypeContentDeleted    = "content.deleted"
	TypeBlobUploaded      = "blob.uploaded"
	TypeBlobDeleted       = "blob.deleted"
	TypeBlobCleanupFailed = "blob.cleanup_failed"
)

// Event is the message published for every lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	Kind       string    `json:"kind"`
	ContentID  string    `json:"contentId,omitempty"`
	Media      int       `json:"media,omitempty"`
	Key        string    `json:"key,omitempty"`
	Size       int64     `json:"size,omitempty"`
	URL        string    `json:"url,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is a guidedcontent.EventSink backed by Redis PUBLISH.
type Publisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Publisher
type Option func(*Publisher)

// WithChannel sets the pub/sub channel
func WithChannel(channel string) Option {
	return func(p *Publisher) {
		if channel != "" {
			p.channel = channel
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the event timestamp source
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a publisher over an existing client.
func New(client redis.UniversalClient, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		channel: DefaultChannel,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromURL parses a redis:// URL and pings the server.
func NewFromURL(ctx context.Context, url string, opts ...Option) (*Publisher, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, opts...), nil
}

// Channel returns the channel events are published to.
func (p *Publisher) Channel() string {
	return p.channel
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) publish(ctx context.Context, ev Event) error {
	ev.OccurredAt = p.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.ErrorContext(ctx, "redis PUBLISH failed", "channel", p.channel, "type", ev.Type, "error", err)
		return fmt.Errorf("failed to publish to channel %s: %w", p.channel, err)
	}
	p.logger.DebugContext(ctx, "redis PUBLISH", "channel", p.channel, "type", ev.Type)
	return nil
}

func (p *Publisher) ContentCreated(ctx context.Context, item *guidedcontent.ContentItem) error {
	return p.publish(ctx, Event{Type: TypeContentCreated, Kind: item.ContentType, ContentID: item.ID, Media: len(item.Media)})
}

func (p *Publisher) ContentUpdated(ctx context.Context, item *guidedcontent.ContentItem) error {
	return p.publish(ctx, Event{Type: TypeContentUpdated, Kind: item.ContentType, ContentID: item.ID, Media: len(item.Media)})
}

func (p *Publisher) ContentDeleted(ctx context.Context, kind, id string) error {
	return p.publish(ctx, Event{Type: TypeContentDeleted, Kind: kind, ContentID: id})
}

func (p *Publisher) BlobUploaded(ctx context.Context, kind string, h *guidedcontent.BlobHandle, url string) error {
	return p.publish(ctx, Event{Type: TypeBlobUploaded, Kind: kind, Key: h.Key, Size: h.Size, URL: url})
}

func (p *Publisher) BlobDeleted(ctx context.Context, kind, url string) error {
	return p.publish(ctx, Event{Type: TypeBlobDeleted, Kind: kind, URL: url})
}

func (p *Publisher) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	ev := Event{Type: TypeBlobCleanupFailed, Kind: kind, URL: url}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return p.publish(ctx, ev)
}
