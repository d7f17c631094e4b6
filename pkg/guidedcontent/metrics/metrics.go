// Package metrics exposes Prometheus instrumentation for the content
// service: an EventSink counting lifecycle events and an HTTP middleware.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

const namespace = "guided_content"

// Sink implements guidedcontent.EventSink by updating counters.
type Sink struct {
	contentEvents *prometheus.CounterVec
	blobUploads   *prometheus.CounterVec
	uploadBytes   *prometheus.CounterVec
	blobDeletes   *prometheus.CounterVec

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		contentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_events_total",
			Help:      "Content lifecycle events by event and content kind.",
		}, []string{"event", "kind"}),
		blobUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_uploads_total",
			Help:      "Raw files written to the blob store.",
		}, []string{"kind"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_upload_bytes_total",
			Help:      "Bytes written to the blob store.",
		}, []string{"kind"}),
		blobDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_deletes_total",
			Help:      "Blob deletions by result (deleted or failed).",
		}, []string{"kind", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(s.contentEvents, s.blobUploads, s.uploadBytes, s.blobDeletes, s.requests, s.duration)
	return s
}

func (s *Sink) ContentCreated(ctx context.Context, item *guidedcontent.ContentItem) error {
	s.contentEvents.WithLabelValues("created", item.ContentType).Inc()
	return nil
}

func (s *Sink) ContentUpdated(ctx context.Context, item *guidedcontent.ContentItem) error {
	s.contentEvents.WithLabelValues("updated", item.ContentType).Inc()
	return nil
}

func (s *Sink) ContentDeleted(ctx context.Context, kind, id string) error {
	s.contentEvents.WithLabelValues("deleted", kind).Inc()
	return nil
}

func (s *Sink) BlobUploaded(ctx context.Context, kind string, h *guidedcontent.BlobHandle, url string) error {
	s.blobUploads.WithLabelValues(kind).Inc()
	if h != nil && h.Size > 0 {
		s.uploadBytes.WithLabelValues(kind).Add(float64(h.Size))
	}
	return nil
}

func (s *Sink) BlobDeleted(ctx context.Context, kind, url string) error {
	s.blobDeletes.WithLabelValues(kind, "deleted").Inc()
	return nil
}

func (s *Sink) BlobCleanupFailed(ctx context.Context, kind, url string, cause error) error {
	s.blobDeletes.WithLabelValues(kind, "failed").Inc()
	return nil
}

// Middleware records request counts and latency labelled with the chi
// route pattern, so ids never end up in label values.
func (s *Sink) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
