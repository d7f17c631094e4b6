package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/guided-content/pkg/guidedcontent"
)

// Opener is implemented by blob stores whose objects this server serves
// itself (memory and filesystem).
type Opener interface {
	Open(key string) (io.ReadCloser, string, error)
}

// MediaRoutes serves public objects of store under the mount point; the
// remaining path is the object key.
func MediaRoutes(store Opener, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key, err := url.PathUnescape(chi.URLParam(r, "*"))
		if err != nil || key == "" {
			http.NotFound(w, r)
			return
		}
		rc, contentType, err := store.Open(key)
		if err != nil {
			if errors.Is(err, guidedcontent.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logger.ErrorContext(r.Context(), "Failed to open media", "key", key, "error", err)
			http.Error(w, "failed to open media", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, rc); err != nil {
			logger.WarnContext(r.Context(), "Failed to stream media", "key", key, "error", err)
		}
	})
	return r
}
