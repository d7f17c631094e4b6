package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/guided-content/pkg/guidedcontent/api"
	"github.com/tendant/guided-content/pkg/guidedcontent/config"
)

const testAdminKey = "let-me-in"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg, err := config.Load(
		config.WithEnvironment("testing"),
		config.WithPublicBaseURL("http://guided.test"),
		config.WithAdminAuth(api.HashAdminKey(testAdminKey), ""),
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := cfg.Build(context.Background(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return newRouter(app, logger)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["kinds"], 3)
}

func TestMutationsRequireAdminKey(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/audio/categories", strings.NewReader(`{"name":"Sleep"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/audio/categories", strings.NewReader(`{"name":"Sleep"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.AdminKeyHeader, testAdminKey)
	assert.Equal(t, http.StatusCreated, serve(router, req).Code)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/audio/categories", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "reads stay public")
}

func TestUploadedMediaIsServed(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Evening calm"))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="mediaFiles"; filename="calm.mp3"`)
	header.Set("Content-Type", "audio/mpeg")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3-audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.AdminKeyHeader, testAdminKey)
	rr := serve(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var item struct {
		Media []struct {
			URL string `json:"url"`
		} `json:"media"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	require.Len(t, item.Media, 1)
	path := strings.TrimPrefix(item.Media[0].URL, "http://guided.test")
	require.True(t, strings.HasPrefix(path, "/media/"), item.Media[0].URL)

	rr = serve(router, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ID3-audio-bytes", rr.Body.String())
	assert.Equal(t, "audio/mpeg", rr.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodGet, "/api/content-kinds", nil))

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "guided_content_http_requests_total")
	assert.Contains(t, rr.Body.String(), `route="/api/content-kinds"`)
}
