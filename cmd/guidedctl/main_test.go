package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"github.com/tendant/guided-content/pkg/guidedcontent/api"
	"github.com/tendant/guided-content/pkg/guidedcontent/config"
)

func newTestContext(t *testing.T) *commandContext {
	t.Helper()
	cfg, err := config.Load(config.WithEnvironment("testing"))
	require.NoError(t, err)
	app, err := cfg.Build(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	cctx := &commandContext{app: app}
	t.Cleanup(cctx.close)
	return cctx
}

func runCLI(t *testing.T, cctx *commandContext, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(cctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, cctx *commandContext) (*guidedcontent.Category, *guidedcontent.ContentItem) {
	t.Helper()
	ctx := context.Background()
	svc := cctx.app.Service
	cat, err := svc.CreateCategory(ctx, "visualization", map[string]any{"name": "Morning"})
	require.NoError(t, err)
	item, err := svc.CreateContent(ctx, guidedcontent.CreateContentRequest{
		Kind:   "visualization",
		Fields: map[string]any{"title": "Sunrise", "categoryId": cat.ID, "isPublished": true},
		Media: &guidedcontent.MediaRequest{
			Files:        []guidedcontent.FilePayload{{Name: "sun.mp3", MimeType: "audio/mpeg", Size: 4, Reader: strings.NewReader("sun!")}},
			Genders:      []string{"female"},
			ExternalURLs: []string{"https://youtu.be/dQw4w9WgXcQ"},
		},
	})
	require.NoError(t, err)
	return cat, item
}

func TestKindsCommand(t *testing.T) {
	cctx := newTestContext(t)

	out, err := runCLI(t, cctx, "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "guided-meditation")
	assert.Contains(t, out, "visualization")

	out, err = runCLI(t, cctx, "kinds", "--json")
	require.NoError(t, err)
	var kinds []guidedcontent.ContentKind
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	assert.Len(t, kinds, 3)
}

func TestCategoriesAndStats(t *testing.T) {
	cctx := newTestContext(t)
	seed(t, cctx)

	out, err := runCLI(t, cctx, "categories", "visualization")
	require.NoError(t, err)
	assert.Contains(t, out, "Morning")

	out, err = runCLI(t, cctx, "stats", "--json")
	require.NoError(t, err)
	var stats []kindStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Len(t, stats, 3)
	for _, s := range stats {
		if s.Kind != "visualization" {
			assert.Zero(t, s.Items, s.Kind)
			continue
		}
		assert.Equal(t, kindStats{
			Kind: "visualization", Categories: 1, Items: 1, Published: 1, BlobMedia: 1, External: 1,
		}, s)
	}
}

func TestContentCommands(t *testing.T) {
	cctx := newTestContext(t)
	cat, item := seed(t, cctx)

	out, err := runCLI(t, cctx, "content", "list", "visualization", "--category", cat.ID)
	require.NoError(t, err)
	assert.Contains(t, out, item.ID)
	assert.Contains(t, out, "Sunrise")

	out, err = runCLI(t, cctx, "content", "get", "visualization", item.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"videoId": "dQw4w9WgXcQ"`)

	_, err = runCLI(t, cctx, "content", "get", "audio", item.ID)
	assert.ErrorIs(t, err, guidedcontent.ErrNotFound)

	out, err = runCLI(t, cctx, "content", "delete", "visualization", item.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted visualization "+item.ID)

	out, err = runCLI(t, cctx, "content", "list", "visualization", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestUnknownKind(t *testing.T) {
	cctx := newTestContext(t)
	_, err := runCLI(t, cctx, "content", "list", "podcast")
	assert.ErrorIs(t, err, guidedcontent.ErrUnknownKind)
}

func TestAuthHelpers(t *testing.T) {
	cctx := &commandContext{}

	out, err := runCLI(t, cctx, "hash-key", "let-me-in")
	require.NoError(t, err)
	assert.Equal(t, api.HashAdminKey("let-me-in")+"\n", out)
	assert.Nil(t, cctx.app, "auth helpers never build the service")

	out, err = runCLI(t, cctx, "issue-token", "--secret", "s3cret", "--subject", "ops")
	require.NoError(t, err)
	token, err := jwtauth.New("HS256", []byte("s3cret"), nil).Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", token.Subject())

	_, err = runCLI(t, cctx, "issue-token")
	assert.ErrorContains(t, err, "--secret")

	out, err = runCLI(t, cctx, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "DATABASE_URL")
}
