package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"go.mongodb.org/mongo-driver/bson"
)

var _ guidedcontent.DocumentStore = (*Store)(nil)

func TestEncodeDecode(t *testing.T) {
	doc := guidedcontent.Document{
		"id":          "ignored",
		"contentType": "audio",
		"isPremium":   true,
		"media": []any{
			map[string]any{"type": "audio", "url": "https://cdn/x.mp3", "gender": "f"},
		},
	}

	body, err := encode("abc", doc)
	require.NoError(t, err)
	require.Equal(t, "_id", body[0].Key)
	assert.Equal(t, "abc", body[0].Value)

	raw, err := bson.Marshal(body)
	require.NoError(t, err)
	got, err := decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc", got["id"])
	assert.NotContains(t, got, "_id")
	assert.Equal(t, true, got["isPremium"])
	assert.Equal(t, []any{map[string]any{"type": "audio", "url": "https://cdn/x.mp3", "gender": "f"}}, got["media"])
}

// TestStoreIntegration runs against GUIDED_CONTENT_TEST_MONGO_URI.
func TestStoreIntegration(t *testing.T) {
	uri := os.Getenv("GUIDED_CONTENT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GUIDED_CONTENT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	database := "guided_content_test_" + uuid.NewString()[:8]
	store, err := Connect(ctx, uri, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.database.Drop(ctx)
		_ = store.Close(ctx)
	})

	id, err := store.Add(ctx, "items", guidedcontent.Document{"contentType": "audio", "categoryId": "c1", "title": "Calm"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "items", guidedcontent.Document{"contentType": "meditation", "categoryId": "c1"})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "Calm", doc["title"])

	docs, err := store.List(ctx, "items", guidedcontent.Filter{"contentType": "audio"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, store.Update(ctx, "items", id, guidedcontent.Document{"contentType": "audio", "title": "Calmer"}))
	doc, err = store.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "Calmer", doc["title"])
	assert.NotContains(t, doc, "categoryId")

	require.NoError(t, store.Delete(ctx, "items", id))
	_, err = store.Get(ctx, "items", id)
	assert.ErrorIs(t, err, guidedcontent.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "items", id), guidedcontent.ErrNotFound)
}
