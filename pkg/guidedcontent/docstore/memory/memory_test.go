package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/guided-content/pkg/guidedcontent"
	"github.com/tendant/guided-content/pkg/guidedcontent/docstore/memory"
)

var _ guidedcontent.DocumentStore = (*memory.Store)(nil)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	id, err := store.Add(ctx, "items", guidedcontent.Document{"contentType": "audio", "title": "Calm"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["id"])
	assert.Equal(t, "Calm", doc["title"])

	// Mutating the returned document does not touch the store.
	doc["title"] = "changed"
	again, err := store.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "Calm", again["title"])

	require.NoError(t, store.Update(ctx, "items", id, guidedcontent.Document{"contentType": "audio", "title": "Calmer"}))
	doc, err = store.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "Calmer", doc["title"])

	require.NoError(t, store.Delete(ctx, "items", id))
	_, err = store.Get(ctx, "items", id)
	assert.ErrorIs(t, err, guidedcontent.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "items", id), guidedcontent.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, "items", id, guidedcontent.Document{}), guidedcontent.ErrNotFound)
}

func TestStoreListFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for _, d := range []guidedcontent.Document{
		{"contentType": "audio", "categoryId": "a"},
		{"contentType": "audio", "categoryId": "b"},
		{"contentType": "meditation", "categoryId": "a"},
	} {
		_, err := store.Add(ctx, "items", d)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter guidedcontent.Filter
		want   int
	}{
		{name: "no filter", filter: nil, want: 3},
		{name: "by kind", filter: guidedcontent.Filter{"contentType": "audio"}, want: 2},
		{name: "by kind and category", filter: guidedcontent.Filter{"contentType": "audio", "categoryId": "a"}, want: 1},
		{name: "no match", filter: guidedcontent.Filter{"contentType": "visualization"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := store.List(ctx, "items", tt.filter)
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}

	docs, err := store.List(ctx, "missing", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
