package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/config"
)

// fakeEmbedder maps known phrases to fixed unit vectors so similarity
// ordering is deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.KnowledgeConfig{
		Path:       t.TempDir(),
		Collection: "facts",
	}, &fakeEmbedder{vectors: map[string][]float32{
		"the server room code is 4412": {1, 0, 0},
		"alice prefers dark roast":     {0, 1, 0},
		"what is the server room code": {0.9, 0.1, 0},
	}})
	require.NoError(t, err)
	return store
}

func TestAddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.Add(ctx, "the server room code is 4412", "chat")
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	_, err = store.Add(ctx, "alice prefers dark roast", "chat")
	require.NoError(t, err)

	facts, err := store.Search(ctx, "what is the server room code", 1)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "the server room code is 4412", facts[0].Content)
	assert.Equal(t, "chat", facts[0].Source)
	assert.Greater(t, facts[0].Score, float32(0.5))
}

func TestSearchClampsToCollectionSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "alice prefers dark roast", "chat")
	require.NoError(t, err)

	facts, err := store.Search(ctx, "coffee", 10)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	facts, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, facts)
}
