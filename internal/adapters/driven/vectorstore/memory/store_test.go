package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

type axisEmbedder struct{}

func (axisEmbedder) Dimensions() int { return 2 }

func (axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch text {
	case "north":
		return []float32{1, 0}, nil
	case "northeast":
		return []float32{1, 1}, nil
	default:
		return []float32{0, 1}, nil
	}
}

func doc(id, docType, sourceID string) domain.Document {
	return domain.Document{
		ID:      id,
		Content: "body of " + id,
		Metadata: map[string]string{
			domain.MetaType:     docType,
			domain.MetaSourceID: sourceID,
		},
	}
}

func TestStore_Query_Filters(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("a", domain.TypeNotionPage, "page-1"),
		doc("b", domain.TypeNotionPage, "page-2"),
		doc("c", domain.TypeWebsitePage, "page-1"),
	}))

	all, err := store.Query(context.Background(), driven.RowFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySource, err := store.Query(context.Background(), driven.RowFilter{SourceID: "page-1"})
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, "a", bySource[0].ID)
	assert.Equal(t, "c", bySource[1].ID)

	byType, err := store.Query(context.Background(), driven.RowFilter{Types: []string{domain.TypeWebsitePage}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "c", byType[0].ID)
}

func TestStore_Upsert_ReplacesByID(t *testing.T) {
	store := New(nil)
	first := doc("a", domain.TypeNotionPage, "page-1")
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{first}))

	second := doc("a", domain.TypeNotionPage, "page-1")
	second.Content = "rewritten"
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{second}))

	rows, err := store.Query(context.Background(), driven.RowFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rewritten", rows[0].Content)
}

func TestStore_Query_ReturnsIsolatedCopies(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("a", domain.TypeNotionPage, "page-1"),
	}))

	rows, err := store.Query(context.Background(), driven.RowFilter{})
	require.NoError(t, err)
	rows[0].Metadata[domain.MetaSourceID] = "tampered"

	again, err := store.Query(context.Background(), driven.RowFilter{})
	require.NoError(t, err)
	assert.Equal(t, "page-1", again[0].SourceID())
}

func TestStore_DeleteByID(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("a", domain.TypeNotionPage, "page-1"),
		doc("b", domain.TypeNotionPage, "page-2"),
	}))

	removed, err := store.DeleteByID(context.Background(), []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
}

func TestStore_DeleteBySource_RemovesAllChunks(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("page-1#0", domain.TypeNotionPage, "page-1"),
		doc("page-1#1", domain.TypeNotionPage, "page-1"),
		doc("other", domain.TypeNotionPage, "page-2"),
	}))

	removed, err := store.DeleteBySource(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())
}

func TestStore_SourceIDs(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("a", domain.TypeNotionPage, "page-2"),
		doc("b", domain.TypeNotionPage, "page-1"),
		doc("c", domain.TypeNotionPage, "page-1"),
		doc("d", domain.TypeWebsitePage, "/pricing"),
	}))

	ids, err := store.SourceIDs(context.Background(), []string{domain.TypeNotionPage})
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1", "page-2"}, ids)

	ids, err = store.SourceIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/pricing", "page-1", "page-2"}, ids)
}

func TestStore_Search_RanksByCosineSimilarity(t *testing.T) {
	store := New(axisEmbedder{})
	north := doc("north", domain.TypeNotionPage, "page-1")
	north.Content = "north"
	diagonal := doc("northeast", domain.TypeNotionPage, "page-2")
	diagonal.Content = "northeast"
	east := doc("east", domain.TypeNotionPage, "page-3")
	east.Content = "east"
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{north, diagonal, east}))

	hits, err := store.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Document.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "northeast", hits[1].Document.ID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)
}

func TestStore_Search_WithoutEmbedderReturnsNothing(t *testing.T) {
	store := New(nil)
	require.NoError(t, store.Upsert(context.Background(), []domain.Document{
		doc("a", domain.TypeNotionPage, "page-1"),
	}))

	hits, err := store.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
