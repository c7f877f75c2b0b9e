package driven

import (
	"context"

	"github.com/communitykit/communitybot/internal/core/domain"
)

// RowFilter selects rows of the knowledge index by metadata.
type RowFilter struct {
	// Types restricts to the given document types. Empty means all.
	Types []string

	// SourceID restricts to documents belonging to one parent unit.
	SourceID string
}

// Hit is one similarity search result.
type Hit struct {
	// Document is the matched row, metadata included.
	Document domain.Document

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}

// VectorStore persists documents with their embeddings and provides
// similarity search. It is the only durable owner of index state: the sync
// engine rebuilds its view of "what is already indexed" from the store at
// the start of every run.
//
// All mutations are idempotent and safe to retry; re-running a sync after a
// partial failure converges to the same end state.
type VectorStore interface {
	// Query returns rows matching the filter, without embeddings.
	// Used to build the existing-index snapshot per target.
	Query(ctx context.Context, filter RowFilter) ([]domain.Document, error)

	// Upsert replaces documents by id: delete-by-id then insert, since the
	// store has no native update. Embedding happens inside the store.
	Upsert(ctx context.Context, docs []domain.Document) error

	// DeleteByID removes rows by document id and returns the count removed.
	DeleteByID(ctx context.Context, ids []string) (int, error)

	// DeleteBySource removes all rows whose sourceId matches and returns
	// the count removed. This cascades through chunked children, which
	// share the parent's sourceId.
	DeleteBySource(ctx context.Context, sourceID string) (int, error)

	// SourceIDs returns the distinct sourceIds present for the given
	// document types. Used by the orphan sweep.
	SourceIDs(ctx context.Context, types []string) ([]string, error)

	// Search returns the k most similar rows to the query embedding.
	Search(ctx context.Context, embedding []float32, k int) ([]Hit, error)
}
