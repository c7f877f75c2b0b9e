// Package memory provides an in-memory vector store used in tests and
// when no database is configured.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store holds documents and embeddings in process memory.
type Store struct {
	embedder driven.EmbeddingService

	mu         sync.RWMutex
	docs       map[string]domain.Document
	embeddings map[string][]float32
}

// New creates an empty store. The embedder may be nil, in which case
// documents are stored without embeddings and Search returns nothing.
func New(embedder driven.EmbeddingService) *Store {
	return &Store{
		embedder:   embedder,
		docs:       make(map[string]domain.Document),
		embeddings: make(map[string][]float32),
	}
}

// Query returns rows matching the filter in id order.
func (s *Store) Query(_ context.Context, filter driven.RowFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, id := range s.sortedIDs() {
		doc := s.docs[id]
		if !matches(doc, filter) {
			continue
		}
		docs = append(docs, cloneDocument(doc))
	}
	return docs, nil
}

// Upsert replaces documents by id.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document) error {
	embeddings := make(map[string][]float32, len(docs))
	if s.embedder != nil {
		for _, doc := range docs {
			embedding, err := s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return err
			}
			embeddings[doc.ID] = embedding
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.docs[doc.ID] = cloneDocument(doc)
		if embedding, ok := embeddings[doc.ID]; ok {
			s.embeddings[doc.ID] = embedding
		}
	}
	return nil
}

// DeleteByID removes rows by document id.
func (s *Store) DeleteByID(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			delete(s.docs, id)
			delete(s.embeddings, id)
			removed++
		}
	}
	return removed, nil
}

// DeleteBySource removes all rows of one parent unit.
func (s *Store) DeleteBySource(_ context.Context, sourceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, doc := range s.docs {
		if doc.SourceID() == sourceID {
			delete(s.docs, id)
			delete(s.embeddings, id)
			removed++
		}
	}
	return removed, nil
}

// SourceIDs returns the distinct sourceIds present for the given types.
func (s *Store) SourceIDs(_ context.Context, types []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, doc := range s.docs {
		if len(types) > 0 && !containsString(types, doc.Type()) {
			continue
		}
		sourceID := doc.SourceID()
		if sourceID == "" || seen[sourceID] {
			continue
		}
		seen[sourceID] = true
		ids = append(ids, sourceID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Search returns the k most similar rows by cosine similarity.
func (s *Store) Search(_ context.Context, embedding []float32, k int) ([]driven.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.Hit
	for _, id := range s.sortedIDs() {
		stored, ok := s.embeddings[id]
		if !ok {
			continue
		}
		hits = append(hits, driven.Hit{
			Document:   cloneDocument(s.docs[id]),
			Similarity: cosineSimilarity(embedding, stored),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the stored row count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matches(doc domain.Document, filter driven.RowFilter) bool {
	if len(filter.Types) > 0 && !containsString(filter.Types, doc.Type()) {
		return false
	}
	if filter.SourceID != "" && doc.SourceID() != filter.SourceID {
		return false
	}
	return true
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

func cloneDocument(doc domain.Document) domain.Document {
	metadata := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	doc.Metadata = metadata
	return doc
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
