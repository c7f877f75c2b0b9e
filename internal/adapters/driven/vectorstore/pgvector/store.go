// Package pgvector provides a vector store adapter backed by PostgreSQL
// with the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTable is the index table name.
const DefaultTable = "knowledge_index"

// upsert embeds in batches of this size to stay under request limits.
const embedBatchSize = 64

// batchEmbedder is implemented by embedding services that support
// multi-input requests. Without it the store embeds one text at a time.
type batchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the PostgreSQL connection settings.
type Config struct {
	// DSN is the PostgreSQL connection string (required).
	DSN string

	// Table is the index table name (default: knowledge_index).
	Table string
}

// Store persists documents and embeddings in one pgvector table.
// Embedding happens inside the store so callers hand over plain documents.
type Store struct {
	db       *gorm.DB
	embedder driven.EmbeddingService
	table    string
}

// row is the table shape. Metadata is a JSONB column queried through
// ->> expressions, so new metadata keys need no migration.
type row struct {
	ID        string          `gorm:"column:id;primaryKey"`
	Content   string          `gorm:"column:content"`
	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector"`
}

// New opens the database, ensures the extension and table exist and
// returns the store.
func New(cfg Config, embedder driven.EmbeddingService) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: open database: %w", err)
	}

	s := &Store{db: db, embedder: embedder, table: cfg.Table}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id text PRIMARY KEY,
		content text NOT NULL,
		metadata jsonb NOT NULL DEFAULT '{}',
		embedding vector(%d)
	)`, s.table, s.embedder.Dimensions())
	if err := s.db.Exec(create).Error; err != nil {
		return fmt.Errorf("pgvector: create table: %w", err)
	}

	for _, idx := range []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_source_idx ON %s ((metadata->>'sourceId'))", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_type_idx ON %s ((metadata->>'type'))", s.table, s.table),
	} {
		if err := s.db.Exec(idx).Error; err != nil {
			return fmt.Errorf("pgvector: create index: %w", err)
		}
	}
	return nil
}

// Query returns rows matching the filter, without embeddings.
func (s *Store) Query(ctx context.Context, filter driven.RowFilter) ([]domain.Document, error) {
	q := s.db.WithContext(ctx).Table(s.table).Select("id, content, metadata")
	if len(filter.Types) > 0 {
		q = q.Where("metadata->>'type' IN ?", filter.Types)
	}
	if filter.SourceID != "" {
		q = q.Where("metadata->>'sourceId' = ?", filter.SourceID)
	}

	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Upsert embeds the documents and replaces them by id in one transaction.
func (s *Store) Upsert(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("pgvector: embed: %w", err)
	}

	rows := make([]row, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: encode metadata for %s: %w", doc.ID, err)
		}
		rows[i] = row{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  metadata,
			Embedding: pgvector.NewVector(embeddings[i]),
		}
		ids[i] = doc.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+s.table+" WHERE id IN ?", ids).Error; err != nil {
			return err
		}
		return tx.Table(s.table).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("pgvector: upsert: %w", err)
	}
	return nil
}

// DeleteByID removes rows by document id.
func (s *Store) DeleteByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Exec("DELETE FROM "+s.table+" WHERE id IN ?", ids)
	if result.Error != nil {
		return 0, fmt.Errorf("pgvector: delete by id: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// DeleteBySource removes all rows of one parent unit, chunks included.
func (s *Store) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	result := s.db.WithContext(ctx).Exec(
		"DELETE FROM "+s.table+" WHERE metadata->>'sourceId' = ?", sourceID)
	if result.Error != nil {
		return 0, fmt.Errorf("pgvector: delete by source: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// SourceIDs returns the distinct sourceIds present for the given types.
func (s *Store) SourceIDs(ctx context.Context, types []string) ([]string, error) {
	q := s.db.WithContext(ctx).Table(s.table)
	if len(types) > 0 {
		q = q.Where("metadata->>'type' IN ?", types)
	}

	var ids []string
	if err := q.Distinct().Pluck("metadata->>'sourceId'", &ids).Error; err != nil {
		return nil, fmt.Errorf("pgvector: source ids: %w", err)
	}
	return ids, nil
}

// searchRow adds the computed similarity to the table shape.
type searchRow struct {
	row
	Similarity float64 `gorm:"column:similarity"`
}

// Search returns the k nearest rows by cosine distance.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]driven.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(embedding)

	var rows []searchRow
	query := fmt.Sprintf(
		"SELECT id, content, metadata, 1 - (embedding <=> ?) AS similarity FROM %s ORDER BY embedding <=> ? LIMIT ?",
		s.table)
	if err := s.db.WithContext(ctx).Raw(query, vec, vec, k).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}

	hits := make([]driven.Hit, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.Hit{Document: doc, Similarity: r.Similarity})
	}
	return hits, nil
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if batcher, ok := s.embedder.(batchEmbedder); ok {
		out := make([][]float32, 0, len(texts))
		for start := 0; start < len(texts); start += embedBatchSize {
			end := start + embedBatchSize
			if end > len(texts) {
				end = len(texts)
			}
			batch, err := batcher.EmbedBatch(ctx, texts[start:end])
			if err != nil {
				return nil, err
			}
			out = append(out, batch...)
		}
		return out, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = embedding
	}
	return out, nil
}

func (r *row) document() (domain.Document, error) {
	metadata := make(map[string]string)
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
			return domain.Document{}, fmt.Errorf("pgvector: decode metadata for %s: %w", r.ID, err)
		}
	}
	return domain.Document{ID: r.ID, Content: r.Content, Metadata: metadata}, nil
}
