package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
	"github.com/communitykit/communitybot/internal/core/ports/driving"
	"github.com/communitykit/communitybot/internal/frontmatter"
	"github.com/communitykit/communitybot/internal/identity"
	"github.com/communitykit/communitybot/internal/logger"
)

// Ensure Assistant implements the interface.
var _ driving.Assistant = (*Assistant)(nil)

// assistantTopK is how many index rows back an answer.
const assistantTopK = 8

const assistantSystemPrompt = `You are a helpful assistant for a community workspace.
Answer the question using only the provided context documents.
If the context does not contain the answer, say you don't know.
Keep answers short and cite nothing the context does not support.`

// Assistant answers questions by retrieval-augmented generation over the
// knowledge index and indexes single messages on demand.
type Assistant struct {
	store      driven.VectorStore
	embeddings driven.EmbeddingService
	llm        driven.CompletionService
}

// NewAssistant creates an assistant service.
func NewAssistant(store driven.VectorStore, embeddings driven.EmbeddingService, llm driven.CompletionService) *Assistant {
	return &Assistant{store: store, embeddings: embeddings, llm: llm}
}

// Answer embeds the question, retrieves the most similar documents and
// asks the completion model for a reply grounded in them. The retrieved
// documents' titles and permalinks come back as sources.
func (a *Assistant) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrInvalidInput
	}

	embedding, err := a.embeddings.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := a.store.Search(ctx, embedding, assistantTopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	var contextBlock strings.Builder
	var sources []domain.AnswerSource
	seen := make(map[string]bool)
	for i, hit := range hits {
		fmt.Fprintf(&contextBlock, "[Document %d]\n%s\n\n", i+1, hit.Document.Content)

		link := hit.Document.Metadata[domain.MetaPermalink]
		if link == "" {
			link = hit.Document.Metadata[domain.MetaURL]
		}
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		title := hit.Document.Title()
		if title == "" {
			title = link
		}
		sources = append(sources, domain.AnswerSource{Title: title, Link: link})
	}

	user := fmt.Sprintf("Context:\n%s\nQuestion: %s", contextBlock.String(), question)
	text, err := a.llm.Complete(ctx, assistantSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{Text: strings.TrimSpace(text), Sources: sources}, nil
}

// AddMessage indexes one Slack message immediately, outside any sync run.
// Adding the same message twice replaces the earlier row.
func (a *Assistant) AddMessage(ctx context.Context, msg domain.ChannelMessage) error {
	if msg.ChannelID == "" || msg.TS == "" || strings.TrimSpace(msg.Text) == "" {
		return domain.ErrInvalidInput
	}

	id := identity.MessageDocumentID(msg.ChannelID, msg.TS)

	header := frontmatter.NewHeader().
		Set("Type", "Slack Message").
		Set("Channel", msg.ChannelName).
		Set("Author", msg.UserName)

	doc := domain.Document{
		ID:      id,
		Content: header.Prepend(msg.Text),
		Metadata: map[string]string{
			domain.MetaType:      domain.TypeSlackMessage,
			domain.MetaSourceID:  id,
			domain.MetaTargetID:  msg.ChannelID,
			domain.MetaSignal:    msg.TS,
			domain.MetaChannel:   msg.ChannelName,
			domain.MetaAuthor:    msg.UserName,
			domain.MetaPermalink: msg.Permalink,
			domain.MetaTimestamp: msg.TS,
		},
	}

	start := time.Now()
	if _, err := a.store.DeleteBySource(ctx, id); err != nil {
		return fmt.Errorf("replace message %s: %w", id, err)
	}
	if err := a.store.Upsert(ctx, []domain.Document{doc}); err != nil {
		return fmt.Errorf("index message %s: %w", id, err)
	}
	logger.Debug("Indexed message %s in %s", id, time.Since(start))
	return nil
}
