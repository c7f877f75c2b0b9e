package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/core/domain"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

// IdeaService manages the idea factory database.
type IdeaService struct {
	notion     NotionStore
	databaseID string
}

// NewIdeaService creates an idea factory service.
func NewIdeaService(notion NotionStore, databaseID string) *IdeaService {
	return &IdeaService{notion: notion, databaseID: databaseID}
}

// Submit records a new idea.
func (s *IdeaService) Submit(ctx context.Context, title, description, authorID string) (*domain.Idea, error) {
	if title == "" {
		return nil, domain.ErrInvalidInput
	}

	page, err := s.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: databaseParent(s.databaseID),
		Properties: notionapi.Properties{
			"Name":        titleValue(title),
			"Description": richTextValue(description),
			"Author":      richTextValue(authorID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}

	return &domain.Idea{
		ID:          string(page.ID),
		Title:       title,
		Description: description,
		AuthorID:    authorID,
		CreatedAt:   page.CreatedTime,
	}, nil
}

// Recent returns the n most recently submitted ideas.
func (s *IdeaService) Recent(ctx context.Context, n int) ([]domain.Idea, error) {
	var ideas []domain.Idea
	err := s.notion.QueryDatabase(ctx, s.databaseID, func(page notionapi.Page) error {
		ideas = append(ideas, domain.Idea{
			ID:          string(page.ID),
			Title:       nclient.PageTitle(&page),
			Description: pageRichText(page, "Description"),
			AuthorID:    pageRichText(page, "Author"),
			CreatedAt:   page.CreatedTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query ideas: %w", err)
	}

	sort.Slice(ideas, func(i, j int) bool {
		return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
	})
	if n > 0 && len(ideas) > n {
		ideas = ideas[:n]
	}
	return ideas, nil
}
