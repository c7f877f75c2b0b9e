package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/core/domain"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

const jobStatusOpen = "Open"

// JobBoardService manages the job board database.
type JobBoardService struct {
	notion     NotionStore
	databaseID string
}

// NewJobBoardService creates a job board service.
func NewJobBoardService(notion NotionStore, databaseID string) *JobBoardService {
	return &JobBoardService{notion: notion, databaseID: databaseID}
}

// ListOpen returns postings whose status is Open, newest first.
func (s *JobBoardService) ListOpen(ctx context.Context) ([]domain.JobPosting, error) {
	var postings []domain.JobPosting
	err := s.notion.QueryDatabase(ctx, s.databaseID, func(page notionapi.Page) error {
		if pageSelect(page, "Status") != jobStatusOpen {
			return nil
		}
		postings = append(postings, domain.JobPosting{
			ID:        string(page.ID),
			Title:     nclient.PageTitle(&page),
			Company:   pageRichText(page, "Company"),
			Details:   pageRichText(page, "Details"),
			Link:      pageURLProp(page, "Link"),
			Contact:   pageRichText(page, "Contact"),
			CreatedAt: page.CreatedTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query job board: %w", err)
	}

	sort.Slice(postings, func(i, j int) bool {
		return postings[i].CreatedAt.After(postings[j].CreatedAt)
	})
	return postings, nil
}

// Create adds a posting, status Open.
func (s *JobBoardService) Create(ctx context.Context, posting domain.JobPosting) (*domain.JobPosting, error) {
	if posting.Title == "" {
		return nil, domain.ErrInvalidInput
	}

	page, err := s.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: databaseParent(s.databaseID),
		Properties: notionapi.Properties{
			"Name":    titleValue(posting.Title),
			"Company": richTextValue(posting.Company),
			"Details": richTextValue(posting.Details),
			"Link":    urlValue(posting.Link),
			"Contact": richTextValue(posting.Contact),
			"Status":  selectValue(jobStatusOpen),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create job posting: %w", err)
	}

	posting.ID = string(page.ID)
	posting.CreatedAt = page.CreatedTime
	return &posting, nil
}
