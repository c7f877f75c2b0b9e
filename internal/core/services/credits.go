package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jomei/notionapi"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
	nclient "github.com/communitykit/communitybot/internal/notion"
)

const (
	leaderboardKey = "credits:leaderboard"
	leaderboardTTL = 5 * time.Minute
)

// CreditService aggregates community-credit grants into a leaderboard.
type CreditService struct {
	notion     NotionStore
	cache      driven.Cache
	databaseID string
}

// NewCreditService creates a credit service.
func NewCreditService(notion NotionStore, cache driven.Cache, databaseID string) *CreditService {
	return &CreditService{notion: notion, cache: cache, databaseID: databaseID}
}

// Entries returns every credit grant in the database.
func (s *CreditService) Entries(ctx context.Context) ([]domain.CreditEntry, error) {
	var entries []domain.CreditEntry
	err := s.notion.QueryDatabase(ctx, s.databaseID, func(page notionapi.Page) error {
		entries = append(entries, domain.CreditEntry{
			ID:        string(page.ID),
			UserID:    pageRichText(page, "Member"),
			UserName:  pageRichText(page, "Member Name"),
			Amount:    int(pageNumber(page, "Amount")),
			Reason:    nclient.PageTitle(&page),
			GrantedAt: page.CreatedTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	return entries, nil
}

// Grant records a credit grant.
func (s *CreditService) Grant(ctx context.Context, entry domain.CreditEntry) (*domain.CreditEntry, error) {
	if entry.UserID == "" || entry.Amount == 0 {
		return nil, domain.ErrInvalidInput
	}

	page, err := s.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: databaseParent(s.databaseID),
		Properties: notionapi.Properties{
			"Name":        titleValue(entry.Reason),
			"Member":      richTextValue(entry.UserID),
			"Member Name": richTextValue(entry.UserName),
			"Amount":      numberValue(float64(entry.Amount)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create credit entry: %w", err)
	}

	_ = s.cache.Delete(ctx, leaderboardKey)
	entry.ID = string(page.ID)
	entry.GrantedAt = page.CreatedTime
	return &entry, nil
}

// Leaderboard aggregates totals per member, highest first, served from
// cache when fresh.
func (s *CreditService) Leaderboard(ctx context.Context) ([]domain.LeaderboardRow, error) {
	if cached, err := s.cache.Get(ctx, leaderboardKey); err == nil {
		var rows []domain.LeaderboardRow
		if err := unmarshalCached(cached, &rows); err == nil {
			return rows, nil
		}
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*domain.LeaderboardRow)
	var order []string
	for _, entry := range entries {
		row, ok := totals[entry.UserID]
		if !ok {
			row = &domain.LeaderboardRow{UserID: entry.UserID, UserName: entry.UserName}
			totals[entry.UserID] = row
			order = append(order, entry.UserID)
		}
		row.Total += entry.Amount
		if row.UserName == "" {
			row.UserName = entry.UserName
		}
	}

	rows := make([]domain.LeaderboardRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *totals[id])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})

	if encoded, err := marshalCached(rows); err == nil {
		_ = s.cache.Set(ctx, leaderboardKey, encoded, leaderboardTTL)
	}
	return rows, nil
}
