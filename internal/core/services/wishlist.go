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
	wishlistSummaryKey = "wishlist:summary-top"
	wishlistSummaryTTL = 5 * time.Minute
	wishlistTopN       = 5
)

// WishlistService manages the community wishlist database: listing items
// with vote counts and toggling a member's vote.
type WishlistService struct {
	notion     NotionStore
	cache      driven.Cache
	members    *MemberDirectory
	databaseID string
}

// NewWishlistService creates a wishlist service.
func NewWishlistService(notion NotionStore, cache driven.Cache, members *MemberDirectory, databaseID string) *WishlistService {
	return &WishlistService{notion: notion, cache: cache, members: members, databaseID: databaseID}
}

// List returns every wishlist item, most voted first.
func (s *WishlistService) List(ctx context.Context) ([]domain.WishlistItem, error) {
	var items []domain.WishlistItem
	err := s.notion.QueryDatabase(ctx, s.databaseID, func(page notionapi.Page) error {
		items = append(items, itemFromPage(page))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Votes() > items[j].Votes()
	})
	return items, nil
}

// ToggleVote adds the user's vote to an item, or withdraws it when the
// user already voted. Returns the item as stored after the toggle.
func (s *WishlistService) ToggleVote(ctx context.Context, itemID, slackUserID string) (*domain.WishlistItem, error) {
	memberID, err := s.members.ProfileID(ctx, slackUserID)
	if err != nil {
		return nil, err
	}

	page, err := s.notion.GetPage(ctx, itemID)
	if err != nil {
		if nclient.IsNotFound(err) {
			return nil, fmt.Errorf("%w: wishlist item %s", domain.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("get wishlist item: %w", err)
	}
	item := itemFromPage(*page)

	var voters []string
	if item.HasVoted(memberID) {
		for _, id := range item.VoterIDs {
			if id != memberID {
				voters = append(voters, id)
			}
		}
	} else {
		voters = append(append(voters, item.VoterIDs...), memberID)
	}

	_, err = s.notion.UpdatePage(ctx, itemID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Voters": relationValue(voters),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("update wishlist votes: %w", err)
	}

	// The cached summary is stale now.
	_ = s.cache.Delete(ctx, wishlistSummaryKey)

	item.VoterIDs = voters
	return &item, nil
}

// Add creates a new wishlist item.
func (s *WishlistService) Add(ctx context.Context, title, description, authorID string) (*domain.WishlistItem, error) {
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
		return nil, fmt.Errorf("create wishlist item: %w", err)
	}

	_ = s.cache.Delete(ctx, wishlistSummaryKey)
	return &domain.WishlistItem{
		ID:          string(page.ID),
		Title:       title,
		Description: description,
		AuthorID:    authorID,
	}, nil
}

// Top returns the most voted items, served from cache when fresh.
func (s *WishlistService) Top(ctx context.Context) ([]domain.WishlistItem, error) {
	if cached, err := s.cache.Get(ctx, wishlistSummaryKey); err == nil {
		var items []domain.WishlistItem
		if err := unmarshalCached(cached, &items); err == nil {
			return items, nil
		}
	}

	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) > wishlistTopN {
		items = items[:wishlistTopN]
	}

	if encoded, err := marshalCached(items); err == nil {
		_ = s.cache.Set(ctx, wishlistSummaryKey, encoded, wishlistSummaryTTL)
	}
	return items, nil
}

func itemFromPage(page notionapi.Page) domain.WishlistItem {
	return domain.WishlistItem{
		ID:          string(page.ID),
		Title:       nclient.PageTitle(&page),
		Description: pageRichText(page, "Description"),
		AuthorID:    pageRichText(page, "Author"),
		VoterIDs:    pageRelationIDs(page, "Voters"),
	}
}
