package services

import (
	"context"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/logger"
)

const homeRecentIdeas = 3

// HomeService assembles the community summaries shown on the Slack home
// tab. Each section degrades independently: a failing source leaves its
// section empty instead of blanking the whole tab.
type HomeService struct {
	wishlist *WishlistService
	credits  *CreditService
	ideas    *IdeaService
	jobs     *JobBoardService
}

// NewHomeService creates a home dashboard service.
func NewHomeService(wishlist *WishlistService, credits *CreditService, ideas *IdeaService, jobs *JobBoardService) *HomeService {
	return &HomeService{wishlist: wishlist, credits: credits, ideas: ideas, jobs: jobs}
}

// Overview gathers the dashboard sections.
func (s *HomeService) Overview(ctx context.Context) (*domain.HomeOverview, error) {
	overview := &domain.HomeOverview{}

	var err error
	if overview.WishlistTop, err = s.wishlist.Top(ctx); err != nil {
		logger.Warn("Home: wishlist summary unavailable: %v", err)
	}
	if overview.Leaderboard, err = s.credits.Leaderboard(ctx); err != nil {
		logger.Warn("Home: leaderboard unavailable: %v", err)
	}
	if overview.RecentIdeas, err = s.ideas.Recent(ctx, homeRecentIdeas); err != nil {
		logger.Warn("Home: recent ideas unavailable: %v", err)
	}
	if overview.OpenJobs, err = s.jobs.ListOpen(ctx); err != nil {
		logger.Warn("Home: job board unavailable: %v", err)
	}
	return overview, nil
}
