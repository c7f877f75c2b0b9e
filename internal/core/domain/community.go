package domain

import "time"

// WishlistItem is one entry in the community wishlist database.
type WishlistItem struct {
	ID          string
	Title       string
	Description string
	AuthorID    string

	// VoterIDs holds the member profile ids of everyone who upvoted.
	VoterIDs []string
}

// Votes returns the current vote count.
func (w *WishlistItem) Votes() int {
	return len(w.VoterIDs)
}

// HasVoted reports whether the given member already upvoted the item.
func (w *WishlistItem) HasVoted(memberID string) bool {
	for _, id := range w.VoterIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// JobPosting is one entry in the job board database.
type JobPosting struct {
	ID        string
	Title     string
	Company   string
	Details   string
	Link      string
	Contact   string
	CreatedAt time.Time
}

// Idea is one submission in the idea factory database.
type Idea struct {
	ID          string
	Title       string
	Description string
	AuthorID    string
	CreatedAt   time.Time
}

// Skill is one skill entry attached to a scholar profile.
type Skill struct {
	ID     string
	UserID string
	Name   string

	// Level is a 1-5 self assessment.
	Level int
}

// CreditEntry is one community-credit grant.
type CreditEntry struct {
	ID        string
	UserID    string
	UserName  string
	Amount    int
	Reason    string
	GrantedAt time.Time
}

// LeaderboardRow aggregates credits per scholar.
type LeaderboardRow struct {
	UserID   string
	UserName string
	Total    int
}

// HomeOverview assembles the community summaries shown on the Slack home
// tab.
type HomeOverview struct {
	WishlistTop []WishlistItem
	Leaderboard []LeaderboardRow
	RecentIdeas []Idea
	OpenJobs    []JobPosting
}
