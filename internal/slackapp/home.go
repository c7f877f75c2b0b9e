package slackapp

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/logger"
)

// wishlistVoteActionID identifies the vote toggle button.
const wishlistVoteActionID = "wishlist_vote"

// handleHomeOpened publishes the dashboard view for the opening user.
func (a *App) handleHomeOpened(ctx context.Context, ev *slackevents.AppHomeOpenedEvent) {
	overview, err := a.home.Overview(ctx)
	if err != nil {
		logger.Error("Failed to assemble home overview: %v", err)
		return
	}

	view := slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{
			BlockSet: homeBlocks(overview),
		},
	}
	if _, err := a.api.PublishViewContext(ctx, ev.User, view, ""); err != nil {
		logger.Warn("Failed to publish home view: %v", err)
	}
}

func homeBlocks(overview *domain.HomeOverview) []slack.Block {
	blocks := []slack.Block{
		headerBlock("Community dashboard"),
	}

	if len(overview.WishlistTop) > 0 {
		blocks = append(blocks, headerBlock("Top wishlist items"))
		for _, item := range overview.WishlistTop {
			blocks = append(blocks, markdownSection(
				fmt.Sprintf("*%s* (%d votes)", item.Title, item.Votes())))
		}
	}

	if len(overview.Leaderboard) > 0 {
		blocks = append(blocks, headerBlock("Credit leaderboard"))
		for i, row := range overview.Leaderboard {
			if i == 5 {
				break
			}
			name := row.UserName
			if name == "" {
				name = row.UserID
			}
			blocks = append(blocks, markdownSection(
				fmt.Sprintf("%d. %s with %d credits", i+1, name, row.Total)))
		}
	}

	if len(overview.RecentIdeas) > 0 {
		blocks = append(blocks, headerBlock("Fresh ideas"))
		for _, idea := range overview.RecentIdeas {
			blocks = append(blocks, markdownSection(fmt.Sprintf("*%s*", idea.Title)))
		}
	}

	if len(overview.OpenJobs) > 0 {
		blocks = append(blocks, headerBlock("Open positions"))
		for _, job := range overview.OpenJobs {
			text := fmt.Sprintf("*%s* at %s", job.Title, job.Company)
			if job.Link != "" {
				text += fmt.Sprintf(" (<%s|details>)", job.Link)
			}
			blocks = append(blocks, markdownSection(text))
		}
	}

	return blocks
}

// wishlistBlocks renders the list with a vote toggle button per item.
func wishlistBlocks(items []domain.WishlistItem) []slack.Block {
	blocks := []slack.Block{headerBlock("Community wishlist")}
	for _, item := range items {
		text := fmt.Sprintf("*%s* (%d votes)", item.Title, item.Votes())
		if item.Description != "" {
			text += "\n" + item.Description
		}

		button := slack.NewButtonBlockElement(
			wishlistVoteActionID, item.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Toggle vote", false, false))

		section := slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			nil,
			slack.NewAccessory(button))
		blocks = append(blocks, section)
	}
	return blocks
}

func headerBlock(text string) slack.Block {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, false, false))
}

func markdownSection(text string) slack.Block {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
		nil, nil)
}
