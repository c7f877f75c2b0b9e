package slackapp

import (
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/core/domain"
)

func TestStripMention(t *testing.T) {
	assert.Equal(t, "how do I deploy?", stripMention("<@U12345> how do I deploy?"))
	assert.Equal(t, "two bots", stripMention("<@U1> <@U2> two bots"))
	assert.Equal(t, "", stripMention("<@U12345>"))
	assert.Equal(t, "no mention here", stripMention("  no mention here "))
}

func TestSplitOnPipe(t *testing.T) {
	title, rest := splitOnPipe("Standing desks | for the back pain")
	assert.Equal(t, "Standing desks", title)
	assert.Equal(t, "for the back pain", rest)

	title, rest = splitOnPipe("just a title")
	assert.Equal(t, "just a title", title)
	assert.Empty(t, rest)
}

func TestFormatReport(t *testing.T) {
	update := domain.Report{
		Kind:   domain.ReportUpdate,
		Target: domain.TargetNotionPage,
		ID:     "page-1",
		Stats: domain.LoaderStats{
			Added:   []string{"a", "b"},
			Skipped: []string{"c"},
		},
	}
	assert.Contains(t, formatReport(update), "2 added")
	assert.Contains(t, formatReport(update), "1 skipped")

	removed := domain.Report{Kind: domain.ReportRemoved, Target: domain.TargetWebsitePage, ID: "/pricing", Amount: 3}
	assert.Contains(t, formatReport(removed), "removed (3 rows)")

	failed := domain.Report{Kind: domain.ReportError, Target: domain.TargetNotionPage, ID: "page-9", Err: "boom"}
	assert.Contains(t, formatReport(failed), "failed: boom")
}

func TestRenderAnswer(t *testing.T) {
	answer := &domain.Answer{
		Text: "Deploys run from main.",
		Sources: []domain.AnswerSource{
			{Title: "Deploy guide", Link: "https://notion.so/deploy"},
		},
	}
	rendered := renderAnswer(answer)
	assert.Contains(t, rendered, "Deploys run from main.")
	assert.Contains(t, rendered, "<https://notion.so/deploy|Deploy guide>")

	bare := renderAnswer(&domain.Answer{Text: "Just text."})
	assert.NotContains(t, bare, "Sources")
}

func TestWishlistBlocks_ButtonPerItem(t *testing.T) {
	items := []domain.WishlistItem{
		{ID: "item-1", Title: "Quiet room", VoterIDs: []string{"p1", "p2"}},
		{ID: "item-2", Title: "Better coffee", Description: "The machine is old."},
	}

	blocks := wishlistBlocks(items)
	require.Len(t, blocks, 3)

	section, ok := blocks[1].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, section.Text.Text, "Quiet room")
	assert.Contains(t, section.Text.Text, "2 votes")
	require.NotNil(t, section.Accessory)
	button := section.Accessory.ButtonElement
	require.NotNil(t, button)
	assert.Equal(t, wishlistVoteActionID, button.ActionID)
	assert.Equal(t, "item-1", button.Value)
}

func TestHomeBlocks_SkipsEmptySections(t *testing.T) {
	overview := &domain.HomeOverview{
		Leaderboard: []domain.LeaderboardRow{{UserID: "U1", UserName: "Ada", Total: 6}},
	}

	blocks := homeBlocks(overview)
	require.Len(t, blocks, 3)

	var headers []string
	for _, block := range blocks {
		if header, ok := block.(*slack.HeaderBlock); ok {
			headers = append(headers, header.Text.Text)
		}
	}
	assert.Equal(t, []string{"Community dashboard", "Credit leaderboard"}, headers)
}
