// Package slackchannel loads recent messages from a Slack channel into
// normalized documents for the knowledge index.
//
// Slack messages are treated as immutable: a message id already present in
// the previous snapshot is skipped, and messages aging out of the fetch
// window are never removed from the index.
package slackchannel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/communitykit/communitybot/internal/chunker"
	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/frontmatter"
	"github.com/communitykit/communitybot/internal/identity"
	"github.com/communitykit/communitybot/internal/logger"
)

// DefaultWindow bounds how far back history is fetched.
const DefaultWindow = 30 * 24 * time.Hour

const historyPageSize = 200

// API is the slice of the Slack client the loader needs.
// *slack.Client implements it; tests substitute a fake.
type API interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Options configures one load run over a single channel.
type Options struct {
	// Client is the Slack API capability.
	Client API

	// ChannelID is the channel to read.
	ChannelID string

	// ChannelName is the display name stored in message metadata.
	ChannelName string

	// BotUserID filters out messages that address the bot directly.
	// Those are questions, not knowledge.
	BotUserID string

	// Window bounds how far back history is fetched. Zero means
	// DefaultWindow.
	Window time.Duration

	// PrevSignals maps unit id to the signal stored during the previous
	// run. Known ids are skipped.
	PrevSignals map[string]string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Result is the outcome of one load run.
type Result struct {
	// Documents holds one document per newly seen message.
	Documents []domain.Document

	// Stats classifies every indexable message seen in the window.
	Stats domain.LoaderStats
}

// Load fetches the channel's recent history and emits one document per
// message not yet indexed. It never reports removals: the fetch window
// sliding past a message is not a deletion.
func Load(ctx context.Context, opts Options) (*Result, error) {
	if opts.Client == nil || opts.ChannelID == "" {
		return nil, domain.ErrInvalidInput
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	r := &run{
		api:   opts.Client,
		opts:  opts,
		res:   &Result{},
		names: make(map[string]string),
	}

	oldest := fmt.Sprintf("%d.000000", now().Add(-opts.Window).Unix())
	cursor := ""
	for {
		resp, err := r.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: opts.ChannelID,
			Oldest:    oldest,
			Limit:     historyPageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("channel history %s: %w", opts.ChannelID, err)
		}

		for _, msg := range resp.Messages {
			r.loadMessage(ctx, msg)
		}

		cursor = resp.ResponseMetaData.NextCursor
		if cursor == "" || !resp.HasMore {
			break
		}
	}

	return r.res, nil
}

type run struct {
	api  API
	opts Options
	res  *Result

	// names memoizes user id to display name lookups within the run.
	names map[string]string
}

func (r *run) loadMessage(ctx context.Context, msg slack.Message) {
	if !indexable(msg, r.opts.BotUserID) {
		return
	}

	id := identity.MessageDocumentID(r.opts.ChannelID, msg.Timestamp)
	if _, known := r.opts.PrevSignals[id]; known {
		r.res.Stats.Skipped = append(r.res.Stats.Skipped, id)
		return
	}
	r.res.Stats.Added = append(r.res.Stats.Added, id)

	author := r.userName(ctx, msg.User)
	permalink := r.permalink(ctx, msg.Timestamp)

	header := frontmatter.NewHeader().
		Set("Type", "Slack Message").
		Set("Channel", r.opts.ChannelName).
		Set("Author", author).
		Set("Date", messageTime(msg.Timestamp).Format(time.RFC3339))

	doc := domain.Document{
		ID:      id,
		Content: msg.Text,
		Metadata: map[string]string{
			domain.MetaType:      domain.TypeSlackMessage,
			domain.MetaSourceID:  id,
			domain.MetaTargetID:  r.opts.ChannelID,
			domain.MetaSignal:    msg.Timestamp,
			domain.MetaChannel:   r.opts.ChannelName,
			domain.MetaAuthor:    author,
			domain.MetaPermalink: permalink,
			domain.MetaTimestamp: msg.Timestamp,
		},
	}
	r.res.Documents = append(r.res.Documents, chunker.SplitDocument(doc, header, nil)...)
}

// indexable filters out messages that carry no channel knowledge: system
// subtypes, bot posts, empty bodies and direct questions to the bot.
func indexable(msg slack.Message, botUserID string) bool {
	if msg.SubType != "" || msg.BotID != "" {
		return false
	}
	if strings.TrimSpace(msg.Text) == "" {
		return false
	}
	if botUserID != "" && strings.Contains(msg.Text, "<@"+botUserID+">") {
		return false
	}
	return true
}

func (r *run) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	if name, ok := r.names[userID]; ok {
		return name
	}

	name := userID
	user, err := r.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		logger.Debug("Failed to resolve slack user %s: %v", userID, err)
	} else if user.Profile.DisplayName != "" {
		name = user.Profile.DisplayName
	} else if user.RealName != "" {
		name = user.RealName
	}

	r.names[userID] = name
	return name
}

func (r *run) permalink(ctx context.Context, ts string) string {
	link, err := r.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: r.opts.ChannelID,
		Ts:      ts,
	})
	if err != nil {
		logger.Debug("Failed to resolve permalink for %s/%s: %v", r.opts.ChannelID, ts, err)
		return ""
	}
	return link
}

// messageTime converts a Slack "seconds.fraction" timestamp to a time.
func messageTime(ts string) time.Time {
	seconds, _, _ := strings.Cut(ts, ".")
	unix, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
