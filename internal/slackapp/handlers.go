package slackapp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/logger"
)

// handleMention answers a question addressed to the bot, in thread.
func (a *App) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	question := stripMention(ev.Text)
	if question == "" {
		a.postMessage(ctx, ev.Channel,
			slack.MsgOptionText("Ask me something and I'll search the community knowledge base.", false),
			slack.MsgOptionTS(ev.TimeStamp))
		return
	}

	answer, err := a.assistant.Answer(ctx, question)
	if err != nil {
		logger.Error("Failed to answer question: %v", err)
		a.postMessage(ctx, ev.Channel,
			slack.MsgOptionText("Sorry, I couldn't answer that right now.", false),
			slack.MsgOptionTS(ev.TimeStamp))
		return
	}

	a.postMessage(ctx, ev.Channel,
		slack.MsgOptionText(renderAnswer(answer), false),
		slack.MsgOptionTS(ev.TimeStamp))
}

func (a *App) handleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	switch callback.Type {
	case slack.InteractionTypeMessageAction:
		switch callback.CallbackID {
		case addToAssistantCallbackID:
			a.handleAddToAssistant(ctx, callback)
		case addToInboxCallbackID:
			a.handleAddToInbox(ctx, callback)
		}

	case slack.InteractionTypeShortcut:
		if callback.CallbackID == createPostShortcutID {
			a.handleCreatePostShortcut(ctx, callback)
		}

	case slack.InteractionTypeViewSubmission:
		switch callback.View.CallbackID {
		case inboxModalCallbackID:
			a.handleInboxSubmission(ctx, callback)
		case postModalCallbackID:
			a.handlePostSubmission(ctx, callback)
		}

	case slack.InteractionTypeBlockActions:
		for _, action := range callback.ActionCallback.BlockActions {
			switch action.ActionID {
			case wishlistVoteActionID:
				a.handleWishlistVote(ctx, callback, action.Value)
			case domain.InboxActionDone, domain.InboxActionDismiss:
				a.handleInboxResolution(ctx, callback, action.ActionID, action.Value)
			}
		}
	}
}

// handleAddToAssistant indexes the targeted message immediately.
func (a *App) handleAddToAssistant(ctx context.Context, callback slack.InteractionCallback) {
	msg := domain.ChannelMessage{
		ChannelID:   callback.Channel.ID,
		ChannelName: callback.Channel.Name,
		UserID:      callback.Message.User,
		Text:        callback.Message.Text,
		TS:          callback.Message.Timestamp,
	}

	if user, err := a.api.GetUserInfoContext(ctx, msg.UserID); err == nil {
		msg.UserName = user.Profile.DisplayName
		if msg.UserName == "" {
			msg.UserName = user.RealName
		}
	}
	if link, err := a.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: msg.ChannelID,
		Ts:      msg.TS,
	}); err == nil {
		msg.Permalink = link
	}

	if err := a.assistant.AddMessage(ctx, msg); err != nil {
		logger.Error("Failed to add message to assistant: %v", err)
		a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, "Couldn't add that message to the assistant.")
		return
	}
	a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, "Added to the assistant's knowledge base.")
}

func (a *App) handleWishlistVote(ctx context.Context, callback slack.InteractionCallback, itemID string) {
	item, err := a.wishlist.ToggleVote(ctx, itemID, callback.User.ID)
	if err != nil {
		logger.Error("Failed to toggle vote: %v", err)
		a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, "Couldn't register your vote.")
		return
	}
	a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID,
		fmt.Sprintf("%q now has %d votes.", item.Title, item.Votes()))
}

func (a *App) handleCommand(ctx context.Context, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/ask":
		a.commandAsk(ctx, cmd)
	case "/sync-assistant":
		a.commandSync(ctx, cmd, "assistant", a.orchestrator.SyncNotion)
	case "/sync-website":
		a.commandSync(ctx, cmd, "website", a.orchestrator.SyncWebsite)
	case "/sync-slack":
		a.commandSync(ctx, cmd, "slack", a.orchestrator.SyncSlack)
	case "/wishlist":
		a.commandWishlist(ctx, cmd)
	case "/wishlist-add":
		a.commandWishlistAdd(ctx, cmd)
	case "/jobs":
		a.commandJobs(ctx, cmd)
	case "/job-add":
		a.commandJobAdd(ctx, cmd)
	case "/idea":
		a.commandIdea(ctx, cmd)
	case "/skills":
		a.commandSkills(ctx, cmd)
	case "/skill":
		a.commandSkillSet(ctx, cmd)
	case "/credits":
		a.commandCredits(ctx, cmd)
	case "/outbox":
		a.commandOutbox(ctx, cmd)
	default:
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Unknown command.")
	}
}

func (a *App) commandAsk(ctx context.Context, cmd slack.SlashCommand) {
	answer, err := a.assistant.Answer(ctx, cmd.Text)
	if err != nil {
		logger.Error("Failed to answer question: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Sorry, I couldn't answer that right now.")
		return
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, renderAnswer(answer))
}

// commandSync starts a sync run in the background and reports the outcome
// back to the invoking channel. Only configured admins may trigger it.
func (a *App) commandSync(ctx context.Context, cmd slack.SlashCommand, label string, run func(context.Context, domain.ProgressFunc) error) {
	if !a.cfg.IsAdmin(cmd.UserID) {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "You are not allowed to trigger syncs.")
		return
	}

	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Starting %s sync.", label))

	go func() {
		// Detach from the command's lifetime; a sync outlives the ack.
		runCtx := context.WithoutCancel(ctx)

		var lines []string
		err := run(runCtx, func(r domain.Report) {
			lines = append(lines, formatReport(r))
		})

		summary := fmt.Sprintf("Sync %s finished.", label)
		if err != nil {
			summary = fmt.Sprintf("Sync %s finished with errors: %v", label, err)
		}
		if len(lines) > 0 {
			summary += "\n" + strings.Join(lines, "\n")
		}
		a.postMessage(runCtx, cmd.ChannelID, slack.MsgOptionText(summary, false))
	}()
}

func formatReport(r domain.Report) string {
	switch r.Kind {
	case domain.ReportUpdate:
		return fmt.Sprintf("• %s %s: %d added, %d updated, %d skipped, %d removed, %d failed",
			r.Target, r.ID,
			len(r.Stats.Added), len(r.Stats.Updated), len(r.Stats.Skipped),
			len(r.Stats.Removed), len(r.Stats.Failed))
	case domain.ReportRemoved:
		return fmt.Sprintf("• %s %s: removed (%d rows)", r.Target, r.ID, r.Amount)
	case domain.ReportError:
		return fmt.Sprintf("• %s %s: failed: %s", r.Target, r.ID, r.Err)
	default:
		return ""
	}
}

func (a *App) commandWishlist(ctx context.Context, cmd slack.SlashCommand) {
	items, err := a.wishlist.List(ctx)
	if err != nil {
		logger.Error("Failed to list wishlist: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't load the wishlist.")
		return
	}
	if len(items) == 0 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "The wishlist is empty. Add something with /wishlist-add.")
		return
	}

	blocks := wishlistBlocks(items)
	_, err = a.api.PostEphemeralContext(ctx, cmd.ChannelID, cmd.UserID, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		logger.Warn("Failed to post wishlist: %v", err)
	}
}

func (a *App) commandWishlistAdd(ctx context.Context, cmd slack.SlashCommand) {
	title, description := splitOnPipe(cmd.Text)
	if title == "" {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Usage: /wishlist-add <title> | <description>")
		return
	}

	item, err := a.wishlist.Add(ctx, title, description, cmd.UserID)
	if err != nil {
		logger.Error("Failed to add wishlist item: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't add the item.")
		return
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Added %q to the wishlist.", item.Title))
}

func (a *App) commandJobs(ctx context.Context, cmd slack.SlashCommand) {
	postings, err := a.jobs.ListOpen(ctx)
	if err != nil {
		logger.Error("Failed to list jobs: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't load the job board.")
		return
	}
	if len(postings) == 0 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "No open postings right now.")
		return
	}

	var b strings.Builder
	b.WriteString("*Open positions*\n")
	for _, p := range postings {
		fmt.Fprintf(&b, "• *%s* at %s", p.Title, p.Company)
		if p.Link != "" {
			fmt.Fprintf(&b, " — <%s|details>", p.Link)
		}
		b.WriteString("\n")
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, b.String())
}

func (a *App) commandJobAdd(ctx context.Context, cmd slack.SlashCommand) {
	parts := strings.Split(cmd.Text, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 || parts[0] == "" {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Usage: /job-add <title> | <company> | [link] | [contact]")
		return
	}

	posting := domain.JobPosting{Title: parts[0], Company: parts[1]}
	if len(parts) > 2 {
		posting.Link = parts[2]
	}
	if len(parts) > 3 {
		posting.Contact = parts[3]
	}

	created, err := a.jobs.Create(ctx, posting)
	if err != nil {
		logger.Error("Failed to create job posting: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't create the posting.")
		return
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Posted %q to the job board.", created.Title))
}

func (a *App) commandIdea(ctx context.Context, cmd slack.SlashCommand) {
	title, description := splitOnPipe(cmd.Text)
	if title == "" {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Usage: /idea <title> | <description>")
		return
	}

	idea, err := a.ideas.Submit(ctx, title, description, cmd.UserID)
	if err != nil {
		logger.Error("Failed to submit idea: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't submit the idea.")
		return
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Idea %q submitted. Thank you!", idea.Title))
}

func (a *App) commandSkills(ctx context.Context, cmd slack.SlashCommand) {
	skills, err := a.skills.Skills(ctx, cmd.UserID)
	if err != nil {
		logger.Error("Failed to list skills: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't load your skills.")
		return
	}
	if len(skills) == 0 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "No skills recorded yet. Add one with /skill <name> <level 1-5>.")
		return
	}

	var b strings.Builder
	b.WriteString("*Your skills*\n")
	for _, skill := range skills {
		fmt.Fprintf(&b, "• %s: %d/5\n", skill.Name, skill.Level)
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, b.String())
}

func (a *App) commandSkillSet(ctx context.Context, cmd slack.SlashCommand) {
	fields := strings.Fields(cmd.Text)
	if len(fields) < 2 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Usage: /skill <name> <level 1-5>")
		return
	}

	level, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "The last argument must be a level from 1 to 5.")
		return
	}
	name := strings.Join(fields[:len(fields)-1], " ")

	skill, err := a.skills.SetSkill(ctx, cmd.UserID, name, level)
	if err != nil {
		logger.Error("Failed to set skill: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't record the skill.")
		return
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, fmt.Sprintf("Recorded %s at %d/5.", skill.Name, skill.Level))
}

func (a *App) commandCredits(ctx context.Context, cmd slack.SlashCommand) {
	rows, err := a.credits.Leaderboard(ctx)
	if err != nil {
		logger.Error("Failed to load leaderboard: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't load the leaderboard.")
		return
	}
	if len(rows) == 0 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "No credits granted yet.")
		return
	}

	var b strings.Builder
	b.WriteString("*Community credits*\n")
	for i, row := range rows {
		name := row.UserName
		if name == "" {
			name = row.UserID
		}
		fmt.Fprintf(&b, "%d. %s — %d\n", i+1, name, row.Total)
		if i == 9 {
			break
		}
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, b.String())
}

// stripMention drops leading <@U…> tokens from a mention text.
func stripMention(text string) string {
	text = strings.TrimSpace(text)
	for strings.HasPrefix(text, "<@") {
		end := strings.Index(text, ">")
		if end < 0 {
			break
		}
		text = strings.TrimSpace(text[end+1:])
	}
	return text
}

func splitOnPipe(text string) (first, rest string) {
	first, rest, _ = strings.Cut(text, "|")
	return strings.TrimSpace(first), strings.TrimSpace(rest)
}

func renderAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\n*Sources*\n")
		for _, source := range answer.Sources {
			fmt.Fprintf(&b, "• <%s|%s>\n", source.Link, source.Title)
		}
	}
	return b.String()
}
