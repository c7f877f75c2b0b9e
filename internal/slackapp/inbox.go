package slackapp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/services"
	"github.com/communitykit/communitybot/internal/logger"
)

// Inbox interaction identifiers, matching the Slack app manifest.
const (
	addToInboxCallbackID = "add_to_inbox"
	inboxModalCallbackID = "new_inbox_message"
)

// Inbox modal block and action ids.
const (
	inboxDescriptionBlockID = "inbox_description"
	inboxDescriptionInputID = "description_input"
	inboxDeadlineBlockID    = "inbox_deadline"
	inboxDeadlineInputID    = "deadline_input"
	inboxOptionsBlockID     = "inbox_options"
	inboxOptionsInputID     = "options_input"
	inboxRemindersOption    = "enable_reminders"
)

// inboxDescriptionMaxLen caps the prefilled description pulled from the
// tracked message.
const inboxDescriptionMaxLen = 200

// reminderCheckInterval is how often pending deadline reminders are
// checked while the app runs.
const reminderCheckInterval = 5 * time.Minute

// inboxModalMetadata rides in the modal's private metadata between open
// and submit.
type inboxModalMetadata struct {
	ChannelID string `json:"channelId"`
	MessageTS string `json:"messageTs"`
	Permalink string `json:"permalink,omitempty"`
}

// inboxButtonValue rides in the resolution buttons under a notification.
type inboxButtonValue struct {
	SenderID  string `json:"senderId"`
	MessageTS string `json:"messageTs"`
}

// handleAddToInbox opens the new-entry modal for the targeted message.
func (a *App) handleAddToInbox(ctx context.Context, callback slack.InteractionCallback) {
	if a.inbox == nil {
		a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, "The inbox is not configured.")
		return
	}

	meta := inboxModalMetadata{
		ChannelID: callback.Channel.ID,
		MessageTS: callback.Message.Timestamp,
	}
	if link, err := a.api.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: meta.ChannelID,
		Ts:      meta.MessageTS,
	}); err == nil {
		meta.Permalink = link
	}

	description := stripMention(callback.Message.Text)
	if len(description) > inboxDescriptionMaxLen {
		description = description[:inboxDescriptionMaxLen]
	}

	view, err := inboxModal(meta, description)
	if err != nil {
		logger.Error("Failed to build inbox modal: %v", err)
		return
	}
	if _, err := a.api.OpenViewContext(ctx, callback.TriggerID, view); err != nil {
		logger.Error("Failed to open inbox modal: %v", err)
	}
}

// inboxModal builds the new-entry modal.
func inboxModal(meta inboxModalMetadata, description string) (slack.ModalViewRequest, error) {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return slack.ModalViewRequest{}, err
	}

	descriptionInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "What should people act on?", false, false),
		inboxDescriptionInputID)
	descriptionInput.Multiline = true
	descriptionInput.InitialValue = description

	deadlineBlock := slack.NewInputBlock(inboxDeadlineBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Deadline", false, false),
		nil,
		slack.NewDatePickerBlockElement(inboxDeadlineInputID))
	deadlineBlock.Optional = true

	optionsBlock := slack.NewInputBlock(inboxOptionsBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Options", false, false),
		nil,
		slack.NewCheckboxGroupsBlockElement(inboxOptionsInputID,
			slack.NewOptionBlockObject(inboxRemindersOption,
				slack.NewTextBlockObject(slack.PlainTextType, "Remind recipients before the deadline", false, false),
				nil)))
	optionsBlock.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      inboxModalCallbackID,
		PrivateMetadata: string(encoded),
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Track message", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Track", false, false),
		Close:           slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(inboxDescriptionBlockID,
				slack.NewTextBlockObject(slack.PlainTextType, "Description", false, false),
				nil,
				descriptionInput),
			deadlineBlock,
			optionsBlock,
		}},
	}, nil
}

// handleInboxSubmission creates the entry and notifies every channel
// member.
func (a *App) handleInboxSubmission(ctx context.Context, callback slack.InteractionCallback) {
	var meta inboxModalMetadata
	if err := json.Unmarshal([]byte(callback.View.PrivateMetadata), &meta); err != nil {
		logger.Error("Failed to decode inbox modal metadata: %v", err)
		return
	}

	opts := services.CreateEntryOptions{
		SenderID:    callback.User.ID,
		ChannelID:   meta.ChannelID,
		MessageTS:   meta.MessageTS,
		Permalink:   meta.Permalink,
		Description: viewStateValue(callback, inboxDescriptionBlockID, inboxDescriptionInputID).Value,
	}

	if date := viewStateValue(callback, inboxDeadlineBlockID, inboxDeadlineInputID).SelectedDate; date != "" {
		if day, err := time.Parse("2006-01-02", date); err == nil {
			// End of the picked day.
			opts.Deadline = day.Add(24*time.Hour - time.Second)
		}
	}
	for _, option := range viewStateValue(callback, inboxOptionsBlockID, inboxOptionsInputID).SelectedOptions {
		if option.Value == inboxRemindersOption {
			opts.EnableReminders = true
		}
	}

	members, err := a.channelMembers(ctx, meta.ChannelID)
	if err != nil {
		logger.Error("Failed to list channel members: %v", err)
		a.postEphemeral(ctx, meta.ChannelID, callback.User.ID, "Couldn't track that message.")
		return
	}
	opts.RecipientIDs = members

	entry, err := a.inbox.CreateEntry(ctx, opts)
	if err != nil {
		logger.Error("Failed to create inbox entry: %v", err)
		a.postEphemeral(ctx, meta.ChannelID, callback.User.ID, "Couldn't track that message.")
		return
	}

	for _, userID := range entry.RecipientIDs {
		a.postMessage(ctx, userID, slack.MsgOptionBlocks(inboxNotificationBlocks(
			"New inbox message",
			domain.ReceivedInboxEntry{InboxEntry: entry.InboxEntry, SenderID: callback.User.ID},
		)...))
	}
	a.postEphemeral(ctx, meta.ChannelID, callback.User.ID,
		fmt.Sprintf("Tracking the message for %d recipients.", len(entry.RecipientIDs)))
}

// channelMembers pages through the channel's full member list.
func (a *App) channelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		page, next, err := a.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, err
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

// handleInboxResolution processes a done/dismiss button press.
func (a *App) handleInboxResolution(ctx context.Context, callback slack.InteractionCallback, action, rawValue string) {
	if a.inbox == nil {
		return
	}

	var value inboxButtonValue
	if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
		logger.Error("Failed to decode inbox button value: %v", err)
		return
	}

	err := a.inbox.Resolve(ctx, callback.User.ID, value.SenderID, value.MessageTS, action, time.Now())
	if err != nil {
		logger.Error("Failed to resolve inbox entry: %v", err)
		a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, "Couldn't update that inbox entry.")
		return
	}

	reply := "Marked as done."
	if action == domain.InboxActionDismiss {
		reply = "Dismissed."
	}
	a.postEphemeral(ctx, callback.Channel.ID, callback.User.ID, reply)
}

// commandOutbox lists the user's sent entries with their resolutions.
func (a *App) commandOutbox(ctx context.Context, cmd slack.SlashCommand) {
	if a.inbox == nil {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "The inbox is not configured.")
		return
	}
	entries, err := a.inbox.SentEntries(ctx, cmd.UserID)
	if err != nil {
		logger.Error("Failed to load outbox: %v", err)
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "Couldn't load your outbox.")
		return
	}
	if len(entries) == 0 {
		a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, "You are not tracking any messages.")
		return
	}

	var b strings.Builder
	b.WriteString("*Tracked messages*\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "• %s — %d of %d resolved",
			entry.Description, len(entry.Resolutions), len(entry.RecipientIDs))
		if !entry.Deadline.IsZero() {
			fmt.Fprintf(&b, " (due %s)", readableUntil(entry.Deadline, time.Now()))
		}
		b.WriteString("\n")
	}
	a.postEphemeral(ctx, cmd.ChannelID, cmd.UserID, b.String())
}

// inboxReminderLoop periodically delivers due deadline reminders.
func (a *App) inboxReminderLoop(ctx context.Context) {
	ticker := time.NewTicker(reminderCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.deliverInboxReminders(ctx)
		}
	}
}

func (a *App) deliverInboxReminders(ctx context.Context) {
	due, err := a.inbox.DueReminders(ctx, time.Now())
	if err != nil {
		logger.Warn("Failed to check inbox reminders: %v", err)
	}
	for _, notification := range due {
		a.postMessage(ctx, notification.UserID,
			slack.MsgOptionBlocks(inboxNotificationBlocks("Inbox reminder", notification.Entry)...))
	}
}

// inboxNotificationBlocks renders one entry as a notification with the
// resolution buttons.
func inboxNotificationBlocks(heading string, entry domain.ReceivedInboxEntry) []slack.Block {
	value, _ := json.Marshal(inboxButtonValue{SenderID: entry.SenderID, MessageTS: entry.MessageTS})

	text := fmt.Sprintf("*%s*\n%s", heading, entry.Description)
	if entry.Permalink != "" {
		text += fmt.Sprintf("\n<%s|View message>", entry.Permalink)
	}

	blocks := []slack.Block{markdownSection(text)}
	if !entry.Deadline.IsZero() {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Due %s.", readableUntil(entry.Deadline, time.Now())), false, false)))
	}

	done := slack.NewButtonBlockElement(domain.InboxActionDone, string(value),
		slack.NewTextBlockObject(slack.PlainTextType, "Done", false, false))
	done.Style = slack.StylePrimary
	dismiss := slack.NewButtonBlockElement(domain.InboxActionDismiss, string(value),
		slack.NewTextBlockObject(slack.PlainTextType, "Dismiss", false, false))

	return append(blocks, slack.NewActionBlock("", done, dismiss))
}

// viewStateValue reads one input's state out of a view submission.
// Missing blocks read as the zero value.
func viewStateValue(callback slack.InteractionCallback, blockID, actionID string) slack.BlockAction {
	if callback.View.State == nil {
		return slack.BlockAction{}
	}
	return callback.View.State.Values[blockID][actionID]
}

// readableUntil phrases the time from now until t, or how long ago it
// passed.
func readableUntil(t, now time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		return readableDuration(-d) + " ago"
	}
	return "in " + readableDuration(d)
}

func readableDuration(d time.Duration) string {
	switch {
	case d < 90*time.Second:
		return "a few seconds"
	case d < 90*time.Minute:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	case d < 36*time.Hour:
		return plural(int(d.Round(time.Hour)/time.Hour), "hour")
	case d < 14*24*time.Hour:
		return plural(int(d.Round(24*time.Hour)/(24*time.Hour)), "day")
	default:
		return plural(int(d/(7*24*time.Hour)), "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
