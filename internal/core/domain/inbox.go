package domain

import "time"

// Inbox actions a recipient can take on a tracked message.
const (
	InboxActionDone    = "message_done"
	InboxActionDismiss = "message_dismissed"
)

// InboxEntry is one tracked message: a channel message somebody wants
// acknowledged, with an optional deadline and the reminder times derived
// from it.
type InboxEntry struct {
	ChannelID   string    `json:"channelId"`
	MessageTS   string    `json:"messageTs"`
	Description string    `json:"description"`
	Permalink   string    `json:"permalink,omitempty"`
	Deadline    time.Time `json:"deadline,omitzero"`

	// Reminders are the pending notification times, earliest first.
	// Triggered reminders are popped off the front.
	Reminders []time.Time `json:"reminders,omitempty"`
}

// InboxResolution records how one recipient closed an entry.
type InboxResolution struct {
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
}

// SentInboxEntry is the sender's view: who was asked, and who resolved it
// how.
type SentInboxEntry struct {
	InboxEntry
	RecipientIDs []string                   `json:"recipientIds"`
	Resolutions  map[string]InboxResolution `json:"resolutions,omitempty"`
}

// ReceivedInboxEntry is a recipient's view of an entry.
type ReceivedInboxEntry struct {
	InboxEntry
	SenderID string `json:"senderId"`
}
