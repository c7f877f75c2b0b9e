package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitykit/communitybot/internal/core/domain"
)

var deadline = time.Date(2026, 9, 30, 23, 59, 59, 0, time.UTC)

func trackedMessage(recipients ...string) CreateEntryOptions {
	return CreateEntryOptions{
		SenderID:     "U-sender",
		RecipientIDs: recipients,
		ChannelID:    "C1",
		MessageTS:    "1700000100.000100",
		Description:  "Please review the handbook changes.",
	}
}

func TestInboxService_CreateEntry_RecordsBothViews(t *testing.T) {
	s := NewInboxService(newFakeKV())

	entry, err := s.CreateEntry(context.Background(), trackedMessage("U1", "U2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, entry.RecipientIDs)

	sent, err := s.SentEntries(context.Background(), "U-sender")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "Please review the handbook changes.", sent[0].Description)

	for _, userID := range []string{"U1", "U2"} {
		received, err := s.ReceivedEntries(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, "U-sender", received[0].SenderID)
		assert.Equal(t, "1700000100.000100", received[0].MessageTS)
	}
}

func TestInboxService_CreateEntry_NewestFirst(t *testing.T) {
	s := NewInboxService(newFakeKV())

	first := trackedMessage("U1")
	_, err := s.CreateEntry(context.Background(), first)
	require.NoError(t, err)

	second := trackedMessage("U1")
	second.MessageTS = "1700000200.000100"
	second.Description = "Vote on the meetup date."
	_, err = s.CreateEntry(context.Background(), second)
	require.NoError(t, err)

	received, err := s.ReceivedEntries(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, "Vote on the meetup date.", received[0].Description)
}

func TestInboxService_CreateEntry_ExcludesSenderAndDuplicates(t *testing.T) {
	s := NewInboxService(newFakeKV())

	entry, err := s.CreateEntry(context.Background(), trackedMessage("U-sender", "U1", "U1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"U1"}, entry.RecipientIDs)

	// A message whose only recipient is its sender tracks nobody.
	_, err = s.CreateEntry(context.Background(), trackedMessage("U-sender"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInboxService_CreateEntry_Validation(t *testing.T) {
	s := NewInboxService(newFakeKV())

	missingDescription := trackedMessage("U1")
	missingDescription.Description = ""
	_, err := s.CreateEntry(context.Background(), missingDescription)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	missingMessage := trackedMessage("U1")
	missingMessage.MessageTS = ""
	_, err = s.CreateEntry(context.Background(), missingMessage)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInboxService_CreateEntry_ScheduleEarliestFirst(t *testing.T) {
	s := NewInboxService(newFakeKV())

	opts := trackedMessage("U1")
	opts.Deadline = deadline
	opts.EnableReminders = true

	entry, err := s.CreateEntry(context.Background(), opts)
	require.NoError(t, err)

	reminders := entry.Reminders
	require.Len(t, reminders, 6)
	assert.Equal(t, deadline.Add(-14*24*time.Hour), reminders[0])
	assert.Equal(t, deadline.Add(-time.Hour), reminders[5])
	for i := 1; i < len(reminders); i++ {
		assert.True(t, reminders[i].After(reminders[i-1]))
	}

	// Without the opt-in no reminders are scheduled.
	opts = trackedMessage("U2")
	opts.Deadline = deadline
	entry, err = s.CreateEntry(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, entry.Reminders)
}

func TestInboxService_Resolve_MovesEntryToResolutions(t *testing.T) {
	s := NewInboxService(newFakeKV())
	_, err := s.CreateEntry(context.Background(), trackedMessage("U1", "U2"))
	require.NoError(t, err)

	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	err = s.Resolve(context.Background(), "U1", "U-sender", "1700000100.000100", domain.InboxActionDone, at)
	require.NoError(t, err)

	// U1's copy is gone, U2 still holds the entry.
	received, err := s.ReceivedEntries(context.Background(), "U1")
	require.NoError(t, err)
	assert.Empty(t, received)
	received, err = s.ReceivedEntries(context.Background(), "U2")
	require.NoError(t, err)
	assert.Len(t, received, 1)

	sent, err := s.SentEntries(context.Background(), "U-sender")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Resolutions, "U1")
	assert.Equal(t, domain.InboxActionDone, sent[0].Resolutions["U1"].Action)
	assert.Equal(t, at, sent[0].Resolutions["U1"].Time)
}

func TestInboxService_Resolve_UnknownActionRejected(t *testing.T) {
	s := NewInboxService(newFakeKV())

	err := s.Resolve(context.Background(), "U1", "U-sender", "ts", "shrug", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInboxService_DueReminders_PopsOnePerEntry(t *testing.T) {
	s := NewInboxService(newFakeKV())

	opts := trackedMessage("U1")
	opts.Deadline = deadline
	opts.EnableReminders = true
	_, err := s.CreateEntry(context.Background(), opts)
	require.NoError(t, err)

	// Two weeks out nothing is due yet.
	early := deadline.Add(-15 * 24 * time.Hour)
	due, err := s.DueReminders(context.Background(), early)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Past the first two scheduled times: one reminder fires per check,
	// the backlog drains across calls.
	now := deadline.Add(-6 * 24 * time.Hour)
	due, err = s.DueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "U1", due[0].UserID)
	assert.Equal(t, "Please review the handbook changes.", due[0].Entry.Description)

	due, err = s.DueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)

	due, err = s.DueReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The later reminders are still scheduled.
	received, err := s.ReceivedEntries(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Len(t, received[0].Reminders, 4)
}

func TestInboxService_DueReminders_SkipsResolvedEntries(t *testing.T) {
	s := NewInboxService(newFakeKV())

	opts := trackedMessage("U1")
	opts.Deadline = deadline
	opts.EnableReminders = true
	_, err := s.CreateEntry(context.Background(), opts)
	require.NoError(t, err)

	err = s.Resolve(context.Background(), "U1", "U-sender", opts.MessageTS, domain.InboxActionDismiss, time.Now())
	require.NoError(t, err)

	due, err := s.DueReminders(context.Background(), deadline)
	require.NoError(t, err)
	assert.Empty(t, due)
}
