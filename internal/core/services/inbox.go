package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
)

// Inbox cache keys. Entries live in the cache, keyed per user, with a
// shared index of users who currently hold received entries so the
// reminder check does not scan every key.
const (
	inboxSentKeyPrefix     = "inbox:sent:"
	inboxReceivedKeyPrefix = "inbox:received:"
	inboxRecipientsKey     = "inbox:recipients"
)

// reminderOffsets are how long before the deadline each reminder fires.
// Stored per entry as absolute times, earliest first.
var reminderOffsets = []time.Duration{
	14 * 24 * time.Hour,
	7 * 24 * time.Hour,
	3 * 24 * time.Hour,
	24 * time.Hour,
	8 * time.Hour,
	time.Hour,
}

// InboxService tracks messages members want acknowledged: who was asked,
// who resolved, and which deadline reminders are still pending. Entries
// are small and short-lived, so the cache is their system of record.
type InboxService struct {
	cache driven.Cache
}

// NewInboxService creates an inbox service.
func NewInboxService(cache driven.Cache) *InboxService {
	return &InboxService{cache: cache}
}

// CreateEntryOptions carries one new tracked message.
type CreateEntryOptions struct {
	SenderID     string
	RecipientIDs []string
	ChannelID    string
	MessageTS    string
	Description  string
	Permalink    string

	// Deadline is optional; zero means the entry never expires.
	Deadline time.Time

	// EnableReminders schedules deadline reminders for every recipient.
	// Ignored without a deadline.
	EnableReminders bool
}

// ReminderNotification is one due reminder: the recipient to notify and
// the entry it belongs to.
type ReminderNotification struct {
	UserID string
	Entry  domain.ReceivedInboxEntry
}

// CreateEntry records a new tracked message for the sender and every
// recipient. Newest entries go first in both views.
func (s *InboxService) CreateEntry(ctx context.Context, opts CreateEntryOptions) (*domain.SentInboxEntry, error) {
	if opts.SenderID == "" || opts.ChannelID == "" || opts.MessageTS == "" {
		return nil, fmt.Errorf("%w: sender and message are required", domain.ErrInvalidInput)
	}
	if opts.Description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if len(opts.RecipientIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrInvalidInput)
	}

	entry := domain.InboxEntry{
		ChannelID:   opts.ChannelID,
		MessageTS:   opts.MessageTS,
		Description: opts.Description,
		Permalink:   opts.Permalink,
		Deadline:    opts.Deadline,
	}
	if opts.EnableReminders && !opts.Deadline.IsZero() {
		entry.Reminders = reminderSchedule(opts.Deadline)
	}

	recipients := dedupe(opts.RecipientIDs, opts.SenderID)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients besides the sender", domain.ErrInvalidInput)
	}

	sent := domain.SentInboxEntry{
		InboxEntry:   entry,
		RecipientIDs: recipients,
	}

	sentEntries, err := s.SentEntries(ctx, opts.SenderID)
	if err != nil {
		return nil, err
	}
	sentEntries = append([]domain.SentInboxEntry{sent}, sentEntries...)
	if err := s.writeSent(ctx, opts.SenderID, sentEntries); err != nil {
		return nil, err
	}

	received := domain.ReceivedInboxEntry{InboxEntry: entry, SenderID: opts.SenderID}
	for _, userID := range recipients {
		entries, err := s.ReceivedEntries(ctx, userID)
		if err != nil {
			return nil, err
		}
		entries = append([]domain.ReceivedInboxEntry{received}, entries...)
		if err := s.writeReceived(ctx, userID, entries); err != nil {
			return nil, err
		}
	}

	if err := s.indexRecipients(ctx, recipients); err != nil {
		return nil, err
	}
	return &sent, nil
}

// SentEntries returns the user's sent entries, newest first.
func (s *InboxService) SentEntries(ctx context.Context, userID string) ([]domain.SentInboxEntry, error) {
	var entries []domain.SentInboxEntry
	if err := s.read(ctx, inboxSentKeyPrefix+userID, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReceivedEntries returns the user's open received entries, newest first.
func (s *InboxService) ReceivedEntries(ctx context.Context, userID string) ([]domain.ReceivedInboxEntry, error) {
	var entries []domain.ReceivedInboxEntry
	if err := s.read(ctx, inboxReceivedKeyPrefix+userID, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Resolve closes an entry for one recipient: the entry leaves the
// recipient's received list and the resolution is recorded on the
// sender's sent entry. Resolving an already-resolved entry is a no-op.
func (s *InboxService) Resolve(ctx context.Context, recipientID, senderID, messageTS, action string, at time.Time) error {
	if action != domain.InboxActionDone && action != domain.InboxActionDismiss {
		return fmt.Errorf("%w: unknown inbox action %q", domain.ErrInvalidInput, action)
	}

	received, err := s.ReceivedEntries(ctx, recipientID)
	if err != nil {
		return err
	}
	kept := received[:0]
	for _, entry := range received {
		if entry.MessageTS != messageTS || entry.SenderID != senderID {
			kept = append(kept, entry)
		}
	}
	if len(kept) != len(received) {
		if err := s.writeReceived(ctx, recipientID, kept); err != nil {
			return err
		}
	}

	sent, err := s.SentEntries(ctx, senderID)
	if err != nil {
		return err
	}
	for i := range sent {
		if sent[i].MessageTS != messageTS {
			continue
		}
		if sent[i].Resolutions == nil {
			sent[i].Resolutions = make(map[string]domain.InboxResolution)
		}
		sent[i].Resolutions[recipientID] = domain.InboxResolution{Action: action, Time: at}
		return s.writeSent(ctx, senderID, sent)
	}
	return nil
}

// DueReminders pops reminders that have come due and returns the
// notifications to deliver. At most one reminder per entry fires per
// call; the rest stay scheduled for later checks. Lists without due
// reminders are not rewritten.
func (s *InboxService) DueReminders(ctx context.Context, now time.Time) ([]ReminderNotification, error) {
	var userIDs []string
	if err := s.read(ctx, inboxRecipientsKey, &userIDs); err != nil {
		return nil, err
	}

	var due []ReminderNotification
	for _, userID := range userIDs {
		entries, err := s.ReceivedEntries(ctx, userID)
		if err != nil {
			return due, err
		}

		changed := false
		for i := range entries {
			reminders := entries[i].Reminders
			if len(reminders) == 0 || reminders[0].After(now) {
				continue
			}
			entries[i].Reminders = reminders[1:]
			changed = true
			due = append(due, ReminderNotification{UserID: userID, Entry: entries[i]})
		}
		if changed {
			if err := s.writeReceived(ctx, userID, entries); err != nil {
				return due, err
			}
		}
	}
	return due, nil
}

func (s *InboxService) read(ctx context.Context, key string, out any) error {
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read inbox state: %w", err)
	}
	if err := unmarshalCached(raw, out); err != nil {
		return fmt.Errorf("decode inbox state: %w", err)
	}
	return nil
}

func (s *InboxService) write(ctx context.Context, key string, value any) error {
	encoded, err := marshalCached(value)
	if err != nil {
		return fmt.Errorf("encode inbox state: %w", err)
	}
	if err := s.cache.Set(ctx, key, encoded, 0); err != nil {
		return fmt.Errorf("write inbox state: %w", err)
	}
	return nil
}

func (s *InboxService) writeSent(ctx context.Context, userID string, entries []domain.SentInboxEntry) error {
	return s.write(ctx, inboxSentKeyPrefix+userID, entries)
}

func (s *InboxService) writeReceived(ctx context.Context, userID string, entries []domain.ReceivedInboxEntry) error {
	return s.write(ctx, inboxReceivedKeyPrefix+userID, entries)
}

// indexRecipients merges the given users into the recipients index.
func (s *InboxService) indexRecipients(ctx context.Context, userIDs []string) error {
	var known []string
	if err := s.read(ctx, inboxRecipientsKey, &known); err != nil {
		return err
	}

	seen := make(map[string]bool, len(known))
	for _, id := range known {
		seen[id] = true
	}
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			known = append(known, id)
		}
	}
	sort.Strings(known)
	return s.write(ctx, inboxRecipientsKey, known)
}

// reminderSchedule returns the reminder times for a deadline, earliest
// first.
func reminderSchedule(deadline time.Time) []time.Time {
	times := make([]time.Time, 0, len(reminderOffsets))
	for _, offset := range reminderOffsets {
		times = append(times, deadline.Add(-offset))
	}
	return times
}

// dedupe drops duplicate ids and the excluded id, preserving order.
func dedupe(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
