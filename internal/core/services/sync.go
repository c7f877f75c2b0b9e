package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jomei/notionapi"
	"github.com/slack-go/slack"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
	"github.com/communitykit/communitybot/internal/core/ports/driving"
	notionloader "github.com/communitykit/communitybot/internal/loaders/notion"
	"github.com/communitykit/communitybot/internal/loaders/slackchannel"
	"github.com/communitykit/communitybot/internal/loaders/website"
	"github.com/communitykit/communitybot/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// ErrSyncInProgress is returned when a run is requested while another run
// is still active. Runs never overlap.
var ErrSyncInProgress = errors.New("sync already in progress")

// ChannelsFlag gates channel indexing; its tag carries the channel list.
const (
	ChannelsFlag = "index-channels"
	ChannelsTag  = "channels"
)

// SlackClient is the slice of the Slack API the orchestrator needs beyond
// what the channel loader consumes.
type SlackClient interface {
	slackchannel.API
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
}

// SyncConfig carries the synchronization surface of the application
// configuration.
type SyncConfig struct {
	// IndexDatabaseID is the Notion database whose rows declare the
	// Notion targets, each as a page or database mention in the title.
	IndexDatabaseID string

	// RowsAsPages loads database-target rows as full pages.
	RowsAsPages bool

	// RecursiveChildPages follows nested pages under page targets.
	RecursiveChildPages bool

	// WebsiteBaseURL is the public website origin.
	WebsiteBaseURL string

	// WebsitePaths are the page paths to index.
	WebsitePaths []string

	// BotUserID is the assistant's Slack user id, filtered from channel
	// history.
	BotUserID string

	// NotionConcurrency and NotionRPS bound the Notion API usage.
	// Zero means the loader defaults.
	NotionConcurrency int
	NotionRPS         float64

	// SlackWindow bounds channel history. Zero means the loader default.
	SlackWindow time.Duration
}

// SyncOrchestrator runs the incremental knowledge-index synchronization
// across all three sources. Targets are processed sequentially; one
// target's failure is reported through the progress sink and never stops
// the run.
type SyncOrchestrator struct {
	store   driven.VectorStore
	flags   driven.FeatureFlagStore
	notion  notionloader.API
	slack   SlackClient
	fetcher website.Fetcher
	cfg     SyncConfig

	reconciler *Reconciler

	mu      sync.Mutex
	running bool
}

// NewSyncOrchestrator creates a sync orchestrator.
func NewSyncOrchestrator(
	store driven.VectorStore,
	flags driven.FeatureFlagStore,
	notion notionloader.API,
	slackAPI SlackClient,
	fetcher website.Fetcher,
	cfg SyncConfig,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		store:      store,
		flags:      flags,
		notion:     notion,
		slack:      slackAPI,
		fetcher:    fetcher,
		cfg:        cfg,
		reconciler: NewReconciler(store),
	}
}

// SyncAll runs Notion, website and Slack synchronization in sequence.
// A failing phase is logged and the next phase still runs.
func (o *SyncOrchestrator) SyncAll(ctx context.Context, progress domain.ProgressFunc) error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()

	var errs []error
	for _, phase := range []func(context.Context, domain.ProgressFunc) error{
		o.syncNotion, o.syncWebsite, o.syncSlack,
	} {
		if err := phase(ctx, progress); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SyncNotion synchronizes the targets declared in the index database.
func (o *SyncOrchestrator) SyncNotion(ctx context.Context, progress domain.ProgressFunc) error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()
	return o.syncNotion(ctx, progress)
}

// SyncWebsite synchronizes the configured website paths.
func (o *SyncOrchestrator) SyncWebsite(ctx context.Context, progress domain.ProgressFunc) error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()
	return o.syncWebsite(ctx, progress)
}

// SyncSlack synchronizes the feature-flagged channel list.
func (o *SyncOrchestrator) SyncSlack(ctx context.Context, progress domain.ProgressFunc) error {
	release, err := o.acquire()
	if err != nil {
		return err
	}
	defer release()
	return o.syncSlack(ctx, progress)
}

func (o *SyncOrchestrator) acquire() (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, ErrSyncInProgress
	}
	o.running = true
	return func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}, nil
}

func (o *SyncOrchestrator) syncNotion(ctx context.Context, progress domain.ProgressFunc) error {
	// 1. Rebuild the index view before touching the API, so removal
	// decisions compare against a consistent starting state.
	types := []string{domain.TypeNotionPage, domain.TypeNotionDatabase, domain.TypeNotionDatabaseEntry}
	snap, err := LoadSnapshot(ctx, o.store, types)
	if err != nil {
		return err
	}

	// 2. Enumerate targets. Enumeration failure is fatal for the phase:
	// without the target list no removal decision is safe.
	targets, err := o.notionTargets(ctx)
	if err != nil {
		progress.Emit(domain.Report{Kind: domain.ReportError, Target: domain.TargetNotionDatabase, ID: o.cfg.IndexDatabaseID, Err: err.Error()})
		return fmt.Errorf("enumerate notion targets: %w", err)
	}

	// 3. Process each target. Failed targets stay live so the orphan
	// sweep never deletes their units.
	live := make(map[string]bool)
	for _, target := range targets {
		live[target.ID] = true
		o.runTarget(ctx, progress, target, func() (*domain.LoaderStats, domain.TargetKind, error) {
			res, err := notionloader.Load(ctx, notionloader.Options{
				Client:              o.notion,
				TargetID:            target.ID,
				RowsAsPages:         o.cfg.RowsAsPages,
				RecursiveChildPages: o.cfg.RecursiveChildPages,
				PrevSignals:         snap.Signals(),
				Concurrency:         o.cfg.NotionConcurrency,
				RequestsPerSecond:   o.cfg.NotionRPS,
			})
			if err != nil {
				return nil, target.Kind, err
			}
			stats, err := o.applyRun(ctx, progress, res.Kind, snap, target.ID, res.Documents, res.Stats)
			return stats, res.Kind, err
		})
	}

	// 4. Sweep targets no longer declared.
	return o.sweep(ctx, progress, snap, live, domain.TargetNotionPage)
}

func (o *SyncOrchestrator) syncWebsite(ctx context.Context, progress domain.ProgressFunc) error {
	snap, err := LoadSnapshot(ctx, o.store, []string{domain.TypeWebsitePage})
	if err != nil {
		return err
	}

	live := make(map[string]bool)
	for _, path := range o.cfg.WebsitePaths {
		live[path] = true
		target := domain.SyncTarget{Kind: domain.TargetWebsitePage, ID: path}
		o.runTarget(ctx, progress, target, func() (*domain.LoaderStats, domain.TargetKind, error) {
			res, err := website.Load(ctx, website.Options{
				Fetcher:     o.fetcher,
				BaseURL:     o.cfg.WebsiteBaseURL,
				Path:        path,
				PrevSignals: snap.Signals(),
			})
			if err != nil {
				return nil, domain.TargetWebsitePage, err
			}
			stats, err := o.applyRun(ctx, progress, domain.TargetWebsitePage, snap, path, res.Documents, res.Stats)
			return stats, domain.TargetWebsitePage, err
		})
	}

	// Paths dropped from configuration leave the index here.
	return o.sweep(ctx, progress, snap, live, domain.TargetWebsitePage)
}

func (o *SyncOrchestrator) syncSlack(ctx context.Context, progress domain.ProgressFunc) error {
	if o.slack == nil {
		logger.Info("Slack client not configured, skipping channel sync")
		return nil
	}

	channels, err := o.channelList(ctx)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		logger.Info("No channels flagged for indexing")
		return nil
	}

	snap, err := LoadSnapshot(ctx, o.store, []string{domain.TypeSlackMessage})
	if err != nil {
		return err
	}

	for _, channelID := range channels {
		target := domain.SyncTarget{Kind: domain.TargetSlackChannel, ID: channelID}
		o.runTarget(ctx, progress, target, func() (*domain.LoaderStats, domain.TargetKind, error) {
			name := o.channelName(ctx, channelID)
			res, err := slackchannel.Load(ctx, slackchannel.Options{
				Client:      o.slack,
				ChannelID:   channelID,
				ChannelName: name,
				BotUserID:   o.cfg.BotUserID,
				Window:      o.cfg.SlackWindow,
				PrevSignals: snap.Signals(),
			})
			if err != nil {
				return nil, domain.TargetSlackChannel, err
			}
			// Messages are never removed: aging out of the fetch window
			// is not a deletion, so no RemoveMissing and no sweep here.
			if err := o.reconciler.ApplyUpserts(ctx, res.Documents); err != nil {
				return nil, domain.TargetSlackChannel, err
			}
			return &res.Stats, domain.TargetSlackChannel, nil
		})
	}
	return nil
}

// runTarget executes one target with panic and error containment. Whatever
// happens inside, the run proceeds to the next target.
func (o *SyncOrchestrator) runTarget(ctx context.Context, progress domain.ProgressFunc, target domain.SyncTarget, fn func() (*domain.LoaderStats, domain.TargetKind, error)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while syncing %s %s: %v", target.Kind, target.ID, r)
			progress.Emit(domain.Report{Kind: domain.ReportError, Target: target.Kind, ID: target.ID, Err: fmt.Sprintf("panic: %v", r)})
		}
	}()

	stats, kind, err := fn()
	if err != nil {
		logger.Error("Failed to sync %s %s: %v", kind, target.ID, err)
		progress.Emit(domain.Report{Kind: domain.ReportError, Target: kind, ID: target.ID, Err: err.Error()})
		return
	}
	progress.Emit(domain.Report{Kind: domain.ReportUpdate, Target: kind, ID: target.ID, Stats: *stats})
}

// applyRun persists a load run's documents and removes the target's units
// that were not re-seen. Failed units stay in the index. Each removed unit
// is reported with the row count its delete cascaded through; removals
// performed before a store failure are still reported.
func (o *SyncOrchestrator) applyRun(ctx context.Context, progress domain.ProgressFunc, kind domain.TargetKind, snap *Snapshot, targetID string, docs []domain.Document, stats domain.LoaderStats) (*domain.LoaderStats, error) {
	if err := o.reconciler.ApplyUpserts(ctx, docs); err != nil {
		return nil, err
	}
	removed, err := o.reconciler.RemoveMissing(ctx, snap, targetID, stats)
	for _, removal := range removed {
		stats.Removed = append(stats.Removed, removal.SourceID)
		progress.Emit(domain.Report{Kind: domain.ReportRemoved, Target: kind, ID: removal.SourceID, Amount: removal.Rows})
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// sweep deletes units of snapshot targets that are no longer enumerated
// and reports each deletion under the kind the snapshot recorded for its
// target, so database orphans are not reported as pages.
func (o *SyncOrchestrator) sweep(ctx context.Context, progress domain.ProgressFunc, snap *Snapshot, live map[string]bool, kind domain.TargetKind) error {
	removed, err := o.reconciler.OrphanSweep(ctx, snap, live)
	for _, removal := range removed {
		progress.Emit(domain.Report{Kind: domain.ReportRemoved, Target: snap.KindFor(removal.TargetID, kind), ID: removal.SourceID, Amount: removal.Rows})
	}
	if err != nil {
		progress.Emit(domain.Report{Kind: domain.ReportError, Target: kind, Err: err.Error()})
		return err
	}
	return nil
}

// notionTargets reads the index database: every page or database mention
// in a row's title declares one target.
func (o *SyncOrchestrator) notionTargets(ctx context.Context) ([]domain.SyncTarget, error) {
	if o.cfg.IndexDatabaseID == "" {
		return nil, fmt.Errorf("%w: index database id not configured", domain.ErrInvalidInput)
	}

	var targets []domain.SyncTarget
	err := o.notion.QueryDatabase(ctx, o.cfg.IndexDatabaseID, func(page notionapi.Page) error {
		for _, prop := range page.Properties {
			title, ok := prop.(*notionapi.TitleProperty)
			if !ok {
				continue
			}
			for _, part := range title.Title {
				if part.Mention == nil {
					continue
				}
				switch {
				case part.Mention.Page != nil:
					targets = append(targets, domain.SyncTarget{
						Kind:  domain.TargetNotionPage,
						ID:    string(part.Mention.Page.ID),
						Title: part.PlainText,
					})
				case part.Mention.Database != nil:
					targets = append(targets, domain.SyncTarget{
						Kind:  domain.TargetNotionDatabase,
						ID:    string(part.Mention.Database.ID),
						Title: part.PlainText,
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// channelList reads the ";"-separated channel ids from the feature-flag
// tag. An unset flag means channel indexing is off.
func (o *SyncOrchestrator) channelList(ctx context.Context) ([]string, error) {
	value, err := o.flags.Tag(ctx, ChannelsFlag, ChannelsTag)
	if errors.Is(err, domain.ErrFlagUnset) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read channel list: %w", err)
	}

	var channels []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			channels = append(channels, part)
		}
	}
	return channels, nil
}

func (o *SyncOrchestrator) channelName(ctx context.Context, channelID string) string {
	info, err := o.slack.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		logger.Debug("Failed to resolve channel %s: %v", channelID, err)
		return channelID
	}
	return info.Name
}
