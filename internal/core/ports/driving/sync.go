package driving

import (
	"context"

	"github.com/communitykit/communitybot/internal/core/domain"
)

// SyncOrchestrator drives the incremental knowledge-index synchronization.
// The trigger surface (a scheduled job or an authenticated slash command)
// invokes these entry points with no input beyond "run now"; authorization
// and scheduling live entirely outside the core.
//
// Runs always terminate: a failure in one target is reported through the
// progress sink and the run continues with the next target.
type SyncOrchestrator interface {
	// SyncAll runs Notion, website and Slack synchronization in sequence,
	// followed by the orphan sweep.
	SyncAll(ctx context.Context, progress domain.ProgressFunc) error

	// SyncNotion synchronizes all targets declared in the assistant index
	// database.
	SyncNotion(ctx context.Context, progress domain.ProgressFunc) error

	// SyncWebsite synchronizes the configured website paths.
	SyncWebsite(ctx context.Context, progress domain.ProgressFunc) error

	// SyncSlack synchronizes the feature-flagged channel list.
	SyncSlack(ctx context.Context, progress domain.ProgressFunc) error
}
