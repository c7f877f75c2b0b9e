package driving

import (
	"context"

	"github.com/communitykit/communitybot/internal/core/domain"
)

// Assistant answers questions against the knowledge index.
type Assistant interface {
	// Answer retrieves the most relevant documents and generates a reply
	// citing their permalinks.
	Answer(ctx context.Context, question string) (*domain.Answer, error)

	// AddMessage indexes a single Slack message on demand.
	AddMessage(ctx context.Context, msg domain.ChannelMessage) error
}
