// Package slackapp is the Slack-facing surface of the bot: slash
// commands, the assistant mention handler, the "add to assistant" message
// action and the home tab. It runs over Socket Mode so no public HTTP
// endpoint is needed.
package slackapp

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/communitykit/communitybot/internal/config"
	"github.com/communitykit/communitybot/internal/core/ports/driving"
	"github.com/communitykit/communitybot/internal/core/services"
	"github.com/communitykit/communitybot/internal/logger"
)

// addToAssistantCallbackID identifies the message action in the Slack app
// manifest.
const addToAssistantCallbackID = "add_to_assistant"

// App wires the Slack event stream to the core services.
type App struct {
	api    *slack.Client
	socket *socketmode.Client
	cfg    *config.Config

	orchestrator driving.SyncOrchestrator
	assistant    driving.Assistant
	wishlist     *services.WishlistService
	jobs         *services.JobBoardService
	ideas        *services.IdeaService
	skills       *services.SkillService
	credits      *services.CreditService
	home         *services.HomeService
	inbox        *services.InboxService
	posts        *services.PostService
}

// Options carries the app's collaborators.
type Options struct {
	// API optionally supplies a pre-built Slack client, shared with the
	// sync loaders. When nil a client is built from the config tokens.
	API *slack.Client

	Config       *config.Config
	Orchestrator driving.SyncOrchestrator
	Assistant    driving.Assistant
	Wishlist     *services.WishlistService
	Jobs         *services.JobBoardService
	Ideas        *services.IdeaService
	Skills       *services.SkillService
	Credits      *services.CreditService
	Home         *services.HomeService
	Inbox        *services.InboxService
	Posts        *services.PostService
}

// New creates the app and its Slack clients.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	api := opts.API
	if api == nil {
		if cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "" {
			return nil, fmt.Errorf("slackapp: bot token and app token are required")
		}
		api = slack.New(
			cfg.Slack.BotToken,
			slack.OptionAppLevelToken(cfg.Slack.AppToken),
		)
	}

	return &App{
		api:          api,
		socket:       socketmode.New(api),
		cfg:          cfg,
		orchestrator: opts.Orchestrator,
		assistant:    opts.Assistant,
		wishlist:     opts.Wishlist,
		jobs:         opts.Jobs,
		ideas:        opts.Ideas,
		skills:       opts.Skills,
		credits:      opts.Credits,
		home:         opts.Home,
		inbox:        opts.Inbox,
		posts:        opts.Posts,
	}, nil
}

// API exposes the underlying Slack client, which also serves the channel
// loader and orchestrator.
func (a *App) API() *slack.Client {
	return a.api
}

// Run processes the Socket Mode event stream until the context ends.
func (a *App) Run(ctx context.Context) error {
	go a.eventLoop(ctx)
	if a.inbox != nil {
		go a.inboxReminderLoop(ctx)
	}
	return a.socket.RunContext(ctx)
}

func (a *App) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.dispatch(ctx, evt)
		}
	}
}

func (a *App) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)
		a.handleEvent(ctx, apiEvent)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)
		a.handleCommand(ctx, cmd)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)
		a.handleInteraction(ctx, callback)

	case socketmode.EventTypeConnectionError:
		logger.Warn("Slack connection error: %v", evt.Data)
	}
}

func (a *App) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		a.handleMention(ctx, ev)
	case *slackevents.AppHomeOpenedEvent:
		a.handleHomeOpened(ctx, ev)
	}
}

// postEphemeral replies to the user in place, swallowing delivery errors.
func (a *App) postEphemeral(ctx context.Context, channelID, userID, text string) {
	_, err := a.api.PostEphemeralContext(ctx, channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		logger.Warn("Failed to post ephemeral reply: %v", err)
	}
}

func (a *App) postMessage(ctx context.Context, channelID string, opts ...slack.MsgOption) {
	_, _, err := a.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		logger.Warn("Failed to post message: %v", err)
	}
}
