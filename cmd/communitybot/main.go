package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/slack-go/slack"

	"github.com/communitykit/communitybot/internal/adapters/driven/ai"
	rediscache "github.com/communitykit/communitybot/internal/adapters/driven/cache/redis"
	memorystore "github.com/communitykit/communitybot/internal/adapters/driven/vectorstore/memory"
	"github.com/communitykit/communitybot/internal/adapters/driven/vectorstore/pgvector"
	"github.com/communitykit/communitybot/internal/cli"
	"github.com/communitykit/communitybot/internal/config"
	"github.com/communitykit/communitybot/internal/core/ports/driven"
	"github.com/communitykit/communitybot/internal/core/services"
	"github.com/communitykit/communitybot/internal/loaders/website"
	"github.com/communitykit/communitybot/internal/logger"
	"github.com/communitykit/communitybot/internal/notion"
	"github.com/communitykit/communitybot/internal/slackapp"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	// Local development keeps tokens in a .env file. A missing file is
	// the normal production case.
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.SetAppFactory(buildApp)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildApp wires the adapters and services behind the CLI commands.
func buildApp(cfgPath string) (*cli.App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	embedder, err := ai.NewEmbeddingService(ai.EmbeddingConfig{
		Provider:   cfg.AI.Embedding.Provider,
		APIKey:     cfg.AI.Embedding.APIKey,
		Model:      cfg.AI.Embedding.Model,
		BaseURL:    cfg.AI.Embedding.BaseURL,
		Dimensions: cfg.AI.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	completion, err := ai.NewCompletionService(ai.CompletionConfig{
		Provider: cfg.AI.Completion.Provider,
		APIKey:   cfg.AI.Completion.APIKey,
		Model:    cfg.AI.Completion.Model,
		BaseURL:  cfg.AI.Completion.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	images, err := ai.NewImageService(ai.ImageConfig{
		Provider: cfg.AI.Image.Provider,
		APIKey:   cfg.AI.Image.APIKey,
		Model:    cfg.AI.Image.Model,
		BaseURL:  cfg.AI.Image.BaseURL,
	})
	if err != nil {
		// Post generation is optional; everything else keeps working.
		logger.Warn("Image service not configured: %v", err)
		images = nil
	}

	store, err := newVectorStore(cfg, embedder)
	if err != nil {
		return nil, err
	}

	cache := rediscache.New(rediscache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	notionClient := notion.NewClient(cfg.Notion.Token)

	var (
		slackAPI *slack.Client
		slackCli services.SlackClient
	)
	if cfg.Slack.BotToken != "" && cfg.Slack.AppToken != "" {
		slackAPI = slack.New(
			cfg.Slack.BotToken,
			slack.OptionAppLevelToken(cfg.Slack.AppToken),
		)
		slackCli = slackAPI
	}

	orchestrator := services.NewSyncOrchestrator(
		store,
		cache,
		notionClient,
		slackCli,
		&website.HTTPFetcher{},
		services.SyncConfig{
			IndexDatabaseID:     cfg.Notion.IndexDatabaseID,
			RowsAsPages:         cfg.Notion.RowsAsPages,
			RecursiveChildPages: cfg.Notion.RecursiveChildPages,
			WebsiteBaseURL:      cfg.Website.BaseURL,
			WebsitePaths:        cfg.Website.Paths,
			BotUserID:           cfg.Slack.BotUserID,
			NotionConcurrency:   cfg.Notion.Concurrency,
			NotionRPS:           cfg.Notion.RequestsPerSecond,
			SlackWindow:         time.Duration(cfg.Slack.WindowDays) * 24 * time.Hour,
		},
	)

	assistant := services.NewAssistant(store, embedder, completion)

	members := services.NewMemberDirectory(notionClient, cache, cfg.Community.MembersDatabaseID)
	wishlist := services.NewWishlistService(notionClient, cache, members, cfg.Community.WishlistDatabaseID)
	jobs := services.NewJobBoardService(notionClient, cfg.Community.JobsDatabaseID)
	ideas := services.NewIdeaService(notionClient, cfg.Community.IdeasDatabaseID)
	skills := services.NewSkillService(notionClient, cfg.Community.SkillsDatabaseID)
	credits := services.NewCreditService(notionClient, cache, cfg.Community.CreditsDatabaseID)
	home := services.NewHomeService(wishlist, credits, ideas, jobs)
	inbox := services.NewInboxService(cache)
	posts := services.NewPostService(images)

	app := &cli.App{
		Config:       cfg,
		Orchestrator: orchestrator,
		Assistant:    assistant,
	}

	if slackAPI != nil {
		slackApp, err := slackapp.New(slackapp.Options{
			API:          slackAPI,
			Config:       cfg,
			Orchestrator: orchestrator,
			Assistant:    assistant,
			Wishlist:     wishlist,
			Jobs:         jobs,
			Ideas:        ideas,
			Skills:       skills,
			Credits:      credits,
			Home:         home,
			Inbox:        inbox,
			Posts:        posts,
		})
		if err != nil {
			return nil, err
		}
		app.Slack = slackApp
	}

	return app, nil
}

// newVectorStore opens the pgvector store, or falls back to the in-memory
// store when no database is configured so local commands keep working.
func newVectorStore(cfg *config.Config, embedder driven.EmbeddingService) (driven.VectorStore, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("No database DSN configured, using the in-memory vector store")
		return memorystore.New(embedder), nil
	}

	store, err := pgvector.New(pgvector.Config{
		DSN:   cfg.Database.DSN,
		Table: cfg.Database.Table,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return store, nil
}
