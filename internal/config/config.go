// Package config loads the typed application configuration from a TOML
// file, with environment variables overriding the secret-bearing fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// DefaultDir is the configuration directory under the user's home.
const DefaultDir = ".communitybot"

// Config is the full application configuration.
type Config struct {
	Notion    NotionConfig    `toml:"notion"`
	Slack     SlackConfig     `toml:"slack"`
	Website   WebsiteConfig   `toml:"website"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	AI        AIConfig        `toml:"ai"`
	Community CommunityConfig `toml:"community"`
}

// NotionConfig configures the Notion integration.
type NotionConfig struct {
	// Token is the integration token. Overridden by NOTION_TOKEN.
	Token string `toml:"token"`

	// IndexDatabaseID is the database whose rows declare the sync targets.
	IndexDatabaseID string `toml:"index_database_id"`

	// RowsAsPages loads database-target rows as full pages.
	RowsAsPages bool `toml:"rows_as_pages"`

	// RecursiveChildPages follows nested pages under page targets.
	RecursiveChildPages bool `toml:"recursive_child_pages"`

	// Concurrency caps simultaneous Notion requests. Zero means default.
	Concurrency int `toml:"concurrency"`

	// RequestsPerSecond caps the Notion request rate. Zero means default.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SlackConfig configures the Slack app surface.
type SlackConfig struct {
	// BotToken is the xoxb token. Overridden by SLACK_BOT_TOKEN.
	BotToken string `toml:"bot_token"`

	// AppToken is the xapp token for Socket Mode. Overridden by
	// SLACK_APP_TOKEN.
	AppToken string `toml:"app_token"`

	// BotUserID is the app's own user id, filtered from indexed history.
	BotUserID string `toml:"bot_user_id"`

	// AdminUserIDs may trigger sync commands.
	AdminUserIDs []string `toml:"admin_user_ids"`

	// WindowDays bounds how far back channel history is indexed.
	// Zero means the loader default of 30 days.
	WindowDays int `toml:"window_days"`
}

// WebsiteConfig configures the public website source.
type WebsiteConfig struct {
	// BaseURL is the website origin.
	BaseURL string `toml:"base_url"`

	// Paths are the page paths to index.
	Paths []string `toml:"paths"`
}

// DatabaseConfig configures the pgvector store.
type DatabaseConfig struct {
	// DSN is the PostgreSQL connection string. Overridden by DATABASE_URL.
	DSN string `toml:"dsn"`

	// Table is the index table name. Empty means the default.
	Table string `toml:"table"`
}

// RedisConfig configures the cache and feature-flag store.
type RedisConfig struct {
	// Addr is host:port. Overridden by REDIS_ADDR.
	Addr string `toml:"addr"`

	// Password is overridden by REDIS_PASSWORD.
	Password string `toml:"password"`

	// DB selects the logical database.
	DB int `toml:"db"`
}

// AIConfig configures the completion, embedding and image providers.
type AIConfig struct {
	Completion ProviderConfig `toml:"completion"`
	Embedding  ProviderConfig `toml:"embedding"`
	Image      ProviderConfig `toml:"image"`
}

// ProviderConfig selects one AI provider.
type ProviderConfig struct {
	// Provider is openai, anthropic or ollama. Empty means openai.
	Provider string `toml:"provider"`

	// APIKey authenticates hosted providers. Overridden by
	// OPENAI_API_KEY or ANTHROPIC_API_KEY depending on the provider.
	APIKey string `toml:"api_key"`

	// Model overrides the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// Dimensions overrides the embedding vector size. Ignored for
	// completion providers.
	Dimensions int `toml:"dimensions"`
}

// CommunityConfig names the Notion databases behind the community
// features.
type CommunityConfig struct {
	MembersDatabaseID  string `toml:"members_database_id"`
	WishlistDatabaseID string `toml:"wishlist_database_id"`
	JobsDatabaseID     string `toml:"jobs_database_id"`
	IdeasDatabaseID    string `toml:"ideas_database_id"`
	SkillsDatabaseID   string `toml:"skills_database_id"`
	CreditsDatabaseID  string `toml:"credits_database_id"`
}

// DefaultPath returns ~/.communitybot/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDir, "config.toml"), nil
}

// Load reads the configuration file and applies environment overrides.
// A missing file is not an error: environment variables alone can carry a
// complete deployment configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Fall through to the environment.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secret-bearing fields from the environment, so
// tokens never have to live in the config file.
func (c *Config) applyEnv() {
	setIfEnv(&c.Notion.Token, "NOTION_TOKEN")
	setIfEnv(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	setIfEnv(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	setIfEnv(&c.Database.DSN, "DATABASE_URL")
	setIfEnv(&c.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&c.Redis.Password, "REDIS_PASSWORD")

	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = n
		}
	}

	setIfEnv(&c.AI.Completion.APIKey, completionKeyEnv(c.AI.Completion.Provider))
	setIfEnv(&c.AI.Embedding.APIKey, "OPENAI_API_KEY")
	setIfEnv(&c.AI.Image.APIKey, "OPENAI_API_KEY")
}

func completionKeyEnv(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func setIfEnv(target *string, name string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

// IsAdmin reports whether the Slack user may trigger privileged commands.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Slack.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
