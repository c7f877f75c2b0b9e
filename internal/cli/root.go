// Package cli is the command-line surface of the bot: serving the Slack
// app, triggering syncs and querying the assistant from a terminal.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/communitykit/communitybot/internal/config"
	"github.com/communitykit/communitybot/internal/core/ports/driving"
	"github.com/communitykit/communitybot/internal/logger"
	"github.com/communitykit/communitybot/internal/slackapp"
)

// version is set at build time via -ldflags.
var version = "dev"

// App bundles the wired services the commands drive.
type App struct {
	Config       *config.Config
	Orchestrator driving.SyncOrchestrator
	Assistant    driving.Assistant
	Slack        *slackapp.App
}

var (
	cfgPath string
	verbose bool

	// appFactory builds the wired application on first use, so commands
	// that never touch external services stay cheap.
	appFactory func(cfgPath string) (*App, error)
	app        *App
)

var rootCmd = &cobra.Command{
	Use:   "communitybot",
	Short: "Community workspace bot with an incremental knowledge index",
	Long: `communitybot keeps a community's knowledge index in sync with Notion,
the public website and Slack, and serves the Slack app that answers
questions against it.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.toml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetAppFactory installs the function that wires the application.
func SetAppFactory(fn func(cfgPath string) (*App, error)) {
	appFactory = fn
}

// getApp wires the application once and reuses it across commands.
func getApp() (*App, error) {
	if app != nil {
		return app, nil
	}
	if appFactory == nil {
		return nil, errors.New("application not configured")
	}

	built, err := appFactory(cfgPath)
	if err != nil {
		return nil, err
	}
	app = built
	return app, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
