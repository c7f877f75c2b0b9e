package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack app",
	Long: `Connects to Slack over Socket Mode and serves slash commands, the
assistant and the home tab until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if a.Slack == nil {
		return errors.New("slack app not configured; set slack bot_token and app_token")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println("Serving the Slack app. Press Ctrl+C to stop.")
	if err := a.Slack.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("slack app stopped: %w", err)
	}
	return nil
}
