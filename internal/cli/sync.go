package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/communitykit/communitybot/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [notion|website|slack]",
	Short: "Synchronise the knowledge index",
	Long: `Runs the incremental knowledge-index synchronisation.
Without an argument all sources are synchronised in sequence.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"notion", "website", "slack"},
	RunE:      runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	progress := func(r domain.Report) {
		cmd.Println(renderReport(r))
	}

	ctx := cmd.Context()
	switch {
	case len(args) == 0:
		cmd.Println("Synchronising all sources...")
		err = a.Orchestrator.SyncAll(ctx, progress)
	case args[0] == "notion":
		cmd.Println("Synchronising Notion targets...")
		err = a.Orchestrator.SyncNotion(ctx, progress)
	case args[0] == "website":
		cmd.Println("Synchronising website pages...")
		err = a.Orchestrator.SyncWebsite(ctx, progress)
	case args[0] == "slack":
		cmd.Println("Synchronising Slack channels...")
		err = a.Orchestrator.SyncSlack(ctx, progress)
	default:
		return fmt.Errorf("unknown source %q", args[0])
	}

	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	cmd.Println(renderDone("Sync complete."))
	return nil
}
