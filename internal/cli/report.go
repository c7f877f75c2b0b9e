package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/communitykit/communitybot/internal/core/domain"
)

var (
	targetStyle  = lipgloss.NewStyle().Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// renderReport formats one progress report for the terminal.
func renderReport(r domain.Report) string {
	label := targetStyle.Render(fmt.Sprintf("%s %s", r.Target, r.ID))

	switch r.Kind {
	case domain.ReportUpdate:
		return fmt.Sprintf("  %s %s %s %s %s",
			label,
			addedStyle.Render(fmt.Sprintf("+%d", len(r.Stats.Added))),
			mutedStyle.Render(fmt.Sprintf("~%d =%d", len(r.Stats.Updated), len(r.Stats.Skipped))),
			removedStyle.Render(fmt.Sprintf("-%d", len(r.Stats.Removed))),
			failedSuffix(len(r.Stats.Failed)))
	case domain.ReportRemoved:
		return fmt.Sprintf("  %s %s", label,
			removedStyle.Render(fmt.Sprintf("removed (%d rows)", r.Amount)))
	case domain.ReportError:
		return fmt.Sprintf("  %s %s", label, errorStyle.Render("failed: "+r.Err))
	default:
		return ""
	}
}

func failedSuffix(n int) string {
	if n == 0 {
		return ""
	}
	return errorStyle.Render(fmt.Sprintf("!%d", n))
}

func renderDone(text string) string {
	return doneStyle.Render(text)
}
