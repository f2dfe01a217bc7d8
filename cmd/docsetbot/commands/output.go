package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/docsetbot/internal/metrics"
	"git.home.luguber.info/inful/docsetbot/internal/pipeline"
	"git.home.luguber.info/inful/docsetbot/internal/state"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	successStyle = cellStyle.Foreground(lipgloss.Color("#A6E3A1"))
	warningStyle = cellStyle.Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle   = cellStyle.Foreground(lipgloss.Color("#F38BA8"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
)

// outcomeStyle colors a result or status cell. Run statuses "failed" and
// "skipped" share their values with the stage result labels.
func outcomeStyle(value string) lipgloss.Style {
	switch value {
	case string(metrics.ResultSuccess), string(state.RunSucceeded):
		return successStyle
	case string(metrics.ResultSkipped), string(state.RunRunning):
		return warningStyle
	case string(metrics.ResultFailed), string(metrics.ResultCanceled):
		return errorStyle
	default:
		return cellStyle
	}
}

func newTable(headers []string, rows [][]string, statusCol int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == statusCol && row >= 0 && row < len(rows):
				return outcomeStyle(rows[row][col])
			default:
				return cellStyle
			}
		})
}

// renderResult prints the per-stage outcome of a run.
func renderResult(res *pipeline.Result) string {
	rows := make([][]string, 0, len(res.Stages))
	for _, st := range res.Stages {
		rows = append(rows, []string{string(st.Name), string(st.Result), formatDuration(st.Duration)})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (run %s)\n", res.Library, res.Version, shortID(res.RunID))
	b.WriteString(newTable([]string{"STAGE", "RESULT", "DURATION"}, rows, 1).String())
	switch {
	case res.Skipped:
		fmt.Fprintf(&b, "\nAlready published: %s", res.PRURL)
	case res.PRURL != "":
		fmt.Fprintf(&b, "\nPull request: %s", res.PRURL)
	}
	return b.String()
}

// renderRuns prints the run history.
func renderRuns(runs []state.Run) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Library,
			run.Version,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			formatDuration(run.Duration()),
			run.PRURL,
		})
	}
	return newTable([]string{"RUN", "LIBRARY", "VERSION", "STATUS", "STARTED", "DURATION", "PULL REQUEST"}, rows, 3).String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
