package junction

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/listener"
	"github.com/ethereum-optimism/infra/op-junction/ui"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const bannerWidth = 60

// ConsoleFormatter prints a run summary as a banner followed by tables
type ConsoleFormatter struct {
	out    io.Writer
	logger log.Logger
}

func NewConsoleFormatter(out io.Writer, logger log.Logger) *ConsoleFormatter {
	return &ConsoleFormatter{out: out, logger: logger}
}

// Format writes the banner, the totals table and, when there are any, the
// failures table.
func (f *ConsoleFormatter) Format(runID string, s listener.Summary) error {
	f.logger.Debug("Printing results...", "run_id", runID)

	banner := ui.BuildBoxHeader(fmt.Sprintf("Results: %s", s.Label), bannerWidth) +
		ui.BuildBoxLine(fmt.Sprintf("Run: %s", runID), bannerWidth) +
		ui.BuildBoxLine(fmt.Sprintf("Status: %s", runStatus(s)), bannerWidth) +
		ui.BuildBoxFooter(bannerWidth)
	if _, err := io.WriteString(f.out, banner); err != nil {
		return fmt.Errorf("writing banner: %w", err)
	}

	totals := table.NewWriter()
	totals.SetOutputMirror(f.out)
	totals.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(s.Duration())))
	totals.AppendHeader(table.Row{"Tests", "Passed", "Failed", "Aborted", "Skipped", "Pass Rate", "Reports"})
	totals.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	totals.AppendRow(table.Row{
		s.Total, s.Passed, s.Failed, s.Aborted, s.Skipped,
		fmt.Sprintf("%.1f%%", s.PassRate()), s.ReportEntries,
	})
	totals.SetStyle(styleFor(s))
	totals.Render()

	if len(s.Failures) == 0 && len(s.ContainerFailures) == 0 {
		return nil
	}

	failures := table.NewWriter()
	failures.SetOutputMirror(f.out)
	failures.SetTitle("Failures")
	failures.AppendHeader(table.Row{"Type", "ID", "Status", "Error"})
	failures.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, fail := range s.ContainerFailures {
		failures.AppendRow(failureRow("Package", fail))
	}
	for _, fail := range s.Failures {
		failures.AppendRow(failureRow("Test", fail))
	}
	failures.Render()
	return nil
}

func failureRow(kind string, f listener.Failure) table.Row {
	cause := ""
	if f.Result.Cause != nil {
		cause = f.Result.Cause.Error()
	}
	return table.Row{kind, f.ID.DisplayName, f.Result.Status.String(), cause}
}

func runStatus(s listener.Summary) string {
	switch {
	case s.HasFailures():
		return "FAIL"
	case s.Total > 0 && s.Skipped == s.Total:
		return "SKIP"
	default:
		return "PASS"
	}
}

func styleFor(s listener.Summary) table.Style {
	switch runStatus(s) {
	case "FAIL":
		return table.StyleColoredBlackOnRedWhite
	case "SKIP":
		return table.StyleColoredBlackOnYellowWhite
	default:
		return table.StyleColoredBlackOnGreenWhite
	}
}

// formatDuration formats to seconds with one decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
