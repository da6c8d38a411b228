package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/benchtrack/internal/scan"
	"github.com/signalnine/benchtrack/internal/store"
	"github.com/signalnine/benchtrack/internal/tracker"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-dir|state-file>",
		Short: "Render statistics for a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := loadRunArg(args[0])
			if err != nil {
				return err
			}
			return writeReport(run, tracker.Compute(run), flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}

// loadRunArg accepts a run directory, a tracker state directory, or a state
// file path.
func loadRunArg(arg string) (*tracker.Run, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", arg, err)
	}
	if !info.IsDir() {
		return store.ReadSnapshot(arg)
	}
	dir := arg
	if scan.Ready(dir) {
		dir = scan.StateDir(dir)
	}
	return store.Open(dir).LoadLatest()
}

func writeReport(run *tracker.Run, stats tracker.Statistics, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(run, stats, w)
	case "json":
		return writeJSON(run, stats, w)
	default:
		return writeTable(run, stats, w)
	}
}

func writeTable(run *tracker.Run, stats tracker.Statistics, w io.Writer) error {
	fmt.Fprintf(w, "Run %s (%s), model %s, state %s\n",
		run.RunID, strings.Join(run.Languages, ", "), run.Model, run.State)
	fmt.Fprintf(w, "Completed %d/%d, pass rate %.1f%%, cost $%.4f, tokens %d\n\n",
		stats.Completed, run.TotalExercises, stats.PassRate, stats.TotalCostUSD, stats.TotalTokens)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tTOTAL\tPASSED\tFAILED\tPASS RATE")
	fmt.Fprintln(tw, strings.Repeat("-", 50))
	for _, lang := range stats.Languages() {
		ls := stats.ByLanguage[lang]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f%%\n", lang, ls.Total, ls.Passed, ls.Failed, ls.PassRate)
	}
	return tw.Flush()
}

func writeMarkdown(run *tracker.Run, stats tracker.Statistics, w io.Writer) error {
	fmt.Fprintf(w, "## Run %s\n\n", run.RunID)
	fmt.Fprintf(w, "Model `%s`, state `%s`, %d/%d completed, pass rate %.1f%%, cost $%.4f.\n\n",
		run.Model, run.State, stats.Completed, run.TotalExercises, stats.PassRate, stats.TotalCostUSD)
	fmt.Fprintln(w, "| Language | Total | Passed | Failed | Pass Rate |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, lang := range stats.Languages() {
		ls := stats.ByLanguage[lang]
		fmt.Fprintf(w, "| %s | %d | %d | %d | %.1f%% |\n", lang, ls.Total, ls.Passed, ls.Failed, ls.PassRate)
	}
	return nil
}

func writeJSON(run *tracker.Run, stats tracker.Statistics, w io.Writer) error {
	out := struct {
		RunID      string             `json:"run_id"`
		Model      string             `json:"model"`
		State      tracker.RunState   `json:"state"`
		Total      int                `json:"total_exercises"`
		Statistics tracker.Statistics `json:"statistics"`
	}{run.RunID, run.Model, run.State, run.TotalExercises, stats}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
