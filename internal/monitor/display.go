package monitor

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalnine/benchtrack/internal/tracker"
)

const barWidth = 30

// display renders monitor frames. All state here is cosmetic and resets when
// the tracked run switches.
type display struct {
	out   io.Writer
	clear bool
	waits int

	title  lipgloss.Style
	label  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	warn   lipgloss.Style
	muted  lipgloss.Style
	strong lipgloss.Style
}

func newDisplay(out io.Writer, color, clear bool) *display {
	d := &display{out: out, clear: clear}
	plain := lipgloss.NewStyle()
	d.title, d.label, d.good, d.bad, d.warn, d.muted, d.strong = plain, plain, plain, plain, plain, plain, plain
	if color {
		d.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
		d.label = lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4"))
		d.good = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
		d.bad = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
		d.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
		d.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
		d.strong = lipgloss.NewStyle().Bold(true)
	}
	return d
}

func (d *display) reset() {
	d.waits = 0
}

func (d *display) frameStart() {
	if d.clear {
		fmt.Fprint(d.out, "\033[2J\033[H")
	}
}

func (d *display) header(autoDetect bool) {
	fmt.Fprintln(d.out, d.title.Render(strings.Repeat("=", 60)))
	fmt.Fprintln(d.out, d.title.Render("BENCHMARK TRACKING MONITOR"))
	if autoDetect {
		fmt.Fprintln(d.out, d.muted.Render("(auto-detecting new runs)"))
	}
	fmt.Fprintln(d.out, d.title.Render(strings.Repeat("=", 60)))
}

// waiting is the screen shown while no benchmark state exists yet.
func (d *display) waiting(root string, interval time.Duration, autoDetect bool) {
	d.frameStart()
	d.header(autoDetect)
	d.waits++
	dots := strings.Repeat(".", d.waits%4)
	fmt.Fprintf(d.out, "\nWaiting for a benchmark to start%s\n", dots)
	if root != "" {
		fmt.Fprintf(d.out, "Watching %s for new runs.\n", root)
	}
	d.footer(interval, autoDetect)
}

// transient reports a retryable load failure; the next tick tries again.
func (d *display) transient(err error, interval time.Duration, autoDetect bool) {
	d.frameStart()
	d.header(autoDetect)
	fmt.Fprintf(d.out, "\n%s %v\n", d.warn.Render("transient:"), err)
	fmt.Fprintln(d.out, "Snapshot unreadable, retrying next tick.")
	d.footer(interval, autoDetect)
}

func (d *display) switchNotice(runDir string) {
	fmt.Fprintf(d.out, "%s %s\n", d.warn.Render("Switching to new benchmark:"), filepath.Base(runDir))
}

// frame renders a full dashboard for a loaded run snapshot.
func (d *display) frame(run *tracker.Run, stats tracker.Statistics, interval time.Duration, autoDetect bool) {
	d.frameStart()
	d.header(autoDetect)

	fmt.Fprintf(d.out, "\n%s %s\n", d.label.Render("Run:"), d.strong.Render(run.RunID))
	fmt.Fprintf(d.out, "%s %s\n", d.label.Render("State:"), d.stateStyle(run.State).Render(string(run.State)))
	fmt.Fprintf(d.out, "%s %s\n", d.label.Render("Model:"), run.Model)
	fmt.Fprintf(d.out, "%s %s\n", d.label.Render("Languages:"), strings.Join(run.Languages, ", "))
	if run.CurrentExercise != "" {
		fmt.Fprintf(d.out, "%s %s\n", d.label.Render("Currently running:"), run.CurrentExercise)
	}

	completed, total := stats.Completed, run.TotalExercises
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	fmt.Fprintf(d.out, "\n%s [%s] %d/%d (%.1f%%)\n",
		d.label.Render("Progress:"), progressBar(completed, total), completed, total, pct)
	fmt.Fprintf(d.out, "%s %d   %s %d\n",
		d.good.Render("passed:"), stats.Passed, d.bad.Render("failed:"), stats.Failed)
	if stats.Skipped > 0 || stats.Errored > 0 {
		fmt.Fprintf(d.out, "%s %d   %s %d\n",
			d.muted.Render("skipped:"), stats.Skipped, d.warn.Render("errors:"), stats.Errored)
	}
	if stats.EstRemainingSeconds > 0 {
		rem := time.Duration(stats.EstRemainingSeconds * float64(time.Second))
		fmt.Fprintf(d.out, "%s %dm %ds\n", d.label.Render("Estimated remaining:"),
			int(rem.Minutes()), int(rem.Seconds())%60)
	}

	fmt.Fprintf(d.out, "\n%s %.2f%%\n", d.label.Render("Pass rate:"), stats.PassRate)
	if langs := stats.Languages(); len(langs) > 0 {
		fmt.Fprintln(d.out, d.label.Render("By language:"))
		for _, lang := range langs {
			ls := stats.ByLanguage[lang]
			fmt.Fprintf(d.out, "  %-12s %6.2f%% (%d/%d)\n", lang, ls.PassRate, ls.Passed, ls.Total)
		}
	}
	if stats.TotalCostUSD > 0 {
		fmt.Fprintf(d.out, "%s $%.4f\n", d.label.Render("Total cost:"), stats.TotalCostUSD)
	}
	if stats.TotalTokens > 0 {
		fmt.Fprintf(d.out, "%s %d\n", d.label.Render("Total tokens:"), stats.TotalTokens)
	}
	d.footer(interval, autoDetect)
}

func (d *display) footer(interval time.Duration, autoDetect bool) {
	mode := "Refreshing"
	if autoDetect {
		mode = "Auto-refresh"
	}
	fmt.Fprintf(d.out, "\n%s\n", d.muted.Render(
		fmt.Sprintf("[%s every %s, Ctrl+C to exit]", mode, interval)))
}

func (d *display) stateStyle(state tracker.RunState) lipgloss.Style {
	switch state {
	case tracker.RunCompleted:
		return d.good
	case tracker.RunFailed, tracker.RunCancelled:
		return d.bad
	case tracker.RunPaused:
		return d.warn
	}
	return d.strong
}

func progressBar(completed, total int) string {
	if total < 1 {
		total = 1
	}
	filled := barWidth * completed / total
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
