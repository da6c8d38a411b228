// Package monitor implements the read-only polling loop that follows a
// benchmark run from a separate process. It shares nothing with the writers
// except the state file: atomic snapshot writes on their side mean every read
// here sees a fully formed file, so no cross-process locking is needed. The
// view is eventually consistent, bounded by the refresh interval.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/signalnine/benchtrack/internal/scan"
	"github.com/signalnine/benchtrack/internal/store"
	"github.com/signalnine/benchtrack/internal/tracker"
)

// DefaultInterval is the poll cadence when the caller does not choose one.
const DefaultInterval = 5 * time.Second

type Options struct {
	// StateDir is an explicit tracker state directory. Empty means rely on
	// auto-detection to find one.
	StateDir string
	// Root is the directory scanned for run directories when AutoDetect is on.
	Root string
	// AutoDetect re-scans Root each tick and switches to newer runs.
	AutoDetect bool
	Interval   time.Duration
	Out        io.Writer
	// Color enables styled output; ClearScreen redraws in place.
	Color       bool
	ClearScreen bool
}

// Monitor polls run state and renders it. Strictly read-only: it never writes
// to the tracked state, so interruption at any point leaves nothing torn.
type Monitor struct {
	opts   Options
	disp   *display
	st     *store.Store
	runDir string
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	m := &Monitor{
		opts: opts,
		disp: newDisplay(opts.Out, opts.Color, opts.ClearScreen),
	}
	if opts.StateDir != "" {
		m.st = store.Open(opts.StateDir)
	}
	return m
}

// Run polls until ctx is cancelled. Cancellation (Ctrl-C) is a clean exit and
// returns nil. A hard "nothing to monitor" condition returns ErrNotFound so
// the CLI can exit non-zero.
func (m *Monitor) Run(ctx context.Context) error {
	if m.st == nil && !m.opts.AutoDetect {
		return fmt.Errorf("%w: no state directory given and auto-detect is disabled", tracker.ErrNotFound)
	}

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if err := m.tick(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// tick performs one poll cycle: detect, load, render.
func (m *Monitor) tick() error {
	if m.opts.AutoDetect {
		latest, err := scan.Latest(m.opts.Root)
		if err != nil {
			log.Printf("warning: scanning %s: %v", m.opts.Root, err)
		} else if latest != "" && latest != m.runDir {
			if m.runDir != "" {
				m.disp.switchNotice(latest)
			}
			m.runDir = latest
			m.st = store.Open(scan.StateDir(latest))
			m.disp.reset()
		}
	}

	if m.st == nil {
		m.disp.waiting(m.opts.Root, m.opts.Interval, m.opts.AutoDetect)
		return nil
	}

	run, err := m.st.LoadLatest()
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		if !m.opts.AutoDetect {
			return fmt.Errorf("%w: no benchmark state in %s", tracker.ErrNotFound, m.st.Dir())
		}
		m.disp.waiting(m.opts.Root, m.opts.Interval, m.opts.AutoDetect)
		return nil
	case err != nil:
		// Retryable: a snapshot mid-corruption or a slow filesystem should
		// not kill the monitor.
		m.disp.transient(err, m.opts.Interval, m.opts.AutoDetect)
		return nil
	}

	m.disp.frame(run, tracker.Compute(run), m.opts.Interval, m.opts.AutoDetect)
	return nil
}
