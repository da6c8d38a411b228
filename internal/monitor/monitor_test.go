package monitor_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/benchtrack/internal/monitor"
	"github.com/signalnine/benchtrack/internal/scan"
	"github.com/signalnine/benchtrack/internal/store"
	"github.com/signalnine/benchtrack/internal/tracker"
)

func writeRunState(t *testing.T, runDir, runID string, completed, total int) {
	t.Helper()
	st, err := store.New(scan.StateDir(runDir))
	if err != nil {
		t.Fatal(err)
	}
	run := &tracker.Run{
		RunID:          runID,
		Model:          "sonnet",
		Languages:      []string{"python"},
		TotalExercises: total,
		State:          tracker.RunRunning,
		StartedAt:      time.Now().UTC(),
		Exercises:      map[string]*tracker.Exercise{},
	}
	for i := 0; i < completed; i++ {
		name := string(rune('a' + i))
		run.Exercises[tracker.Key("python", name)] = &tracker.Exercise{
			Name: name, Language: "python", State: tracker.ExercisePassed,
			Attempts: 1, MaxAttempts: 3,
		}
	}
	if err := st.Save(run); err != nil {
		t.Fatal(err)
	}
}

// runMonitor drives a monitor until ctx expires and returns its output.
func runMonitor(t *testing.T, ctx context.Context, opts monitor.Options) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	opts.Out = &buf
	done := make(chan error, 1)
	go func() {
		done <- monitor.New(opts).Run(ctx)
	}()
	select {
	case err := <-done:
		return buf.String(), err
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
		return "", nil
	}
}

func TestNoStateAndNoAutoDetectFails(t *testing.T) {
	ctx := context.Background()
	_, err := runMonitor(t, ctx, monitor.Options{AutoDetect: false, Interval: 10 * time.Millisecond})
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestExplicitDirWithoutStateFails(t *testing.T) {
	ctx := context.Background()
	_, err := runMonitor(t, ctx, monitor.Options{
		StateDir:   t.TempDir(),
		AutoDetect: false,
		Interval:   10 * time.Millisecond,
	})
	if !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRendersRunSnapshot(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "2025-01-01-10-00-00--sonnet")
	writeRunState(t, runDir, "run-one", 1, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out, err := runMonitor(t, ctx, monitor.Options{
		StateDir: scan.StateDir(runDir),
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{"run-one", "1/2", "sonnet"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCancellationIsCleanExit(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "2025-01-01-10-00-00--sonnet")
	writeRunState(t, runDir, "run-one", 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runMonitor(t, ctx, monitor.Options{
		StateDir: scan.StateDir(runDir),
		Interval: time.Hour,
	})
	if err != nil {
		t.Errorf("cancelled monitor should return nil, got %v", err)
	}
}

func TestTransientCorruptionKeepsPolling(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "r1.json"), []byte("{torn"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	out, err := runMonitor(t, ctx, monitor.Options{
		StateDir: dir,
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Errorf("corrupt snapshot should be retryable, got %v", err)
	}
	if !strings.Contains(out, "transient") {
		t.Errorf("expected a transient diagnostic:\n%s", out)
	}
}

func TestAutoDetectSwitchesToNewerRun(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "2025-01-01-10-00-00--old")
	writeRunState(t, oldDir, "run-old", 0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- monitor.New(monitor.Options{
			Root:       root,
			AutoDetect: true,
			Interval:   20 * time.Millisecond,
			Out:        &buf,
		}).Run(ctx)
	}()

	// Let it latch onto the old run, then make a newer run ready.
	time.Sleep(60 * time.Millisecond)
	newDir := filepath.Join(root, "2025-01-02-10-00-00--new")
	writeRunState(t, newDir, "run-new", 0, 1)
	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run-old") {
		t.Errorf("monitor never tracked the old run:\n%s", out)
	}
	if !strings.Contains(out, "run-new") {
		t.Errorf("monitor never switched to the newer run:\n%s", out)
	}
	if !strings.Contains(out, "Switching to new benchmark") {
		t.Errorf("expected a switch notice:\n%s", out)
	}
}

func TestAutoDetectWaitsWhenNothingExists(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out, err := runMonitor(t, ctx, monitor.Options{
		Root:       t.TempDir(),
		AutoDetect: true,
		Interval:   10 * time.Millisecond,
	})
	if err != nil {
		t.Errorf("waiting monitor should not fail, got %v", err)
	}
	if !strings.Contains(out, "Waiting for a benchmark to start") {
		t.Errorf("expected waiting screen:\n%s", out)
	}
}
