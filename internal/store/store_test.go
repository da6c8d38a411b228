package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/benchtrack/internal/store"
	"github.com/signalnine/benchtrack/internal/tracker"
)

func sampleRun() *tracker.Run {
	started := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)
	exStart := started.Add(10 * time.Second)
	exDone := exStart.Add(42 * time.Second)
	return &tracker.Run{
		RunID:          "r1",
		Model:          "claude-sonnet-4-0",
		Languages:      []string{"python", "go"},
		TotalExercises: 2,
		State:          tracker.RunRunning,
		StartedAt:      started,
		Config:         map[string]any{"suite": "full"},
		Exercises: map[string]*tracker.Exercise{
			"python/two-fer": {
				Name:        "two-fer",
				Language:    "python",
				State:       tracker.ExercisePassed,
				Attempts:    2,
				MaxAttempts: 3,
				Durations:   []float64{12.5, 42},
				Metrics: map[string]any{
					"cost":         0.01,
					"total_tokens": 100.0,
					"flaky":        true,
					"engine":       "v2",
				},
				StartedAt:   &exStart,
				CompletedAt: &exDone,
			},
			"go/hello": {
				Name:        "hello",
				Language:    "go",
				State:       tracker.ExerciseRunning,
				Attempts:    1,
				MaxAttempts: 3,
				StartedAt:   &exStart,
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run := sampleRun()
	if err := st.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, run) {
		t.Errorf("round trip mismatch:\ngot:  %+v\nwant: %+v", got, run)
	}
}

func TestLoadDecodesNumbersAsFloat64(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run := sampleRun()
	run.Exercises["python/two-fer"].Metrics["total_tokens"] = 100
	if err := st.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load("r1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tokens := got.Exercises["python/two-fer"].Metrics["total_tokens"]
	f, ok := tokens.(float64)
	if !ok || f != 100 {
		t.Errorf("total_tokens after reload: got %T %v, want float64 100", tokens, tokens)
	}
	if stats := tracker.Compute(got); stats.TotalTokens != 100 {
		t.Errorf("TotalTokens from reloaded run: got %d, want 100", stats.TotalTokens)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("nope"); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("missing snapshot: got %v, want ErrNotFound", err)
	}
}

func TestLoadCorruptIsRetryable(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "r1.json"), []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("r1"); !errors.Is(err, tracker.ErrPersistence) {
		t.Errorf("corrupt snapshot: got %v, want ErrPersistence", err)
	}
}

func TestLoadRejectsUnknownState(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	body := `{"run_id":"r1","state":"exploded","total_exercises":1,"started_at":"2025-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, "r1.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("r1"); !errors.Is(err, tracker.ErrPersistence) {
		t.Errorf("unknown state: got %v, want ErrPersistence", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(sampleRun()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, ent := range entries {
		if strings.HasSuffix(ent.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", ent.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the state file, got %d entries", len(entries))
	}
}

func TestLoadLatestSkipsReports(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	run := sampleRun()
	if err := st.Save(run); err != nil {
		t.Fatal(err)
	}
	rep := &tracker.Report{
		GeneratedAt: time.Now().UTC(),
		Version:     tracker.ReportVersion,
		Run:         run.Clone(),
		Statistics:  tracker.Compute(run),
	}
	if err := st.WriteReport(rep); err != nil {
		t.Fatal(err)
	}
	// Make the report file the newest thing in the directory.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(st.ReportPath("r1"), future, future); err != nil {
		t.Fatal(err)
	}

	got, err := st.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.RunID != "r1" {
		t.Errorf("run id: got %q", got.RunID)
	}
}

func TestLoadLatestPrefersNewest(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	old := sampleRun()
	old.RunID = "old"
	if err := st.Save(old); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(st.StatePath("old"), past, past); err != nil {
		t.Fatal(err)
	}
	fresh := sampleRun()
	fresh.RunID = "fresh"
	if err := st.Save(fresh); err != nil {
		t.Fatal(err)
	}

	got, err := st.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.RunID != "fresh" {
		t.Errorf("run id: got %q, want %q", got.RunID, "fresh")
	}
}

func TestLoadLatestEmptyIsNotFound(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.LoadLatest(); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("empty dir: got %v, want ErrNotFound", err)
	}
}

func TestReportFileIsSeparateFromLiveState(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	run := sampleRun()
	if err := st.Save(run); err != nil {
		t.Fatal(err)
	}
	rep := &tracker.Report{GeneratedAt: time.Now().UTC(), Version: tracker.ReportVersion, Run: run.Clone()}
	if err := st.WriteReport(rep); err != nil {
		t.Fatal(err)
	}
	reportBefore, err := os.ReadFile(st.ReportPath("r1"))
	if err != nil {
		t.Fatal(err)
	}

	// Subsequent live updates must not touch the report.
	run.State = tracker.RunCompleted
	if err := st.Save(run); err != nil {
		t.Fatal(err)
	}
	reportAfter, err := os.ReadFile(st.ReportPath("r1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(reportBefore) != string(reportAfter) {
		t.Error("live save modified the report file")
	}
}
