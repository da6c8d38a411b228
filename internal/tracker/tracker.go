// Package tracker records the lifecycle of a benchmark run: which exercises
// ran, how they ended, and what they cost. One Tracker instance is constructed
// per run and shared by reference with every worker; there is no process-wide
// instance. All mutations funnel through one coarse mutex whose critical
// sections are metadata-sized — the lock is never held while an exercise
// executes.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds the retry loop when the caller does not say.
const DefaultMaxAttempts = 3

// Persister is the durability layer the tracker writes through. Implemented
// by internal/store; the tracker never touches the filesystem itself.
type Persister interface {
	Save(run *Run) error
	Exists(runID string) bool
	WriteReport(rep *Report) error
}

// Tracker is the in-memory authoritative state for one benchmark run.
type Tracker struct {
	mu    sync.Mutex
	store Persister
	run   *Run
	agg   aggregates
}

func New(store Persister) *Tracker {
	return &Tracker{store: store}
}

// StartRun creates the run and persists the initial snapshot. An empty runID
// gets a generated one. A run id that already exists, in memory or on disk,
// is a configuration error — never a silent overwrite.
func (t *Tracker) StartRun(runID, model string, languages []string, totalExercises int, config map[string]any) (*Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if runID == "" {
		runID = uuid.NewString()
	}
	if t.run != nil {
		return nil, fmt.Errorf("%w: run %q already active on this tracker", ErrConfiguration, t.run.RunID)
	}
	if t.store.Exists(runID) {
		return nil, fmt.Errorf("%w: run %q already exists", ErrConfiguration, runID)
	}
	if totalExercises < 0 {
		return nil, fmt.Errorf("%w: negative total_exercises", ErrConfiguration)
	}

	run := &Run{
		RunID:          runID,
		Model:          model,
		Languages:      append([]string(nil), languages...),
		TotalExercises: totalExercises,
		State:          RunInitializing,
		StartedAt:      time.Now().UTC(),
		Config:         config,
		Exercises:      make(map[string]*Exercise),
	}
	run.State = RunRunning

	t.run = run
	t.agg = newAggregates(totalExercises)
	if err := t.save(); err != nil {
		t.run = nil
		return nil, err
	}
	return run.Clone(), nil
}

// StartExercise transitions the named exercise to running, creating the entry
// on first sight. Calling it again while the exercise is running is a retry:
// the same entry's attempt count increments, bounded by max attempts.
func (t *Tracker) StartExercise(name, language string, maxAttempts int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireRunning(); err != nil {
		return err
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	key := Key(language, name)
	e, ok := t.run.Exercises[key]
	if !ok {
		if err := t.roomForExercise(key); err != nil {
			return err
		}
		e = &Exercise{Name: name, Language: language, State: ExercisePending, MaxAttempts: maxAttempts}
		t.run.Exercises[key] = e
	}
	switch e.State {
	case ExercisePending:
	case ExerciseRunning:
		if e.Attempts >= e.MaxAttempts {
			return fmt.Errorf("%w: exercise %q exhausted %d attempts", ErrConfiguration, key, e.MaxAttempts)
		}
	default:
		return fmt.Errorf("%w: exercise %q already finished as %s", ErrConfiguration, key, e.State)
	}

	e.State = ExerciseRunning
	e.Attempts++
	now := time.Now().UTC()
	e.StartedAt = &now
	t.run.CurrentExercise = key
	return t.save()
}

// CompleteExercise ends the current attempt as passed or failed and merges the
// caller's metrics into the exercise. The exercise must currently be running:
// completing without a prior start is a configuration error, not a no-op, so
// dropped metrics are impossible to miss.
func (t *Tracker) CompleteExercise(name, language string, passed bool, metrics map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.runningExercise(name, language)
	if err != nil {
		return err
	}

	t.finishExercise(e, passed)
	if len(metrics) > 0 {
		if e.Metrics == nil {
			e.Metrics = make(map[string]any, len(metrics))
		}
		for k, v := range metrics {
			e.Metrics[k] = v
		}
	}
	return t.settleAndSave(e)
}

// AbortExercise ends the current attempt in the error state, recording the
// reason. Used when the harness itself failed rather than the solution.
func (t *Tracker) AbortExercise(name, language, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.runningExercise(name, language)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	e.CompletedAt = &now
	if e.StartedAt != nil {
		e.Durations = append(e.Durations, now.Sub(*e.StartedAt).Seconds())
	}
	e.State = ExerciseError
	if reason != "" {
		if e.Metrics == nil {
			e.Metrics = make(map[string]any, 1)
		}
		e.Metrics["error"] = reason
	}
	return t.settleAndSave(e)
}

// SkipExercise marks an exercise skipped without it ever running, for example
// when its working directory is missing. Skipped exercises count toward
// completion but not toward the pass rate.
func (t *Tracker) SkipExercise(name, language, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireRunning(); err != nil {
		return err
	}

	key := Key(language, name)
	e, ok := t.run.Exercises[key]
	if !ok {
		if err := t.roomForExercise(key); err != nil {
			return err
		}
		e = &Exercise{Name: name, Language: language, MaxAttempts: DefaultMaxAttempts}
		t.run.Exercises[key] = e
	}
	if e.State.Terminal() {
		return fmt.Errorf("%w: exercise %q already finished as %s", ErrConfiguration, key, e.State)
	}

	now := time.Now().UTC()
	e.CompletedAt = &now
	e.State = ExerciseSkipped
	if reason != "" {
		if e.Metrics == nil {
			e.Metrics = make(map[string]any, 1)
		}
		e.Metrics["skip_reason"] = reason
	}
	return t.settleAndSave(e)
}

// UpdateState moves the run through its lifecycle. Running and paused cycle
// freely; terminal states stamp the completion time and accept no further
// transitions.
func (t *Tracker) UpdateState(state RunState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run == nil {
		return fmt.Errorf("%w: no active run", ErrConfiguration)
	}
	if !state.Valid() {
		return fmt.Errorf("%w: unrecognized run state %q", ErrConfiguration, state)
	}
	if !validTransition(t.run.State, state) {
		return fmt.Errorf("%w: run %q cannot move %s -> %s", ErrConfiguration, t.run.RunID, t.run.State, state)
	}
	if state.Terminal() {
		t.finishRun(state)
	} else {
		t.run.State = state
	}
	return t.save()
}

// Progress returns the completion counters. The lock is held only long enough
// to copy a handful of integers out of the aggregate cache.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressLocked()
}

// Statistics returns the current snapshot from the incrementally maintained
// cache; it never re-walks the exercise map.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.snapshot()
}

// Snapshot returns a deep copy of the run, or nil when none is active.
func (t *Tracker) Snapshot() *Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run == nil {
		return nil
	}
	return t.run.Clone()
}

// ExportReport freezes the full run graph plus statistics into the immutable
// report artifact, written separately from the live state file.
func (t *Tracker) ExportReport() (*Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run == nil {
		return nil, fmt.Errorf("%w: no active run to export", ErrConfiguration)
	}
	rep := &Report{
		GeneratedAt: time.Now().UTC(),
		Version:     ReportVersion,
		Run:         t.run.Clone(),
		Progress:    t.progressLocked(),
		Statistics:  t.agg.snapshot(),
	}
	if err := t.store.WriteReport(rep); err != nil {
		if errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: exporting report for run %q: %v", ErrPersistence, t.run.RunID, err)
	}
	return rep, nil
}

func (t *Tracker) progressLocked() Progress {
	p := Progress{
		Completed: t.agg.completed,
		Total:     t.agg.total,
		Passed:    t.agg.passed,
		Failed:    t.agg.failed,
	}
	if p.Total > 0 {
		p.Percentage = round(float64(p.Completed)/float64(p.Total)*100, 2)
	}
	return p
}

func (t *Tracker) requireRunning() error {
	if t.run == nil {
		return fmt.Errorf("%w: no active run", ErrConfiguration)
	}
	if t.run.State != RunRunning {
		return fmt.Errorf("%w: run %q is %s, not running", ErrConfiguration, t.run.RunID, t.run.State)
	}
	return nil
}

// roomForExercise rejects a new exercise key once the run already tracks
// total_exercises distinct exercises. Without this bound a surplus completion
// would push the terminal count past the total and persist a snapshot the
// loader refuses.
func (t *Tracker) roomForExercise(key string) error {
	if t.run.TotalExercises > 0 && len(t.run.Exercises) >= t.run.TotalExercises {
		return fmt.Errorf("%w: exercise %q would exceed the run's %d total exercises",
			ErrConfiguration, key, t.run.TotalExercises)
	}
	return nil
}

func (t *Tracker) runningExercise(name, language string) (*Exercise, error) {
	if t.run == nil {
		return nil, fmt.Errorf("%w: no active run", ErrConfiguration)
	}
	if t.run.State.Terminal() {
		return nil, fmt.Errorf("%w: run %q already finished as %s", ErrConfiguration, t.run.RunID, t.run.State)
	}
	key := Key(language, name)
	e, ok := t.run.Exercises[key]
	if !ok || e.State != ExerciseRunning {
		return nil, fmt.Errorf("%w: exercise %q has no running attempt to complete", ErrConfiguration, key)
	}
	return e, nil
}

func (t *Tracker) finishExercise(e *Exercise, passed bool) {
	now := time.Now().UTC()
	e.CompletedAt = &now
	if e.StartedAt != nil {
		e.Durations = append(e.Durations, now.Sub(*e.StartedAt).Seconds())
	}
	if passed {
		e.State = ExercisePassed
	} else {
		e.State = ExerciseFailed
	}
}

// settleAndSave folds the finished exercise into the aggregate cache, closes
// out the run if this was the last exercise, and persists.
func (t *Tracker) settleAndSave(e *Exercise) error {
	if t.run.CurrentExercise == Key(e.Language, e.Name) {
		t.run.CurrentExercise = ""
	}
	t.agg.fold(e)
	if t.run.TotalExercises > 0 && t.agg.completed >= t.run.TotalExercises {
		t.finishRun(RunCompleted)
	}
	return t.save()
}

func (t *Tracker) finishRun(state RunState) {
	if t.run.State.Terminal() {
		return
	}
	t.run.State = state
	now := time.Now().UTC()
	t.run.CompletedAt = &now
	t.run.DurationSeconds = round(now.Sub(t.run.StartedAt).Seconds(), 2)
}

func (t *Tracker) save() error {
	if err := t.store.Save(t.run); err != nil {
		if errors.Is(err, ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: saving run %q: %v", ErrPersistence, t.run.RunID, err)
	}
	return nil
}

func validTransition(from, to RunState) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case RunInitializing:
		return to == RunRunning || to == RunFailed || to == RunCancelled
	case RunRunning:
		return to == RunPaused || to.Terminal()
	case RunPaused:
		return to == RunRunning || to.Terminal()
	}
	return false
}
