package tracker

import (
	"fmt"
	"time"
)

// RunState is the overall state of a benchmark run.
type RunState string

const (
	RunInitializing RunState = "initializing"
	RunRunning      RunState = "running"
	RunPaused       RunState = "paused"
	RunCompleted    RunState = "completed"
	RunFailed       RunState = "failed"
	RunCancelled    RunState = "cancelled"
)

func (s RunState) Valid() bool {
	switch s {
	case RunInitializing, RunRunning, RunPaused, RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// ExerciseState is the state of a single exercise within a run.
type ExerciseState string

const (
	ExercisePending ExerciseState = "pending"
	ExerciseRunning ExerciseState = "running"
	ExercisePassed  ExerciseState = "passed"
	ExerciseFailed  ExerciseState = "failed"
	ExerciseSkipped ExerciseState = "skipped"
	ExerciseError   ExerciseState = "error"
)

func (s ExerciseState) Valid() bool {
	switch s {
	case ExercisePending, ExerciseRunning, ExercisePassed, ExerciseFailed, ExerciseSkipped, ExerciseError:
		return true
	}
	return false
}

func (s ExerciseState) Terminal() bool {
	switch s {
	case ExercisePassed, ExerciseFailed, ExerciseSkipped, ExerciseError:
		return true
	}
	return false
}

// Exercise records one coding challenge attempted within a run. Re-attempts
// mutate the same entry; the (language, name) pair is unique within a run.
type Exercise struct {
	Name        string         `json:"name"`
	Language    string         `json:"language"`
	State       ExerciseState  `json:"state"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	Durations   []float64      `json:"durations,omitempty"`
	// Metrics holds arbitrary per-exercise measurements keyed by name. Values
	// survive persistence as JSON types only: numbers reload as float64
	// regardless of the Go type written, so consumers must compare numerically,
	// not with type assertions on int.
	Metrics     map[string]any `json:"metrics,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Key returns the map key for an exercise, "<language>/<name>".
func Key(language, name string) string {
	return language + "/" + name
}

func (e *Exercise) clone() *Exercise {
	c := *e
	c.Durations = append([]float64(nil), e.Durations...)
	if e.Metrics != nil {
		c.Metrics = make(map[string]any, len(e.Metrics))
		for k, v := range e.Metrics {
			c.Metrics[k] = v
		}
	}
	return &c
}

// Run is the complete state of one benchmark run.
type Run struct {
	RunID           string               `json:"run_id"`
	Model           string               `json:"model"`
	Languages       []string             `json:"languages"`
	TotalExercises  int                  `json:"total_exercises"`
	State           RunState             `json:"state"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	DurationSeconds float64              `json:"duration_seconds,omitempty"`
	CurrentExercise string               `json:"current_exercise,omitempty"`
	Config          map[string]any       `json:"config,omitempty"`
	Exercises       map[string]*Exercise `json:"exercises"`
}

// Clone returns a deep copy, safe to hand outside the tracker's lock.
func (r *Run) Clone() *Run {
	c := *r
	c.Languages = append([]string(nil), r.Languages...)
	if r.Config != nil {
		c.Config = make(map[string]any, len(r.Config))
		for k, v := range r.Config {
			c.Config[k] = v
		}
	}
	c.Exercises = make(map[string]*Exercise, len(r.Exercises))
	for k, e := range r.Exercises {
		c.Exercises[k] = e.clone()
	}
	return &c
}

// Validate rejects snapshots with unrecognized states or inconsistent shape.
// Load paths call this so a corrupt or future-versioned file surfaces as an
// error instead of being silently accepted.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is empty")
	}
	if !r.State.Valid() {
		return fmt.Errorf("run %q: unrecognized state %q", r.RunID, r.State)
	}
	if r.TotalExercises < 0 {
		return fmt.Errorf("run %q: negative total_exercises", r.RunID)
	}
	terminal := 0
	for key, e := range r.Exercises {
		if e == nil {
			return fmt.Errorf("run %q: exercise %q is null", r.RunID, key)
		}
		if !e.State.Valid() {
			return fmt.Errorf("run %q: exercise %q: unrecognized state %q", r.RunID, key, e.State)
		}
		if want := Key(e.Language, e.Name); key != want {
			return fmt.Errorf("run %q: exercise keyed %q but identifies as %q", r.RunID, key, want)
		}
		if e.State.Terminal() {
			terminal++
		}
	}
	if terminal > r.TotalExercises {
		return fmt.Errorf("run %q: %d exercises in terminal states exceeds total %d",
			r.RunID, terminal, r.TotalExercises)
	}
	return nil
}

// Progress is a cheap, copyable view of completion state.
type Progress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
}

// Report is the immutable artifact written by ExportReport, distinct from the
// live state file.
type Report struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Version     string     `json:"tracker_version"`
	Run         *Run       `json:"run"`
	Progress    Progress   `json:"progress"`
	Statistics  Statistics `json:"statistics"`
}

// ReportVersion identifies the report schema.
const ReportVersion = "1.0.0"
