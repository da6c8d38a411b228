// Package store persists run snapshots durably and atomically. The live state
// file is always replaced via temp-file-then-rename, so a monitor reading from
// another process never observes a partially written snapshot.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/benchtrack/internal/tracker"
)

const reportPrefix = "report_"

// Store owns one tracker state directory.
type Store struct {
	dir string
}

// New creates the state directory if needed and returns a store for it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating state dir %s: %v", tracker.ErrPersistence, dir, err)
	}
	return &Store{dir: dir}, nil
}

// Open returns a store for an existing state directory without creating it.
// The monitor uses this so a read never leaves directories behind.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// StatePath returns the live state file for a run id.
func (s *Store) StatePath(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

// ReportPath returns the immutable report file for a run id.
func (s *Store) ReportPath(runID string) string {
	return filepath.Join(s.dir, reportPrefix+runID+".json")
}

// Exists reports whether a live state file already exists for the run id.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.StatePath(runID))
	return err == nil
}

// Save writes the full run snapshot atomically.
func (s *Store) Save(run *tracker.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling run %q: %v", tracker.ErrPersistence, run.RunID, err)
	}
	if err := s.writeAtomic(s.StatePath(run.RunID), data); err != nil {
		return fmt.Errorf("%w: saving run %q: %v", tracker.ErrPersistence, run.RunID, err)
	}
	return nil
}

// Load reads and validates a run snapshot. A missing file is ErrNotFound (the
// run has not started yet); anything unreadable or unrecognizable is a
// retryable ErrPersistence.
func (s *Store) Load(runID string) (*tracker.Run, error) {
	return s.loadFile(s.StatePath(runID))
}

// LoadLatest returns the most recently written run snapshot in the state
// directory, skipping report files and anything unreadable. ErrNotFound when
// no snapshot loads.
func (s *Store) LoadLatest() (*tracker.Run, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: state dir %s", tracker.ErrNotFound, s.dir)
		}
		return nil, fmt.Errorf("%w: reading state dir %s: %v", tracker.ErrPersistence, s.dir, err)
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var candidates []candidate
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, reportPrefix) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{filepath.Join(s.dir, name), info.ModTime().UnixNano()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mtime > candidates[j].mtime })

	var lastErr error
	for _, c := range candidates {
		run, err := s.loadFile(c.path)
		if err != nil {
			lastErr = err
			continue
		}
		return run, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: no run snapshots in %s", tracker.ErrNotFound, s.dir)
}

// WriteReport writes the final report artifact to its own file so subsequent
// live updates can never clobber it.
func (s *Store) WriteReport(rep *tracker.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling report for run %q: %v", tracker.ErrPersistence, rep.Run.RunID, err)
	}
	if err := s.writeAtomic(s.ReportPath(rep.Run.RunID), data); err != nil {
		return fmt.Errorf("%w: writing report for run %q: %v", tracker.ErrPersistence, rep.Run.RunID, err)
	}
	return nil
}

// ReadSnapshot loads and validates a run snapshot at an explicit path.
func ReadSnapshot(path string) (*tracker.Run, error) {
	return (&Store{dir: filepath.Dir(path)}).loadFile(path)
}

func (s *Store) loadFile(path string) (*tracker.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no snapshot at %s", tracker.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", tracker.ErrPersistence, path, err)
	}
	var run tracker.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", tracker.ErrPersistence, path, err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid snapshot %s: %v", tracker.ErrPersistence, path, err)
	}
	return &run, nil
}

// writeAtomic replaces path with data via temp file, fsync and rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
