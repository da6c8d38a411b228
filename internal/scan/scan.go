// Package scan locates benchmark run directories by their timestamp-prefixed
// names. Names sort lexicographically by construction, so the newest run is
// simply the greatest name.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StateDirName is the tracker-owned subdirectory inside a run directory.
const StateDirName = ".tracker"

// StateDir returns the tracker state directory for a run directory.
func StateDir(runDir string) string {
	return filepath.Join(runDir, StateDirName)
}

// IsRunDir reports whether a directory name follows the run naming
// convention: a timestamp prefix ("2025-01-02-13-04-05"), all digits once the
// dashes are stripped, separated from the label by "--".
func IsRunDir(name string) bool {
	sep := strings.Index(name, "--")
	if sep <= 0 {
		return false
	}
	prefix := strings.ReplaceAll(name[:sep], "-", "")
	if prefix == "" {
		return false
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Candidates lists run directory names under root, oldest first. A missing
// root means no candidates, not an error.
func Candidates(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() && IsRunDir(ent.Name()) {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the newest candidate run directory that is ready: its state
// subdirectory exists and holds at least one snapshot. Directories created
// before their first state write are skipped rather than faulted on. Empty
// string when nothing qualifies.
func Latest(root string) (string, error) {
	names, err := Candidates(root)
	if err != nil {
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		dir := filepath.Join(root, names[i])
		if Ready(dir) {
			return dir, nil
		}
	}
	return "", nil
}

// Ready reports whether a run directory has a readable state snapshot.
func Ready(runDir string) bool {
	entries, err := os.ReadDir(StateDir(runDir))
	if err != nil {
		return false
	}
	for _, ent := range entries {
		name := ent.Name()
		if !ent.IsDir() && strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, "report_") {
			return true
		}
	}
	return false
}
