package tracker

import "errors"

// Error taxonomy shared by the tracker, store, scanner and monitor. Callers
// match with errors.Is.
var (
	// ErrConfiguration marks an invalid lifecycle call: duplicate run id,
	// exercise operations on a run that is not running, or completing an
	// exercise that was never started. Never absorbed silently.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence marks a failed write or an unreadable/corrupt snapshot.
	// Retryable: the monitor treats it as transient and tries again next tick.
	ErrPersistence = errors.New("persistence error")

	// ErrNotFound marks state that does not exist yet: no snapshot for a run
	// id, or no candidate run directories.
	ErrNotFound = errors.New("not found")
)
