package latencytracker

import (
	"errors"
)

var (
	// ErrInvalidArgument is returned for invalid input, e.g. a nil Tracker,
	// or a key longer than MaxKeySize. It is never accompanied by a state
	// change.
	ErrInvalidArgument = errors.New("latencytracker: invalid argument")

	// ErrFull is returned by EventIn when every event slot is in use. It is
	// an expected back-pressure signal, the caller decides whether to drop
	// or retry.
	ErrFull = errors.New("latencytracker: pool exhausted")

	// ErrNotFound is returned by EventOut when no open event matched the
	// key, e.g. because it already timed out, or was garbage collected.
	ErrNotFound = errors.New("latencytracker: no matching event")

	// ErrClosed is returned when operations are attempted on a destroyed
	// Tracker.
	ErrClosed = errors.New("latencytracker: tracker has been destroyed")

	// ErrClockUnavailable is returned when the clock could not be read. The
	// operation is refused, rather than using a stale timestamp.
	ErrClockUnavailable = errors.New("latencytracker: clock unavailable")

	// ErrAllocation is returned by New when the event slots cannot be
	// allocated. No partial Tracker is returned.
	ErrAllocation = errors.New("latencytracker: allocation failed")
)
