package latencytracker

import (
	"fmt"
	"time"
)

const (
	// MaxKeySize is the maximum length of an event key, in bytes.
	MaxKeySize = 128

	// DefaultCapacity is the number of event slots allocated when the
	// capacity is left unspecified.
	DefaultCapacity = 100
)

// CloseReason indicates why an event was closed, and is available to
// callbacks via Event.Reason.
type CloseReason uint8

const (
	// CloseNormal indicates the event was ended by EventOut, with an elapsed
	// time at or above its threshold.
	CloseNormal CloseReason = iota

	// CloseTimeout indicates the event's timeout elapsed prior to EventOut.
	CloseTimeout

	// CloseGarbageCollected indicates the event was evicted by the periodic
	// GC sweep, having been open for longer than the GC threshold.
	CloseGarbageCollected

	// CloseUnique indicates the event was superseded by a unique EventIn,
	// for a matching key.
	CloseUnique
)

type (
	// Event is a snapshot of a closed event, as provided to a Callback.
	//
	// WARNING: The pointer provided to a Callback must not be retained after
	// the callback returns. Copy the value, if required.
	Event struct {
		// UserContext is the value provided to EventIn, unexamined.
		UserContext any

		callback Callback

		// Start is the timestamp at which the event began, in nanoseconds,
		// per the tracker's MonotonicClock.
		Start int64

		// End is the timestamp at which the event was closed. For
		// CloseTimeout it is the deadline (Start + Timeout).
		End int64

		// Threshold is the minimum latency, for EventOut to trigger the
		// callback.
		Threshold time.Duration

		// Timeout is the per-event timeout, or 0 if disabled.
		Timeout time.Duration

		// OutID is the id provided to EventOut, set only for CloseNormal.
		OutID uint64

		// KeyHash is the result of the tracker's HashFunc, for the key.
		KeyHash uint32

		keyLen uint8

		// Reason indicates how the event was closed.
		Reason CloseReason

		key [MaxKeySize]byte
	}

	// Callback is invoked at most once per event, without any tracker lock
	// held, meaning it may safely call back into the tracker.
	//
	// A panic in a callback invoked by EventOut or EventIn propagates to the
	// caller, after the callbacks of any other events closed by the same
	// call have been invoked. Panics in callbacks invoked by the Scheduler
	// (timeouts and GC) are recovered and logged.
	Callback func(event *Event)
)

// Key returns the event's key. The returned slice aliases the event.
func (x *Event) Key() []byte {
	return x.key[:x.keyLen]
}

// Latency returns the elapsed time between Start and End.
func (x *Event) Latency() time.Duration {
	return time.Duration(x.End - x.Start)
}

func (x *Event) setKey(key []byte) {
	x.keyLen = uint8(copy(x.key[:], key))
}

func (x CloseReason) String() string {
	switch x {
	case CloseNormal:
		return `normal`
	case CloseTimeout:
		return `timeout`
	case CloseGarbageCollected:
		return `gc`
	case CloseUnique:
		return `unique`
	default:
		return fmt.Sprintf(`CloseReason(%d)`, uint8(x))
	}
}
