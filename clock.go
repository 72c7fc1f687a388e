package latencytracker

import (
	"time"

	"k8s.io/utils/clock"
)

type (
	// MonotonicClock is the source of event timestamps.
	MonotonicClock interface {
		// Nanotime returns a monotonic timestamp, in nanoseconds. An error
		// indicates the clock could not be read, e.g. due to the calling
		// context, which causes the operation to be refused.
		Nanotime() (int64, error)
	}

	// MonotonicClockFunc implements MonotonicClock.
	MonotonicClockFunc func() (int64, error)

	// passiveClock implements MonotonicClock as the elapsed time since
	// epoch, which relies on the monotonic reading carried by time.Time.
	passiveClock struct {
		clock clock.PassiveClock
		epoch time.Time
	}
)

var (
	// compile time assertions

	_ MonotonicClock = MonotonicClockFunc(nil)
	_ MonotonicClock = (*passiveClock)(nil)
)

// Nanotime implements MonotonicClock.
func (x MonotonicClockFunc) Nanotime() (int64, error) {
	return x()
}

func newPassiveClock(c clock.PassiveClock) *passiveClock {
	return &passiveClock{clock: c, epoch: c.Now()}
}

func (x *passiveClock) Nanotime() (int64, error) {
	return int64(x.clock.Since(x.epoch)), nil
}
