package latencytracker

import (
	"time"

	"github.com/joeycumines/go-latencytracker/internal/timerqueue"
	"k8s.io/utils/clock"
)

type (
	// Scheduler arranges for functions to be called after a delay, and is
	// used for per-event timeouts, and the periodic GC sweep.
	//
	// Scheduled functions may be called concurrently with any tracker
	// method. They synchronize with the tracker like any other caller, and
	// tolerate having been stopped too late, so implementations need not
	// guarantee that a successful Stop means the function never runs.
	//
	// AfterFunc is called with the tracker's lock held, so fn must not be
	// called before AfterFunc returns, even if d is zero or has already
	// elapsed.
	Scheduler interface {
		AfterFunc(d time.Duration, fn func()) Timer
	}

	// Timer is a handle to a function scheduled via a Scheduler.
	Timer interface {
		// Stop attempts to prevent the function from running, returning
		// true if it was pending.
		Stop() bool
	}

	// SchedulerFunc implements Scheduler.
	SchedulerFunc func(d time.Duration, fn func()) Timer

	queueScheduler struct {
		queue *timerqueue.Queue
	}

	clockScheduler struct {
		clock clock.WithDelayedExecution
	}
)

var (
	// compile time assertions

	_ Scheduler = SchedulerFunc(nil)
	_ Scheduler = queueScheduler{}
	_ Scheduler = clockScheduler{}
)

// AfterFunc implements Scheduler.
func (x SchedulerFunc) AfterFunc(d time.Duration, fn func()) Timer {
	return x(d, fn)
}

// ClockScheduler adapts a clock supporting delayed execution, e.g.
// clock.RealClock, which runs each function on its own goroutine (via
// time.AfterFunc).
func ClockScheduler(c clock.WithDelayedExecution) Scheduler {
	if c == nil {
		panic(`latencytracker: nil clock`)
	}
	return clockScheduler{clock: c}
}

func (x clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return x.clock.AfterFunc(d, fn)
}

func (x queueScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return x.queue.AfterFunc(d, fn)
}
