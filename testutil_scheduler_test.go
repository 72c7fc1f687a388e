package latencytracker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type (
	// manualScheduler records scheduled functions, which tests fire
	// explicitly, on the calling goroutine.
	manualScheduler struct {
		mu     sync.Mutex
		timers []*manualTimer
	}

	manualTimer struct {
		scheduler *manualScheduler
		fn        func()
		d         time.Duration
		stopped   bool
		fired     bool
	}

	// manualClock is a MonotonicClock that only moves when told to.
	manualClock struct {
		now atomic.Int64
		err atomic.Pointer[error]
	}
)

func (x *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &manualTimer{scheduler: x, fn: fn, d: d}
	x.mu.Lock()
	x.timers = append(x.timers, t)
	x.mu.Unlock()
	return t
}

// pending returns all timers that have neither fired nor been stopped.
func (x *manualScheduler) pending() (timers []*manualTimer) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, t := range x.timers {
		if !t.stopped && !t.fired {
			timers = append(timers, t)
		}
	}
	return timers
}

func (x *manualScheduler) all() []*manualTimer {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*manualTimer(nil), x.timers...)
}

func (x *manualTimer) Stop() bool {
	x.scheduler.mu.Lock()
	defer x.scheduler.mu.Unlock()
	if x.stopped || x.fired {
		return false
	}
	x.stopped = true
	return true
}

func (x *manualTimer) isStopped() bool {
	x.scheduler.mu.Lock()
	defer x.scheduler.mu.Unlock()
	return x.stopped
}

// fire runs the function, if still pending.
func (x *manualTimer) fire() bool {
	x.scheduler.mu.Lock()
	if x.stopped || x.fired {
		x.scheduler.mu.Unlock()
		return false
	}
	x.fired = true
	x.scheduler.mu.Unlock()
	x.fn()
	return true
}

// fireLate runs the function regardless, as if Stop lost the race.
func (x *manualTimer) fireLate() {
	x.scheduler.mu.Lock()
	x.fired = true
	x.scheduler.mu.Unlock()
	x.fn()
}

func (x *manualClock) Nanotime() (int64, error) {
	if err := x.err.Load(); err != nil {
		return 0, *err
	}
	return x.now.Load(), nil
}

func (x *manualClock) set(ns int64) { x.now.Store(ns) }

func (x *manualClock) fail(err error) {
	if err == nil {
		x.err.Store(nil)
		return
	}
	x.err.Store(&err)
}

// newManualTracker initializes a Tracker driven entirely by the test.
func newManualTracker(t *testing.T, opts ...Option) (*Tracker, *manualClock, *manualScheduler) {
	t.Helper()
	c := new(manualClock)
	s := new(manualScheduler)
	x, err := New(append([]Option{WithMonotonicClock(c), WithScheduler(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { x.Destroy() })
	return x, c, s
}

// callbackRecorder collects copies of the events passed to its callback.
type callbackRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (x *callbackRecorder) callback(event *Event) {
	x.mu.Lock()
	x.events = append(x.events, *event)
	x.mu.Unlock()
}

func (x *callbackRecorder) get() []Event {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Event(nil), x.events...)
}

func (x *callbackRecorder) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.events)
}

// checkInvariants validates the internal consistency of the arena and the
// index, failing the test on any violation.
func checkInvariants(t *testing.T, x *Tracker) {
	t.Helper()

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		if len(x.pool.slots) != 0 || x.index.len != 0 {
			t.Errorf(`destroyed tracker retains state: %d slots, %d indexed`, len(x.pool.slots), x.index.len)
		}
		return
	}

	var live int
	for i := range x.pool.slots {
		if x.pool.slots[i].live {
			live++
		}
	}
	if live+len(x.pool.free) != len(x.pool.slots) {
		t.Errorf(`live (%d) + free (%d) != capacity (%d)`, live, len(x.pool.free), len(x.pool.slots))
	}
	if live != x.index.len {
		t.Errorf(`live (%d) != indexed (%d)`, live, x.index.len)
	}

	seen := make(map[int32]bool, len(x.pool.free))
	for _, idx := range x.pool.free {
		if seen[idx] {
			t.Errorf(`slot %d is on the free stack twice`, idx)
		}
		seen[idx] = true
		if x.pool.slots[idx].live {
			t.Errorf(`free slot %d is live`, idx)
		}
	}

	var indexed int
	for b := range x.index.buckets {
		prev := int32(-1)
		for idx := x.index.buckets[b]; idx >= 0; idx = x.pool.slots[idx].next {
			s := &x.pool.slots[idx]
			if !s.live {
				t.Errorf(`indexed slot %d is not live`, idx)
			}
			if s.prev != prev {
				t.Errorf(`slot %d has prev %d, expected %d`, idx, s.prev, prev)
			}
			if int(s.event.KeyHash&x.index.mask) != b {
				t.Errorf(`slot %d is in bucket %d, expected %d`, idx, b, s.event.KeyHash&x.index.mask)
			}
			if got := x.hash(s.event.Key()); got != s.event.KeyHash {
				t.Errorf(`slot %d has hash %d, expected %d`, idx, s.event.KeyHash, got)
			}
			prev = idx
			indexed++
			if indexed > len(x.pool.slots) {
				t.Fatal(`cycle in index`)
			}
		}
	}
	if indexed != x.index.len {
		t.Errorf(`walked %d indexed slots, expected %d`, indexed, x.index.len)
	}
}
