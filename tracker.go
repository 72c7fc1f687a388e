package latencytracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-latencytracker/internal/timerqueue"
	"github.com/joeycumines/logiface"
)

// MaxCapacity is the largest supported number of event slots.
const MaxCapacity = 1 << 22

const categoryFull = `full`

// Tracker matches the beginning and end of events, by key, invoking their
// callbacks when their latency meets a threshold, they time out, are garbage
// collected, or are superseded.
//
// All methods are safe for concurrent use. Instances must be initialized
// using the New factory, and Tracker.Destroy (or Tracker.Close) should be
// called when the Tracker is no longer needed.
type Tracker struct { // betteralign:ignore
	logger      *logiface.Logger[logiface.Event]
	fullLimiter *catrate.Limiter
	clock       MonotonicClock
	scheduler   Scheduler
	queue       *timerqueue.Queue // owned scheduler, if not configured
	hash        HashFunc
	match       MatchFunc
	userContext any
	capacity    int

	// everything below is guarded by mu

	mu          sync.Mutex
	pool        slotPool
	index       keyIndex
	gcTimer     Timer
	gcPeriod    time.Duration
	gcThreshold time.Duration
	gcGen       uint64 // invalidates superseded sweeps
	closed      bool

	stats trackerStats
}

// New initializes a Tracker, allocating every event slot up front, and
// arming the GC sweep, if enabled (see WithGCPeriod and WithGCThreshold).
//
// ErrAllocation is returned if the configured capacity exceeds MaxCapacity,
// in which case nothing is retained.
func New(opts ...Option) (*Tracker, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.capacity > MaxCapacity {
		return nil, fmt.Errorf(`%w: capacity %d exceeds %d`, ErrAllocation, cfg.capacity, MaxCapacity)
	}

	x := &Tracker{
		logger:      cfg.logger,
		fullLimiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 1, time.Minute: 10}),
		scheduler:   cfg.scheduler,
		hash:        cfg.hash,
		match:       cfg.match,
		userContext: cfg.userContext,
		capacity:    cfg.capacity,
		gcPeriod:    cfg.gcPeriod,
		gcThreshold: cfg.gcThreshold,
		pool:        newSlotPool(cfg.capacity),
	}
	x.index = newKeyIndex(x.pool.slots)

	if cfg.monotonic != nil {
		x.clock = cfg.monotonic
	} else {
		x.clock = newPassiveClock(cfg.clock)
	}

	if x.scheduler == nil {
		x.queue = timerqueue.New(cfg.clock)
		x.scheduler = queueScheduler{queue: x.queue}
	}

	x.mu.Lock()
	x.armGCLocked()
	x.mu.Unlock()

	return x, nil
}

// EventIn begins an event for key, which may be up to MaxKeySize bytes.
//
// The callback (which may be nil) will be invoked at most once, if the event
// ends with a latency at or above threshold (see Tracker.EventOut), if
// timeout elapses first (unless timeout is 0), if the event is garbage
// collected, or if it is superseded by a unique EventIn.
//
// If unique is true, every open event with a matching key is closed, with
// CloseUnique, before the new event is added. If the pool is exhausted, and
// the purge would not free a slot, ErrFull is returned without side effects.
//
// A nil error indicates the event was added. ErrFull is an expected
// condition. Any other error will be one of ErrInvalidArgument, ErrClosed, or
// ErrClockUnavailable (possibly wrapped).
func (x *Tracker) EventIn(key []byte, threshold time.Duration, callback Callback, timeout time.Duration, unique bool, userContext any) error {
	if x == nil {
		return fmt.Errorf(`%w: nil tracker`, ErrInvalidArgument)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf(`%w: key length %d exceeds %d`, ErrInvalidArgument, len(key), MaxKeySize)
	}
	if timeout < 0 {
		return fmt.Errorf(`%w: negative timeout: %s`, ErrInvalidArgument, timeout)
	}

	now, err := x.now()
	if err != nil {
		return err
	}
	hash := x.hash(key)

	var superseded []Event

	x.mu.Lock()

	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}

	if unique {
		if x.pool.available() == 0 && !x.hasMatchLocked(hash, key) {
			x.mu.Unlock()
			x.onFull()
			return ErrFull
		}
		superseded = x.purgeLocked(hash, key, now)
	}

	ref, ok := x.pool.acquire()
	if !ok {
		x.mu.Unlock()
		x.onFull()
		return ErrFull
	}

	s := &x.pool.slots[ref.idx]
	s.event.setKey(key)
	s.event.KeyHash = hash
	s.event.Start = now
	s.event.Threshold = threshold
	s.event.Timeout = timeout
	s.event.callback = callback
	s.event.UserContext = userContext
	if timeout > 0 {
		s.timer = x.scheduler.AfterFunc(timeout, func() { x.expire(ref) })
	}
	x.index.insert(ref.idx)

	x.mu.Unlock()

	x.stats.begun.Add(1)
	invoke(superseded)

	return nil
}

// EventOut ends every open event matching key. Events with a latency at or
// above their threshold have their callback invoked, with CloseNormal, and
// the provided id (see Event.OutID). Events below their threshold are closed
// silently.
//
// ErrNotFound is returned if there was no matching event, e.g. because it
// already timed out. Other errors are as per Tracker.EventIn.
func (x *Tracker) EventOut(key []byte, id uint64) error {
	if x == nil {
		return fmt.Errorf(`%w: nil tracker`, ErrInvalidArgument)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf(`%w: key length %d exceeds %d`, ErrInvalidArgument, len(key), MaxKeySize)
	}

	now, err := x.now()
	if err != nil {
		return err
	}
	hash := x.hash(key)

	var (
		found  bool
		events []Event
	)

	x.mu.Lock()

	if x.closed {
		x.mu.Unlock()
		return ErrClosed
	}

	x.index.forEachInBucket(hash, func(idx int32) bool {
		if !x.matchesLocked(idx, hash, key) {
			return true
		}
		found = true
		s := &x.pool.slots[idx]
		if time.Duration(now-s.event.Start) >= s.event.Threshold {
			s.event.Reason = CloseNormal
			s.event.End = now
			s.event.OutID = id
			events = appendCallback(events, &s.event)
			x.stats.close(CloseNormal)
		} else {
			x.stats.belowThreshold.Add(1)
		}
		x.destroyLocked(x.pool.ref(idx))
		return true
	})

	x.mu.Unlock()

	invoke(events)

	if !found {
		x.stats.notFound.Add(1)
		return ErrNotFound
	}

	return nil
}

// SetGCThreshold updates the GC threshold, arming or disarming the sweep as
// necessary. See also WithGCThreshold.
func (x *Tracker) SetGCThreshold(threshold time.Duration) {
	if x == nil {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.gcThreshold = threshold
	x.armGCLocked()
}

// SetGCPeriod updates the interval between GC sweeps, arming or disarming the
// sweep as necessary. The next sweep will be a full period from now. See
// also WithGCPeriod.
func (x *Tracker) SetGCPeriod(period time.Duration) {
	if x == nil {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.gcPeriod = period
	x.armGCLocked()
}

// UserContext returns the value configured via WithUserContext.
func (x *Tracker) UserContext() any {
	if x == nil {
		return nil
	}
	return x.userContext
}

// Len returns the number of open events.
func (x *Tracker) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.len
}

// Cap returns the total number of event slots.
func (x *Tracker) Cap() int {
	return x.capacity
}

// Stats returns a snapshot of the tracker's counters.
func (x *Tracker) Stats() Stats {
	s := x.stats.snapshot()
	s.Live = x.Len()
	s.Capacity = x.capacity
	return s
}

// Destroy disarms the GC sweep, then closes every open event without
// invoking callbacks, returning the number of events discarded. The event
// slots are released, and subsequent operations will fail with ErrClosed.
// Calling Destroy more than once is safe, and will return 0.
func (x *Tracker) Destroy() int {
	n, _ := x.destroy()
	return n
}

// Close implements io.Closer, see Tracker.Destroy. It returns ErrClosed if
// the tracker was already destroyed.
func (x *Tracker) Close() error {
	if _, ok := x.destroy(); !ok {
		return ErrClosed
	}
	return nil
}

func (x *Tracker) destroy() (int, bool) {
	if x == nil {
		return 0, false
	}

	x.mu.Lock()

	if x.closed {
		x.mu.Unlock()
		return 0, false
	}
	x.closed = true
	x.armGCLocked()

	var n int
	x.index.forEachAll(func(idx int32) bool {
		x.destroyLocked(x.pool.ref(idx))
		n++
		return true
	})

	x.pool = slotPool{}
	x.index = keyIndex{}

	x.mu.Unlock()

	if x.queue != nil {
		_ = x.queue.Close()
	}

	x.stats.discarded.Add(uint64(n))

	x.logger.Info().
		Int(`pending`, n).
		Log(`events were still pending at destruction`)

	return n, true
}

// expire handles a timeout, for the event identified by ref, which may have
// already been closed (the ref will be stale).
func (x *Tracker) expire(ref slotRef) {
	x.mu.Lock()

	s := x.pool.get(ref)
	if s == nil {
		x.mu.Unlock()
		return
	}

	// consumed, destroyLocked must not stop it
	s.timer = nil

	s.event.Reason = CloseTimeout
	s.event.End = s.event.Start + int64(s.event.Timeout)
	events := appendCallback(nil, &s.event)
	x.stats.close(CloseTimeout)
	x.destroyLocked(ref)

	x.mu.Unlock()

	x.safeInvoke(events)
}

// sweep performs GC, evicting events older than the GC threshold, then
// re-arms itself. The gen guards against sweeps that were superseded (e.g.
// by SetGCPeriod) after the timer fired.
func (x *Tracker) sweep(gen uint64) {
	now, err := x.now()

	x.mu.Lock()

	if gen != x.gcGen {
		x.mu.Unlock()
		return
	}
	x.gcTimer = nil

	var (
		events  []Event
		evicted int
	)
	if err == nil {
		threshold := x.gcThreshold
		x.index.forEachAll(func(idx int32) bool {
			s := &x.pool.slots[idx]
			if time.Duration(now-s.event.Start) > threshold {
				s.event.Reason = CloseGarbageCollected
				s.event.End = now
				events = appendCallback(events, &s.event)
				x.stats.close(CloseGarbageCollected)
				x.destroyLocked(x.pool.ref(idx))
				evicted++
			}
			return true
		})
	}

	x.armGCLocked()

	x.mu.Unlock()

	if err != nil {
		x.logger.Warning().
			Err(err).
			Log(`skipped gc sweep`)
	} else if evicted != 0 {
		x.logger.Debug().
			Int(`evicted`, evicted).
			Log(`gc sweep`)
	}

	x.safeInvoke(events)
}

// armGCLocked cancels any pending sweep, then schedules a new one, if GC is
// enabled (both period and threshold are positive).
func (x *Tracker) armGCLocked() {
	if x.gcTimer != nil {
		x.gcTimer.Stop()
		x.gcTimer = nil
	}
	x.gcGen++
	if x.closed || x.gcPeriod <= 0 || x.gcThreshold <= 0 {
		return
	}
	gen := x.gcGen
	x.gcTimer = x.scheduler.AfterFunc(x.gcPeriod, func() { x.sweep(gen) })
}

// destroyLocked is the single exit path for live events: it removes the
// index entry, stops any pending timeout, then releases the slot.
func (x *Tracker) destroyLocked(ref slotRef) {
	s := x.pool.get(ref)
	if s == nil {
		panic(`latencytracker: destroy of free or stale slot`)
	}
	x.index.remove(ref.idx)
	if s.timer != nil {
		s.timer.Stop()
	}
	x.pool.release(ref)
}

// purgeLocked closes every event matching key, with CloseUnique.
func (x *Tracker) purgeLocked(hash uint32, key []byte, now int64) (events []Event) {
	x.index.forEachInBucket(hash, func(idx int32) bool {
		if x.matchesLocked(idx, hash, key) {
			s := &x.pool.slots[idx]
			s.event.Reason = CloseUnique
			s.event.End = now
			events = appendCallback(events, &s.event)
			x.stats.close(CloseUnique)
			x.destroyLocked(x.pool.ref(idx))
		}
		return true
	})
	return events
}

func (x *Tracker) hasMatchLocked(hash uint32, key []byte) bool {
	return !x.index.forEachInBucket(hash, func(idx int32) bool {
		return !x.matchesLocked(idx, hash, key)
	})
}

func (x *Tracker) matchesLocked(idx int32, hash uint32, key []byte) bool {
	e := &x.pool.slots[idx].event
	return e.KeyHash == hash && x.match(key, e.Key())
}

func (x *Tracker) now() (int64, error) {
	ts, err := x.clock.Nanotime()
	if err != nil {
		return 0, fmt.Errorf(`%w: %w`, ErrClockUnavailable, err)
	}
	return ts, nil
}

func (x *Tracker) onFull() {
	x.stats.full.Add(1)
	if b := x.logger.Debug(); b.Enabled() {
		if _, ok := x.fullLimiter.Allow(categoryFull); ok {
			b.Int(`capacity`, x.capacity).
				Log(`event pool exhausted`)
		} else {
			b.Release()
		}
	}
}

// safeInvoke calls the callbacks of events, recovering and logging any
// panic, for use on the scheduler's goroutine.
func (x *Tracker) safeInvoke(events []Event) {
	for i := range events {
		x.safeCall(&events[i])
	}
}

func (x *Tracker) safeCall(event *Event) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Any(`panic`, r).
				Str(`reason`, event.Reason.String()).
				Log(`event callback panicked`)
		}
	}()
	event.callback(event)
}

// appendCallback copies event into events, if it has a callback.
func appendCallback(events []Event, event *Event) []Event {
	if event.callback != nil {
		events = append(events, *event)
	}
	return events
}

// invoke calls the callbacks of events, in order. If any callback panics,
// the remaining callbacks are still called, then the first panic is
// re-raised.
func invoke(events []Event) {
	var (
		panicked bool
		value    any
	)
	for i := range events {
		func() {
			defer func() {
				if r := recover(); r != nil && !panicked {
					panicked, value = true, r
				}
			}()
			events[i].callback(&events[i])
		}()
	}
	if panicked {
		panic(value)
	}
}
