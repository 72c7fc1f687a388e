// Package timerqueue implements deadline-ordered scheduling of functions,
// using a min-heap and a single worker goroutine, driven by a
// [k8s.io/utils/clock.Clock], so that it may be controlled by a fake clock.
package timerqueue

import (
	"container/heap"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

type (
	// Queue runs functions after their deadline elapses, one at a time, on a
	// dedicated goroutine. Functions must not block for long, as they delay
	// all later deadlines.
	//
	// Instances must be initialized using the New factory.
	Queue struct {
		clock  clock.Clock
		wake   chan struct{}
		done   chan struct{}
		exited chan struct{}
		timers timerHeap
		mu     sync.Mutex
		once   sync.Once
		closed bool
	}

	// Timer is a function scheduled on a Queue.
	Timer struct {
		queue *Queue
		when  time.Time
		fn    func()
		// position in the heap, or -1 if not queued
		index int
	}

	timerHeap []*Timer
)

// New initializes a Queue, starting its worker. A nil clock uses the real
// clock. The Queue.Close method should be called when no longer needed.
func New(c clock.Clock) *Queue {
	if c == nil {
		c = clock.RealClock{}
	}
	x := &Queue{
		clock:  c,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go x.run()
	return x
}

// AfterFunc schedules fn to be called after at least d has elapsed, per the
// queue's clock. If the queue is closed, the returned Timer is inert.
func (x *Queue) AfterFunc(d time.Duration, fn func()) *Timer {
	if fn == nil {
		panic(`timerqueue: nil func`)
	}

	t := &Timer{queue: x, fn: fn, index: -1}

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return t
	}
	t.when = x.clock.Now().Add(d)
	heap.Push(&x.timers, t)
	first := t.index == 0
	x.mu.Unlock()

	if first {
		x.signal()
	}

	return t
}

// Stop prevents the Timer from firing, returning false if it already fired,
// was already stopped, or the queue was closed.
func (x *Timer) Stop() bool {
	if x == nil || x.queue == nil {
		return false
	}
	q := x.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if x.index < 0 {
		return false
	}
	heap.Remove(&q.timers, x.index)
	return true
}

// Len returns the number of pending timers.
func (x *Queue) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.timers)
}

// Close stops the worker, discarding all pending timers. It does not wait for
// the worker to exit, meaning it may be called from a scheduled function, see
// also Queue.Done.
func (x *Queue) Close() error {
	x.once.Do(func() {
		x.mu.Lock()
		x.closed = true
		for _, t := range x.timers {
			t.index = -1
		}
		x.timers = nil
		x.mu.Unlock()
		close(x.done)
	})
	return nil
}

// Done is closed once the worker has exited, after Close.
func (x *Queue) Done() <-chan struct{} {
	return x.exited
}

func (x *Queue) signal() {
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

func (x *Queue) run() {
	defer close(x.exited)

	var timer clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		fn, delay, pending := x.next()

		if fn != nil {
			select {
			case <-x.done:
				return
			default:
			}
			fn()
			continue
		}

		var timerC <-chan time.Time
		if pending {
			if timer != nil {
				timer.Stop()
			}
			timer = x.clock.NewTimer(delay)
			timerC = timer.C()
		}

		select {
		case <-x.done:
			return
		case <-x.wake:
		case <-timerC:
		}
	}
}

// next pops the earliest timer if it is due, otherwise returning the delay
// until it will be, and whether there is any pending timer.
func (x *Queue) next() (fn func(), delay time.Duration, pending bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.timers) == 0 {
		return nil, 0, false
	}

	t := x.timers[0]
	if delay = t.when.Sub(x.clock.Now()); delay > 0 {
		return nil, delay, true
	}

	heap.Pop(&x.timers)
	return t.fn, 0, true
}

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
