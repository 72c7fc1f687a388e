// Package latencytracker tracks the latency between the beginning and end of
// keyed events, invoking a callback only for those events that take at least
// as long as their threshold, or that never end (via a per-event timeout, or
// a periodic garbage collection sweep).
//
// It is intended for instrumenting hot paths, where the vast majority of
// events are expected to be fast, and therefore uninteresting. Every event
// slot is allocated up front, and the common paths, beginning an event and
// ending it below its threshold, do not allocate, with the exception of the
// timers used to implement timeouts. Invoking callbacks allocates a snapshot
// of each closed event, and errors may allocate.
//
// Events are matched by key, which are arbitrary bytes, up to MaxKeySize.
// Keys need not be unique: ending a key ends every open event for it, and
// EventIn may optionally supersede any existing events for the same key.
//
// Callbacks are always invoked without any internal lock held, and may
// therefore call back into the Tracker. Callbacks for timeouts and GC are
// invoked from the Tracker's Scheduler, and should not block.
package latencytracker
