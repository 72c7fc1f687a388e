package latencytracker

import (
	"sync/atomic"
)

type (
	// Stats is a point-in-time snapshot of a Tracker's counters.
	Stats struct {
		// Begun is the number of events accepted by EventIn.
		Begun uint64
		// Full is the number of EventIn calls rejected with ErrFull.
		Full uint64
		// NotFound is the number of EventOut calls that matched nothing.
		NotFound uint64
		// Normal is the number of events ended at or above their threshold.
		Normal uint64
		// BelowThreshold is the number of events ended below their
		// threshold, which were closed without a callback.
		BelowThreshold uint64
		// Timeout is the number of events closed by their timeout.
		Timeout uint64
		// GarbageCollected is the number of events evicted by GC.
		GarbageCollected uint64
		// Unique is the number of events superseded by a unique EventIn.
		Unique uint64
		// Discarded is the number of events dropped by Tracker.Destroy.
		Discarded uint64
		// Live is the number of open events.
		Live int
		// Capacity is the total number of event slots.
		Capacity int
	}

	trackerStats struct {
		begun          atomic.Uint64
		full           atomic.Uint64
		notFound       atomic.Uint64
		belowThreshold atomic.Uint64
		discarded      atomic.Uint64
		closed         [closeReasonCount]atomic.Uint64
	}
)

const closeReasonCount = int(CloseUnique) + 1

func (x *trackerStats) close(reason CloseReason) {
	x.closed[reason].Add(1)
}

func (x *trackerStats) snapshot() Stats {
	return Stats{
		Begun:            x.begun.Load(),
		Full:             x.full.Load(),
		NotFound:         x.notFound.Load(),
		Normal:           x.closed[CloseNormal].Load(),
		BelowThreshold:   x.belowThreshold.Load(),
		Timeout:          x.closed[CloseTimeout].Load(),
		GarbageCollected: x.closed[CloseGarbageCollected].Load(),
		Unique:           x.closed[CloseUnique].Load(),
		Discarded:        x.discarded.Load(),
	}
}
