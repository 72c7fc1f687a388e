package latencytracker

type (
	// slot is a single element of the pre-allocated event arena. A slot is
	// either free (on the free stack, not indexed) or live (indexed, not on
	// the free stack), as indicated by the live field.
	slot struct {
		// pending timeout, nil if none was armed (or it already fired)
		timer Timer

		event Event

		// links for keyIndex chains, -1 terminated, only valid while live
		next, prev int32

		// incremented on every release, invalidating outstanding slotRef
		// values (e.g. captured by a timeout that lost a race)
		gen uint32

		live bool
	}

	// slotRef is a generational handle to a live slot.
	slotRef struct {
		idx int32
		gen uint32
	}

	// slotPool is a fixed-capacity arena, with a LIFO free stack of indices.
	// It never allocates after newSlotPool. Not safe for concurrent use.
	slotPool struct {
		slots []slot
		free  []int32
	}
)

func newSlotPool(capacity int) slotPool {
	x := slotPool{
		slots: make([]slot, capacity),
		free:  make([]int32, capacity),
	}
	// reversed, so the lowest indices are used first
	for i := range x.free {
		x.free[i] = int32(capacity - 1 - i)
	}
	for i := range x.slots {
		x.slots[i].next = -1
		x.slots[i].prev = -1
	}
	return x
}

// acquire pops a free slot, returning false if the pool is exhausted.
func (x *slotPool) acquire() (slotRef, bool) {
	n := len(x.free)
	if n == 0 {
		return slotRef{}, false
	}
	idx := x.free[n-1]
	x.free = x.free[:n-1]
	s := &x.slots[idx]
	s.live = true
	return slotRef{idx: idx, gen: s.gen}, true
}

// release zeroes a live slot and returns it to the free stack. It panics if
// ref doesn't refer to a live slot, which would indicate a double free.
func (x *slotPool) release(ref slotRef) {
	s := x.get(ref)
	if s == nil {
		panic(`latencytracker: pool: release of free or stale slot`)
	}
	if len(x.free) == cap(x.free) {
		panic(`latencytracker: pool: free stack overflow`)
	}
	*s = slot{gen: s.gen + 1, next: -1, prev: -1}
	x.free = append(x.free, ref.idx)
}

// get resolves ref, returning nil if the slot is free, or has been recycled
// since ref was issued.
func (x *slotPool) get(ref slotRef) *slot {
	if ref.idx < 0 || int(ref.idx) >= len(x.slots) {
		return nil
	}
	s := &x.slots[ref.idx]
	if !s.live || s.gen != ref.gen {
		return nil
	}
	return s
}

// ref returns the current handle for the live slot at idx.
func (x *slotPool) ref(idx int32) slotRef {
	return slotRef{idx: idx, gen: x.slots[idx].gen}
}

func (x *slotPool) available() int {
	return len(x.free)
}

func (x *slotPool) capacity() int {
	return len(x.slots)
}
