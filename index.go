package latencytracker

// keyIndex maps key hashes to live slots, using a fixed number of buckets,
// with chains linked intrusively through the slot arena. Multiple entries per
// bucket are expected: hash collisions, masking, and (non-unique) duplicate
// keys. There is no ordering within a bucket.
//
// It shares the arena with the slotPool, and is not safe for concurrent use.
type keyIndex struct {
	slots   []slot
	buckets []int32
	mask    uint32
	len     int
}

func newKeyIndex(slots []slot) keyIndex {
	size := 1
	for size < len(slots) {
		size <<= 1
	}
	x := keyIndex{
		slots:   slots,
		buckets: make([]int32, size),
		mask:    uint32(size - 1),
	}
	for i := range x.buckets {
		x.buckets[i] = -1
	}
	return x
}

func (x *keyIndex) bucket(hash uint32) *int32 {
	return &x.buckets[hash&x.mask]
}

// insert adds the slot at idx, which must be live, with its KeyHash set.
func (x *keyIndex) insert(idx int32) {
	s := &x.slots[idx]
	head := x.bucket(s.event.KeyHash)
	s.prev = -1
	s.next = *head
	if s.next >= 0 {
		x.slots[s.next].prev = idx
	}
	*head = idx
	x.len++
}

// remove unlinks the slot at idx, which must have been inserted, and not
// yet released (release clears the KeyHash).
func (x *keyIndex) remove(idx int32) {
	s := &x.slots[idx]
	if s.prev >= 0 {
		x.slots[s.prev].next = s.next
	} else {
		*x.bucket(s.event.KeyHash) = s.next
	}
	if s.next >= 0 {
		x.slots[s.next].prev = s.prev
	}
	s.next = -1
	s.prev = -1
	x.len--
}

// forEachInBucket calls fn for each slot in the bucket for hash, stopping if
// fn returns false. The visited slot may be removed by fn. Note that entries
// with a different hash may share the bucket.
func (x *keyIndex) forEachInBucket(hash uint32, fn func(idx int32) bool) bool {
	for idx := *x.bucket(hash); idx >= 0; {
		next := x.slots[idx].next
		if !fn(idx) {
			return false
		}
		idx = next
	}
	return true
}

// forEachAll calls fn for every indexed slot, stopping if fn returns false.
// The visited slot may be removed by fn.
func (x *keyIndex) forEachAll(fn func(idx int32) bool) {
	for i := range x.buckets {
		if !x.forEachInBucket(uint32(i), fn) {
			return
		}
	}
}
