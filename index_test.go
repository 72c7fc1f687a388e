package latencytracker

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, capacity int, hashes ...uint32) (slotPool, keyIndex) {
	t.Helper()
	pool := newSlotPool(capacity)
	index := newKeyIndex(pool.slots)
	for _, hash := range hashes {
		ref, ok := pool.acquire()
		require.True(t, ok)
		pool.slots[ref.idx].event.KeyHash = hash
		index.insert(ref.idx)
	}
	return pool, index
}

func collectBucket(x *keyIndex, hash uint32) (idxs []int32) {
	x.forEachInBucket(hash, func(idx int32) bool {
		idxs = append(idxs, idx)
		return true
	})
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	return idxs
}

func TestNewKeyIndex_bucketCount(t *testing.T) {
	for _, tc := range [...]struct {
		capacity int
		buckets  int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{100, 128},
		{128, 128},
	} {
		x := newKeyIndex(make([]slot, tc.capacity))
		assert.Len(t, x.buckets, tc.buckets, tc.capacity)
		assert.Equal(t, uint32(tc.buckets-1), x.mask, tc.capacity)
	}
}

func TestKeyIndex_collisions(t *testing.T) {
	// 4 buckets: 1, 5, and 9 share a bucket, 2 does not
	_, x := newTestIndex(t, 4, 1, 5, 2, 9)
	assert.Equal(t, 4, x.len)
	assert.Equal(t, []int32{0, 1, 3}, collectBucket(&x, 1))
	assert.Equal(t, []int32{0, 1, 3}, collectBucket(&x, 5))
	assert.Equal(t, []int32{2}, collectBucket(&x, 2))
	assert.Empty(t, collectBucket(&x, 3))

	// middle, then head, then tail
	for _, tc := range [...]struct {
		remove int32
		want   []int32
	}{
		{1, []int32{0, 3}},
		{3, []int32{0}},
		{0, nil},
	} {
		x.remove(tc.remove)
		assert.Equal(t, tc.want, collectBucket(&x, 1))
	}
	assert.Equal(t, 1, x.len)
	assert.Equal(t, int32(-1), x.buckets[1])
}

func TestKeyIndex_forEachInBucket_removal(t *testing.T) {
	_, x := newTestIndex(t, 8, 3, 3, 11, 3)
	var visited int
	x.forEachInBucket(3, func(idx int32) bool {
		visited++
		x.remove(idx)
		return true
	})
	assert.Equal(t, 4, visited)
	assert.Equal(t, 0, x.len)
	assert.Empty(t, collectBucket(&x, 3))
}

func TestKeyIndex_forEachInBucket_stop(t *testing.T) {
	_, x := newTestIndex(t, 4, 0, 0, 0)
	var visited int
	assert.False(t, x.forEachInBucket(0, func(idx int32) bool {
		visited++
		return false
	}))
	assert.Equal(t, 1, visited)
	assert.True(t, x.forEachInBucket(1, func(idx int32) bool { return false }))
}

func TestKeyIndex_forEachAll(t *testing.T) {
	_, x := newTestIndex(t, 5, 0, 1, 2, 3, 4)
	var idxs []int32
	x.forEachAll(func(idx int32) bool {
		idxs = append(idxs, idx)
		if idx%2 == 0 {
			x.remove(idx)
		}
		return true
	})
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, idxs)
	assert.Equal(t, 2, x.len)
}
