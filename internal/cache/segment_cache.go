package cache

import (
	"sync"
)

// SegmentCache provides a thread-safe, index-addressed store for segment payloads.
// Payloads are kept at their playlist position regardless of completion order.
type SegmentCache struct {
	mutex sync.RWMutex
	slots [][]byte
	size  int64
}

// New creates a cache with one slot per segment.
func New(total int) *SegmentCache {
	return &SegmentCache{
		slots: make([][]byte, total),
	}
}

// Set stores the payload of the segment at index. Out-of-range indices are ignored.
func (sc *SegmentCache) Set(index int, data []byte) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	if index < 0 || index >= len(sc.slots) {
		return
	}
	if data == nil {
		data = []byte{}
	}
	sc.size += int64(len(data)) - int64(len(sc.slots[index]))
	sc.slots[index] = data
}

// Size returns the total number of payload bytes held.
func (sc *SegmentCache) Size() int64 {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.size
}

// Missing returns the indices that have no payload yet.
func (sc *SegmentCache) Missing() []int {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	var missing []int
	for i, data := range sc.slots {
		if data == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

// Payloads returns a snapshot of all slots in index order. Empty slots are nil.
func (sc *SegmentCache) Payloads() [][]byte {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	out := make([][]byte, len(sc.slots))
	copy(out, sc.slots)
	return out
}
