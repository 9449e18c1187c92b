package cache_test

import (
	"hlsfetch/internal/cache"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSegmentCache_Set verifies that payloads land at their index and gaps are reported.
func TestSegmentCache_Set(t *testing.T) {
	sc := cache.New(3)
	assert.Equal(t, []int{0, 1, 2}, sc.Missing())

	sc.Set(1, []byte("segment data"))
	assert.Equal(t, int64(12), sc.Size())
	assert.Equal(t, []int{0, 2}, sc.Missing())

	// An empty payload still fills its slot.
	sc.Set(0, nil)
	assert.Equal(t, []int{2}, sc.Missing())

	// Out of range is ignored.
	sc.Set(7, []byte("x"))
	assert.Equal(t, int64(12), sc.Size())
	assert.Equal(t, [][]byte{{}, []byte("segment data"), nil}, sc.Payloads())
}

func TestSegmentCache_SetReplacesSize(t *testing.T) {
	sc := cache.New(1)
	sc.Set(0, []byte("abcd"))
	sc.Set(0, []byte("ab"))
	assert.Equal(t, int64(2), sc.Size())
}

// TestSegmentCache_ConcurrentAccess verifies that concurrent writers land at their index.
func TestSegmentCache_ConcurrentAccess(t *testing.T) {
	const n = 100
	sc := cache.New(n)

	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sc.Set(i, []byte(strconv.Itoa(i)))
		}(i)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc.Missing()
			sc.Size()
		}()
	}
	wg.Wait()

	assert.Empty(t, sc.Missing())
	for i, data := range sc.Payloads() {
		assert.Equal(t, strconv.Itoa(i), string(data))
	}
}
