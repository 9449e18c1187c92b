package progress_test

import (
	"hlsfetch/internal/models"
	"hlsfetch/internal/progress"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_InitializeIdempotent verifies that Initialize creates an empty record once and keeps it after.
func TestStore_InitializeIdempotent(t *testing.T) {
	root := t.TempDir()
	store := progress.NewStore(root, "movie")

	require.NoError(t, store.Initialize())

	raw, err := os.ReadFile(filepath.Join(root, "movie", "progress.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"playlistText":"","list":[]}`, string(raw))

	p := &models.Progress{PlaylistText: "#EXTM3U", List: []models.Segment{{URL: "http://h/0.ts", Index: 0}}}
	require.NoError(t, store.Save(p))

	// A second Initialize must not clobber the saved record.
	require.NoError(t, store.Initialize())
	loaded, err := store.Load()
	require.NoError(t, err)
	if diff := cmp.Diff(p, loaded); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

// TestStore_Format verifies the on-disk JSON layout.
func TestStore_Format(t *testing.T) {
	store := progress.NewStore(t.TempDir(), "out")
	require.NoError(t, store.Initialize())
	require.NoError(t, store.Save(&models.Progress{
		PlaylistText: "text",
		List:         []models.Segment{{URL: "http://h/a.ts", Index: 0}, {URL: "http://h/b.ts", Index: 1}},
	}))
	require.NoError(t, store.MarkDone(1))

	raw, err := os.ReadFile(store.ProgressPath())
	require.NoError(t, err)
	assert.JSONEq(t, `{"playlistText":"text","list":[
		{"url":"http://h/a.ts","done":false,"index":0},
		{"url":"http://h/b.ts","done":true,"index":1}]}`, string(raw))
}

// TestStore_ConcurrentMarkDone verifies that concurrent completions are all persisted.
func TestStore_ConcurrentMarkDone(t *testing.T) {
	store := progress.NewStore(t.TempDir(), "c")
	require.NoError(t, store.Initialize())

	const n = 40
	p := &models.Progress{PlaylistText: "x"}
	for i := 0; i < n; i++ {
		p.List = append(p.List, models.Segment{URL: "u", Index: i})
	}
	require.NoError(t, store.Save(p))

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.MarkDone(i))
		}(i)
	}
	wg.Wait()

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Pending())
	assert.Error(t, store.MarkDone(n))
}

func TestStore_SegmentFiles(t *testing.T) {
	root := t.TempDir()
	store := progress.NewStore(root, "show")
	require.NoError(t, store.Initialize())

	require.NoError(t, store.WriteSegment(3, []byte("payload")))
	assert.FileExists(t, filepath.Join(root, "show", "show_3.ts"))

	data, err := store.ReadSegment(3)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = store.ReadSegment(4)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_LoadMissing(t *testing.T) {
	store := progress.NewStore(t.TempDir(), "none")
	_, err := store.Load()
	assert.Error(t, err)
}
