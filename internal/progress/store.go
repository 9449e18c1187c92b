// Package progress persists the resume checkpoint of a download and its per-segment files.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"hlsfetch/internal/models"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/renameio/v2"
)

// FileName is the name of the progress record inside the working directory.
const FileName = "progress.json"

// Store owns the working directory of one download: <root>/<name>/ holding progress.json and
// <name>_<index>.ts for every completed segment.
// The in-memory copy of the record is guarded by a mutex so concurrent completions serialize.
type Store struct {
	root string
	name string

	mu       sync.Mutex
	progress models.Progress
}

// NewStore creates a store for the download called name under root.
func NewStore(root, name string) *Store {
	return &Store{root: root, name: name}
}

// Dir is the working directory.
func (s *Store) Dir() string {
	return filepath.Join(s.root, s.name)
}

// ProgressPath is the location of progress.json.
func (s *Store) ProgressPath() string {
	return filepath.Join(s.Dir(), FileName)
}

// SegmentPath is the location of the plaintext of the segment at index.
func (s *Store) SegmentPath(index int) string {
	return filepath.Join(s.Dir(), s.name+"_"+strconv.Itoa(index)+".ts")
}

// Initialize creates the working directory and an empty progress record when they are absent.
// It is safe to call on every run.
func (s *Store) Initialize() error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", s.Dir(), err)
	}

	_, err := os.Stat(s.ProgressPath())
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", s.ProgressPath(), err)
	}

	return s.write(models.Progress{List: []models.Segment{}})
}

// Load reads the persisted record. An empty segment list means no prior run.
func (s *Store) Load() (*models.Progress, error) {
	data, err := os.ReadFile(s.ProgressPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file at %s: %w", s.ProgressPath(), err)
	}

	var p models.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress JSON: %w", err)
	}
	if p.List == nil {
		p.List = []models.Segment{}
	}

	s.mu.Lock()
	s.progress = clone(p)
	s.mu.Unlock()
	return &p, nil
}

// Save atomically replaces the persisted record with p.
func (s *Store) Save(p *models.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = clone(*p)
	return s.write(s.progress)
}

// MarkDone flags the segment at index as done and persists the whole record.
func (s *Store) MarkDone(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.progress.List) {
		return fmt.Errorf("segment index %d out of range [0,%d)", index, len(s.progress.List))
	}
	s.progress.List[index].Done = true
	return s.write(s.progress)
}

// Snapshot returns a copy of the in-memory record.
func (s *Store) Snapshot() models.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.progress)
}

// WriteSegment persists the plaintext of the segment at index.
func (s *Store) WriteSegment(index int, data []byte) error {
	if err := renameio.WriteFile(s.SegmentPath(index), data, 0o644); err != nil {
		return fmt.Errorf("failed to write segment file %s: %w", s.SegmentPath(index), err)
	}
	return nil
}

// ReadSegment reads back the plaintext of a completed segment.
func (s *Store) ReadSegment(index int) ([]byte, error) {
	data, err := os.ReadFile(s.SegmentPath(index))
	if err != nil {
		return nil, fmt.Errorf("failed to read segment file %s: %w", s.SegmentPath(index), err)
	}
	return data, nil
}

// write must be called with mu held, or before the store is shared.
func (s *Store) write(p models.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	// temp file, fsync, rename
	if err := renameio.WriteFile(s.ProgressPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file %s: %w", s.ProgressPath(), err)
	}
	return nil
}

func clone(p models.Progress) models.Progress {
	out := models.Progress{PlaylistText: p.PlaylistText}
	if p.List != nil {
		out.List = make([]models.Segment, len(p.List))
		copy(out.List, p.List)
	}
	return out
}
