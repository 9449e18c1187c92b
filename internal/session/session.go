package session

import (
	"context"
	"errors"
	"fmt"
	"hlsfetch/internal/assemble"
	"hlsfetch/internal/cache"
	"hlsfetch/internal/fetch"
	"hlsfetch/internal/hls"
	"hlsfetch/internal/key"
	"hlsfetch/internal/logger"
	"hlsfetch/internal/metrics"
	"hlsfetch/internal/models"
	"hlsfetch/internal/progress"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of segment downloads allowed in flight.
const DefaultConcurrency = 10

// ErrAlreadyStarted is returned when Run is called twice on the same Session.
var ErrAlreadyStarted = errors.New("session already started")

// ErrInvalidName is returned when the output name is not a single local path element.
var ErrInvalidName = errors.New("invalid output name")

// Assembler turns the ordered payloads into the output file and removes the working directory.
type Assembler interface {
	Assemble(payloads [][]byte, name, workDir string) (string, error)
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	// WorkRoot holds the working directory and the output file. Defaults to ".".
	WorkRoot string
	// Concurrency is the hard bound on segment downloads in flight.
	Concurrency int
	Retry       fetch.RetryPolicy
	Fetcher     fetch.Fetcher
	Decrypter   key.BlockDecrypter
	Assembler   Assembler
}

// Session downloads one playlist into one output file.
// All state of a run is owned by the Session; a Session runs at most once.
type Session struct {
	ID string

	logger     logger.Logger
	opts       Options
	downloader *fetch.SegmentDownloader

	started   atomic.Bool
	state     atomic.Int32
	total     atomic.Int64
	finished  atomic.Int64
	assembled atomic.Bool

	mutex  sync.RWMutex
	name   string
	output string
}

// run carries the per-invocation collaborators shared by all segment tasks.
type run struct {
	name  string
	store *progress.Store
	arena *cache.SegmentCache
	keys  *key.Service
	total int64
}

// New creates a session.
func New(log logger.Logger, opts Options) *Session {
	if opts.WorkRoot == "" {
		opts.WorkRoot = "."
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewClient(log, fetch.ClientOptions{})
	}
	if opts.Decrypter == nil {
		opts.Decrypter = key.AESDecrypter{}
	}
	if opts.Assembler == nil {
		opts.Assembler = assemble.New(opts.WorkRoot, log)
	}

	id := uuid.NewString()
	log = log.With("run_id", id)
	return &Session{
		ID:         id,
		logger:     log,
		opts:       opts,
		downloader: fetch.NewSegmentDownloader(opts.Fetcher, log, opts.Retry),
	}
}

// Run downloads playlistURL into <WorkRoot>/<outputName>.ts, resuming from the working
// directory <WorkRoot>/<outputName>/ when a previous run left one behind.
// It returns once the output is written, or with the first fatal error; in that case the
// working directory is left in place for a later resume.
func (s *Session) Run(ctx context.Context, playlistURL, outputName string) error {
	if err := validateName(outputName); err != nil {
		return err
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.mutex.Lock()
	s.name = outputName
	s.mutex.Unlock()

	err := s.run(ctx, playlistURL, outputName)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.RunsTotal.WithLabelValues("done").Inc()
	return nil
}

// validateName accepts a single local path element. The working directory named after it is
// deleted after reassembly.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Session) run(ctx context.Context, playlistURL, name string) error {
	s.setState(StateInitializing)

	r, err := s.initialize(ctx, playlistURL, name)
	if err != nil {
		return err
	}

	s.setState(StateDownloading)
	if err := s.download(ctx, r); err != nil {
		return err
	}

	if s.State() != StateDone {
		return fmt.Errorf("run for %s ended with %d of %d segments complete", name, s.finished.Load(), r.total)
	}
	s.logger.Infof("Done.")
	return nil
}

// initialize loads or creates the progress record, restores completed payloads and builds the
// decryption context.
func (s *Session) initialize(ctx context.Context, playlistURL, name string) (*run, error) {
	store := progress.NewStore(s.opts.WorkRoot, name)
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	p, err := store.Load()
	if err != nil {
		return nil, err
	}

	var pl *hls.Playlist
	if p.Resumable() {
		s.logger.Infof("Resuming %s: %d of %d segments pending", name, p.Pending(), len(p.List))
		pl = hls.Parse(p.PlaylistText, playlistURL)
	} else {
		s.logger.Infof("Fetching playlist %s", playlistURL)
		text, err := s.opts.Fetcher.Fetch(ctx, playlistURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist: %w", err)
		}
		pl = hls.Parse(string(text), playlistURL)
		for _, w := range pl.Warnings {
			s.logger.Warnf("%s", w)
		}

		p = &models.Progress{PlaylistText: string(text), List: make([]models.Segment, 0, len(pl.Segments))}
		for i, u := range pl.Segments {
			p.List = append(p.List, models.Segment{URL: u, Index: i})
		}
		if err := store.Save(p); err != nil {
			return nil, err
		}
	}

	r := &run{
		name:  name,
		store: store,
		arena: cache.New(len(p.List)),
		total: int64(len(p.List)),
	}
	if err := s.restore(r, p); err != nil {
		return nil, err
	}

	if p.Pending() > 0 {
		r.keys, err = key.NewService(ctx, s.opts.Fetcher, pl.Key, s.opts.Decrypter, s.logger)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// restore reads the payload of every completed segment back from disk. A completed segment
// whose file vanished is downgraded to pending so it is fetched again.
func (s *Session) restore(r *run, p *models.Progress) error {
	reset := false
	var restored int64
	for i := range p.List {
		seg := p.List[i]
		if seg.Index != i {
			return fmt.Errorf("corrupt progress file %s: segment at position %d has index %d", r.store.ProgressPath(), i, seg.Index)
		}
		if !seg.Done {
			continue
		}

		data, err := r.store.ReadSegment(seg.Index)
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warnf("Segment %d is marked done but its file is missing, fetching it again", seg.Index)
			p.List[i].Done = false
			reset = true
			continue
		}
		if err != nil {
			return err
		}
		r.arena.Set(seg.Index, data)
		restored++
	}

	if reset {
		if err := r.store.Save(p); err != nil {
			return err
		}
	}
	if restored > 0 {
		metrics.SegmentsResumed.Add(float64(restored))
	}

	s.total.Store(r.total)
	s.finished.Store(restored)
	return nil
}

// download dispatches one task per pending segment, never more than Concurrency at a time.
func (s *Session) download(ctx context.Context, r *run) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))

	pending := 0
	for _, seg := range r.store.Snapshot().List {
		if seg.Done {
			continue
		}
		pending++
		if gctx.Err() != nil {
			break
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		seg := seg
		g.Go(func() error {
			defer sem.Release(1)
			return s.downloadSegment(gctx, r, seg)
		})
	}

	if pending == 0 {
		g.Go(func() error {
			return s.complete(r)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// downloadSegment drives one segment from Pending to Done.
func (s *Session) downloadSegment(ctx context.Context, r *run, seg models.Segment) error {
	plain, err := s.downloader.DownloadSegment(ctx, seg, func(data []byte) ([]byte, error) {
		return r.keys.Decrypt(seg.Index, data)
	})
	if err != nil {
		return err
	}

	r.arena.Set(seg.Index, plain)
	// The file goes first so a Done entry in progress.json always has its file on disk.
	if err := r.store.WriteSegment(seg.Index, plain); err != nil {
		return err
	}
	if err := r.store.MarkDone(seg.Index); err != nil {
		return err
	}
	metrics.SegmentsCompleted.Inc()
	metrics.BytesDownloaded.Add(float64(len(plain)))

	n := s.finished.Add(1)
	s.logger.Infof("[%d/%d] %s_%d.ts download success, segment %d", n, r.total, r.name, seg.Index, seg.Index)
	if n == r.total {
		return s.complete(r)
	}
	return nil
}

// complete performs the Reassembling transition. Only the first caller proceeds.
func (s *Session) complete(r *run) error {
	if !s.assembled.CompareAndSwap(false, true) {
		return nil
	}
	s.setState(StateReassembling)

	if missing := r.arena.Missing(); len(missing) > 0 {
		s.logger.Errorf("Cannot reassemble %s, no payload for segments %v", r.name, missing)
		return fmt.Errorf("failed to reassemble %s: %w: %v", r.name, assemble.ErrMissingSegment, missing)
	}
	s.logger.Infof("Reassembling %s from %d segments (%d bytes)", r.name, r.total, r.arena.Size())

	out, err := s.opts.Assembler.Assemble(r.arena.Payloads(), r.name, r.store.Dir())
	if err != nil {
		return fmt.Errorf("failed to reassemble %s: %w", r.name, err)
	}

	s.mutex.Lock()
	s.output = out
	s.mutex.Unlock()
	s.setState(StateDone)
	return nil
}

// Snapshot describes the progress of a session.
type Snapshot struct {
	RunID     string `json:"runId"`
	State     string `json:"state"`
	Name      string `json:"name"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Output    string `json:"output,omitempty"`
}

// Snapshot returns the current progress. It is safe to call while Run is executing.
func (s *Session) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return Snapshot{
		RunID:     s.ID,
		State:     s.State().String(),
		Name:      s.name,
		Total:     s.total.Load(),
		Completed: s.finished.Load(),
		Output:    s.output,
	}
}

// Output returns the path of the output file once the session is done.
func (s *Session) Output() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.output
}
