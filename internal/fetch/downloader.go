package fetch

import (
	"context"
	"errors"
	"fmt"
	"hlsfetch/internal/logger"
	"hlsfetch/internal/metrics"
	"hlsfetch/internal/models"
	"time"
)

// ErrRetriesExhausted is returned once a bounded retry policy runs out of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	// DefaultRequestTimeout bounds a single segment download attempt.
	DefaultRequestTimeout = 5 * time.Minute
	// DefaultRetryDelay is the fixed pause before a failed segment is tried again.
	DefaultRetryDelay = 100 * time.Millisecond
)

// RetryPolicy controls how a failed segment download is retried.
type RetryPolicy struct {
	// RequestTimeout bounds each attempt.
	RequestTimeout time.Duration
	// Delay is the fixed wait between attempts. It never grows.
	Delay time.Duration
	// MaxAttempts caps the number of attempts. Zero means retry forever.
	MaxAttempts int
}

// DefaultRetryPolicy never gives up on a segment.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RequestTimeout: DefaultRequestTimeout,
		Delay:          DefaultRetryDelay,
	}
}

// SegmentDownloader is responsible for downloading individual media segments with retry logic.
type SegmentDownloader struct {
	fetcher Fetcher
	logger  logger.Logger
	policy  RetryPolicy
}

// NewSegmentDownloader creates a new downloader.
func NewSegmentDownloader(f Fetcher, log logger.Logger, policy RetryPolicy) *SegmentDownloader {
	if policy.RequestTimeout <= 0 {
		policy.RequestTimeout = DefaultRequestTimeout
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	return &SegmentDownloader{
		fetcher: f,
		logger:  log,
		policy:  policy,
	}
}

// Decoder transforms a fetched payload, e.g. decrypts it. A decode error counts as a failed attempt.
type Decoder func(data []byte) ([]byte, error)

// DownloadSegment fetches a single media segment, retrying failed attempts after a fixed delay.
// It only returns an error when ctx is done or a bounded policy has run out of attempts.
// decode may be nil.
func (sd *SegmentDownloader) DownloadSegment(ctx context.Context, segment models.Segment, decode Decoder) ([]byte, error) {
	var lastErr error

	for attempt := 1; sd.policy.MaxAttempts == 0 || attempt <= sd.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := sd.attempt(ctx, segment, decode)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		metrics.SegmentRetries.Inc()
		sd.logger.Warnf("Segment %d [%s] download failed (attempt %d), will retry: %v", segment.Index, segment.URL, attempt, err)

		timer := time.NewTimer(sd.policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed to download segment %d after %d attempts: %w: %w", segment.Index, sd.policy.MaxAttempts, ErrRetriesExhausted, lastErr)
}

func (sd *SegmentDownloader) attempt(ctx context.Context, segment models.Segment, decode Decoder) ([]byte, error) {
	// Per-attempt timeout.
	attemptCtx, cancel := context.WithTimeout(ctx, sd.policy.RequestTimeout)
	defer cancel()

	metrics.InflightFetches.Inc()
	data, err := sd.fetcher.Fetch(attemptCtx, segment.URL)
	metrics.InflightFetches.Dec()
	if err != nil {
		return nil, err
	}
	if decode == nil {
		return data, nil
	}
	return decode(data)
}
