// Package metrics provides Prometheus metrics for segment downloads.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SegmentsCompleted counts segments that were fetched, decrypted and persisted.
	SegmentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsfetch_segments_completed_total",
		Help: "Total number of segments fetched, decrypted and persisted.",
	})

	// SegmentsResumed counts segments restored from disk instead of being fetched.
	SegmentsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsfetch_segments_resumed_total",
		Help: "Total number of segments restored from a previous run.",
	})

	// SegmentRetries counts failed download attempts that were retried.
	SegmentRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsfetch_segment_retries_total",
		Help: "Total number of failed segment download attempts.",
	})

	// BytesDownloaded counts plaintext segment bytes.
	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsfetch_segment_bytes_total",
		Help: "Total number of plaintext segment bytes persisted.",
	})

	// InflightFetches tracks segment download attempts currently in flight.
	InflightFetches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsfetch_inflight_fetches",
		Help: "Current number of segment download attempts in flight.",
	})

	// RunsTotal counts finished runs by result (done, failed).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsfetch_runs_total",
		Help: "Total number of download runs, by result.",
	}, []string{"result"})
)
