// Package metrics holds the server's Prometheus collectors. They register
// with the default registry at init and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnippetsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_snippets_created_total",
		Help: "no. of snippets created",
	})
	SnippetReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebin_snippet_reads_total",
			Help: "no. of snippet reads by outcome",
		},
		[]string{"result"}, // ok, not_found, expired
	)
	SnippetUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_snippet_updates_total",
		Help: "no. of snippet content updates",
	})
	EditingToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebin_editing_toggles_total",
			Help: "no. of editing flag changes by new value",
		},
		[]string{"editing"},
	)
	FilesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_files_uploaded_total",
		Help: "no. of files uploaded",
	})
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_upload_bytes_total",
		Help: "bytes accepted by the upload endpoint",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_cache_hits_total",
		Help: "no. of snippet cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_cache_misses_total",
		Help: "no. of snippet cache misses",
	})
	ExpiredSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharebin_expired_snippets_swept_total",
		Help: "no. of expired snippets deleted by the sweeper",
	})
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebin_auth_attempts_total",
			Help: "no. of sign-in attempts by method and outcome",
		},
		[]string{"method", "result"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharebin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebin_rate_limit_hits_total",
			Help: "no. of requests refused by the rate limiter",
		},
		[]string{"route"},
	)
)
