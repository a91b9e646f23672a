package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ABSDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ausdex_abs_downloads_total",
			Help: "Total ABS release download attempts",
		},
		[]string{"file", "status"},
	)

	ABSDownloadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ausdex_abs_download_latency_seconds",
			Help:    "ABS release download latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"file"},
	)

	CPILookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ausdex_cpi_lookups_total",
			Help: "Total CPI point-in-time lookups",
		},
		[]string{"location"},
	)

	InterpolatorCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ausdex_seifa_interpolator_cache_total",
			Help: "SEIFA interpolator cache lookups by result (hit or build)",
		},
		[]string{"metric", "result"},
	)

	SeifaWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ausdex_seifa_warnings_total",
			Help: "Non-fatal SEIFA interpolation warnings",
		},
		[]string{"reason"},
	)

	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ausdex_refresh_runs_total",
			Help: "Dataset refresh runs by source and status",
		},
		[]string{"source", "status"},
	)
)
