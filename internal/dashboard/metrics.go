package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcome label values.
const (
	LoadOK       = "ok"
	LoadNotFound = "not_found"
	LoadFailed   = "load_failed"
)

var (
	// RequestsTotal counts requests by route pattern and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jepdash_http_requests_total",
		Help: "Total number of dashboard HTTP requests",
	}, []string{"route", "code"})

	// RequestLatency measures handler latency by route pattern.
	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jepdash_http_request_duration_seconds",
		Help:    "Latency of dashboard HTTP handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// LoadsTotal counts source loads that reached the parser, by outcome.
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jepdash_source_loads_total",
		Help: "Total number of source file loads by outcome",
	}, []string{"status"})

	// LoadDuration measures read plus parse time.
	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jepdash_source_load_duration_seconds",
		Help:    "Time spent reading and parsing the source file",
		Buckets: prometheus.DefBuckets,
	})

	// RecordsLoaded is the row count of the most recent successful load.
	RecordsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jepdash_source_records",
		Help: "Number of records in the most recently loaded table",
	})

	// ExportsTotal counts downloads by format.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jepdash_exports_total",
		Help: "Total number of filtered exports by format",
	}, []string{"format"})
)
