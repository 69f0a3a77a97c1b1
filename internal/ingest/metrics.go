package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starlog_ingest_lines_total",
	Help: "counter of archive lines processed, by dataset and outcome",
}, []string{"dataset", "outcome"})

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starlog_ingest_runs_total",
	Help: "counter of finished dataset runs, by dataset and final status",
}, []string{"dataset", "status"})

var runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "starlog_ingest_run_duration_seconds",
	Help:    "duration of dataset runs from archive fetch to final report",
	Buckets: prometheus.ExponentialBuckets(1, 2, 14),
}, []string{"dataset"})
