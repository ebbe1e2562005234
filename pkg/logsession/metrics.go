// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logsession

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "logcatreader"

var (
	recordsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "records_ingested_total",
		Help:      "Records drained from the log process",
	})
	recordsVisible = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "records_visible_total",
		Help:      "Records that passed the include/exclude filters",
	})
	recordsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "records_evicted_total",
		Help:      "Records evicted from the retained window",
	})
	recordsMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "records_malformed_total",
		Help:      "Record headers that failed to parse",
	})
	batchesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "batches_published_total",
		Help:      "Batches broadcast to subscribers",
	})
	sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_transitions_total",
			Help:      "Session status transitions",
		},
		[]string{"status"},
	)
	pollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "poll_duration_seconds",
		Help:      "Time spent draining, filtering and publishing one batch",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

var registerOnce sync.Once

// InitMetrics registers the session collectors with the default registry.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			recordsIngested,
			recordsVisible,
			recordsEvicted,
			recordsMalformed,
			batchesPublished,
			sessionTransitions,
			pollDuration,
		)
	})
}

func observePoll(ingested int, visible int, evicted int, seconds float64) {
	recordsIngested.Add(float64(ingested))
	recordsVisible.Add(float64(visible))
	recordsEvicted.Add(float64(evicted))
	pollDuration.Observe(seconds)
}
