// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the interview
// service.
//
// # Description
//
// Metrics cover the request path (counts, latency), sequencing outcomes
// (questions served, sessions completed), state reconciliation sources,
// and the recovery paths that must never surface to respondents (stale
// question labels, unreadable stored state).
//
// Metrics are exposed on /metrics. All operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "intake"

const interviewSubsystem = "interview"

// InterviewMetrics holds all Prometheus metrics for interview
// processing. Initialize once at startup via Default().
type InterviewMetrics struct {
	// RequestsTotal counts process calls by terminal status.
	// Labels: status (ok, store_error)
	RequestsTotal *prometheus.CounterVec

	// QuestionsServedTotal counts questions presented to respondents.
	QuestionsServedTotal prometheus.Counter

	// SessionsCompletedTotal counts interviews that reached completion.
	SessionsCompletedTotal prometheus.Counter

	// ProcessDurationSeconds measures end-to-end process latency,
	// including both store writes.
	ProcessDurationSeconds prometheus.Histogram

	// ReconciliationsTotal counts state reconciliations by source shape.
	// Labels: source (fresh, cache_only, checkpoint_only, both)
	ReconciliationsTotal *prometheus.CounterVec

	// RecoveriesTotal counts locally-recovered fault paths.
	// Labels: kind (stale_label, unreadable_state)
	RecoveriesTotal *prometheus.CounterVec

	// EmbeddingIndexTotal counts answer embedding submissions.
	// Labels: status (indexed, dropped, failed)
	EmbeddingIndexTotal *prometheus.CounterVec
}

var (
	defaultMetrics     *InterviewMetrics
	defaultMetricsOnce sync.Once
)

// Default returns the process-wide metrics instance, registering it on
// the default Prometheus registry on first use.
func Default() *InterviewMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = newInterviewMetrics()
	})
	return defaultMetrics
}

func newInterviewMetrics() *InterviewMetrics {
	return &InterviewMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "requests_total",
			Help:      "Interview process calls by terminal status.",
		}, []string{"status"}),

		QuestionsServedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "questions_served_total",
			Help:      "Questions presented to respondents.",
		}),

		SessionsCompletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "sessions_completed_total",
			Help:      "Interviews that reached completion.",
		}),

		ProcessDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "process_duration_seconds",
			Help:      "End-to-end latency of one interview turn.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ReconciliationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "reconciliations_total",
			Help:      "State reconciliations by which stores held the session.",
		}, []string{"source"}),

		RecoveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "recoveries_total",
			Help:      "Locally-recovered fault paths by kind.",
		}, []string{"kind"}),

		EmbeddingIndexTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: interviewSubsystem,
			Name:      "embedding_index_total",
			Help:      "Answer embedding submissions by outcome.",
		}, []string{"status"}),
	}
}

// NewTestMetrics returns metrics registered on a private registry, for
// tests that must not collide with the default registry.
func NewTestMetrics() *InterviewMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &InterviewMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total", Help: "test",
		}, []string{"status"}),
		QuestionsServedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "questions_served_total", Help: "test",
		}),
		SessionsCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessions_completed_total", Help: "test",
		}),
		ProcessDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "process_duration_seconds", Help: "test",
		}),
		ReconciliationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciliations_total", Help: "test",
		}, []string{"source"}),
		RecoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recoveries_total", Help: "test",
		}, []string{"kind"}),
		EmbeddingIndexTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "embedding_index_total", Help: "test",
		}, []string{"status"}),
	}
}
