// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the redline pipeline.
//
// # Description
//
// Metrics cover batch runs, instructions, individual commands and
// front-door jobs. They are registered on a dedicated registry so tests and
// multiple service instances never collide on the default one.
//
// # Integration
//
// Exposed as Prometheus text on /metrics/prometheus and as a JSON snapshot
// on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every recording method is a no-op on a nil *Metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "redline"

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the pipeline.
//
// # Fields
//
//   - RunsTotal: Batch runs by status.
//   - InstructionsTotal: Instructions by status.
//   - CommandsTotal: Executed commands by action and status.
//   - CommandDurationSeconds: Mutation engine latency by action.
//   - JobsTotal: Front-door jobs by status.
//   - JobsActive: Front-door jobs currently running.
type Metrics struct {
	Registry *prometheus.Registry

	// Labels: status (success, error)
	RunsTotal *prometheus.CounterVec

	// Labels: status (success, error)
	InstructionsTotal *prometheus.CounterVec

	// Labels: action (insert, modify, delete), status (success, error)
	CommandsTotal *prometheus.CounterVec

	// Labels: action
	CommandDurationSeconds *prometheus.HistogramVec

	// Labels: status (success, error)
	JobsTotal *prometheus.CounterVec

	JobsActive prometheus.Gauge
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Total number of instruction runs by status",
			},
			[]string{"status"},
		),
		InstructionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "instructions_total",
				Help:      "Total number of processed instructions by status",
			},
			[]string{"status"},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "commands_total",
				Help:      "Total number of executed commands by action and status",
			},
			[]string{"action", "status"},
		),
		CommandDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent applying a single command",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"action"},
		),
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_total",
				Help:      "Total number of finished submission jobs by status",
			},
			[]string{"status"},
		),
		JobsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_active",
				Help:      "Number of submission jobs currently processing",
			},
		),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

func outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordRun counts a finished batch run.
func (m *Metrics) RecordRun(err error) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordInstruction counts a finished instruction.
func (m *Metrics) RecordInstruction(err error) {
	if m == nil {
		return
	}
	m.InstructionsTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordCommand counts an executed command and its latency.
func (m *Metrics) RecordCommand(action string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(action, outcome(err)).Inc()
	m.CommandDurationSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}

// JobStarted marks a submission job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsActive.Inc()
}

// JobFinished marks a submission job as finished.
func (m *Metrics) JobFinished(err error) {
	if m == nil {
		return
	}
	m.JobsActive.Dec()
	m.JobsTotal.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
