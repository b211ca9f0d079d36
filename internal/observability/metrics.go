// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains custom Prometheus metrics for sharegate.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthAttemptsTotal   *prometheus.CounterVec
	SessionsTotal       *prometheus.CounterVec
	GateDecisionsTotal  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the sharegate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_auth_attempts_total",
				Help: "Total number of authentication attempts by flow and result",
			},
			[]string{"flow", "result"},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_sessions_total",
				Help: "Total number of session lifecycle events",
			},
			[]string{"event"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_gate_decisions_total",
				Help: "Total number of authorization gate decisions",
			},
			[]string{"decision"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharegate_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(m.AuthAttemptsTotal)
	reg.MustRegister(m.SessionsTotal)
	reg.MustRegister(m.GateDecisionsTotal)
	reg.MustRegister(m.HTTPRequestDuration)

	return m
}

// RecordAuth counts one attempt of flow (register, login, oauth, logout).
// result is "success" or an error kind.
func (m *Metrics) RecordAuth(flow, result string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(flow, result).Inc()
}

// RecordSession counts a session lifecycle event (created, regenerated,
// destroyed, pruned).
func (m *Metrics) RecordSession(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsTotal.WithLabelValues(event).Add(float64(n))
}

// RecordGate counts one gate decision.
func (m *Metrics) RecordGate(allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.GateDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveHTTP records the latency of one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
