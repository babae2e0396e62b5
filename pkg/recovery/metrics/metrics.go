// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// Package metrics records what a recovery session did, in prometheus form.
// There is nothing to scrape in recovery, so the registry is written out as
// a textfile next to the durable log, for the main system's node exporter to
// pick up.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/purecloudlabs/grecovery/pkg/recovery/runner"
)

type Recorder struct {
	reg        *prometheus.Registry
	info       *prometheus.GaugeVec
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	finishes   prometheus.Counter
	logBytes   prometheus.Counter
	lastFinish prometheus.Gauge
}

// New returns a recorder with its own registry. session labels the info
// metric.
func New(session string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	r := &Recorder{
		reg: reg,
		info: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recovery_session_info",
			Help: "Constant 1, labelled with the session id and where its arguments came from",
		}, []string{"session", "source"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recovery_operations_total",
			Help: "Operations run during the session, by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recovery_operation_duration_seconds",
			Help:    "Duration of operations run during the session",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}, []string{"operation"}),
		finishes: f.NewCounter(prometheus.CounterOpts{
			Name: "recovery_finish_total",
			Help: "Number of times the session was finalized",
		}),
		logBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "recovery_log_bytes_copied_total",
			Help: "Bytes of session log copied to durable storage",
		}),
		lastFinish: f.NewGauge(prometheus.GaugeOpts{
			Name: "recovery_last_finish_timestamp_seconds",
			Help: "Unix time of the most recent finalize",
		}),
	}
	r.info.WithLabelValues(session, "").Set(1)
	return r
}

// SetSource relabels the info metric once the argument source is known.
func (r *Recorder) SetSource(session, source string) {
	if r == nil {
		return
	}
	r.info.Reset()
	r.info.WithLabelValues(session, source).Set(1)
}

// Outcome label values.
const (
	LabelSuccess = "success"
	LabelFailure = "failure"
	LabelAborted = "aborted"
)

func outcomeLabel(o runner.Outcome) string {
	switch o.Kind {
	case runner.Success:
		return LabelSuccess
	case runner.Aborted:
		return LabelAborted
	}
	return LabelFailure
}

// Operation records one completed operation.
func (r *Recorder) Operation(name string, o runner.Outcome, d time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(name, outcomeLabel(o)).Inc()
	r.duration.WithLabelValues(name).Observe(d.Seconds())
}

// Finished records a finalize that copied n bytes of log.
func (r *Recorder) Finished(n int64, at time.Time) {
	if r == nil {
		return
	}
	r.finishes.Inc()
	r.logBytes.Add(float64(n))
	r.lastFinish.Set(float64(at.Unix()))
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile writes the current values to path, atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
