// Copyright 2026 The Armored Witness Image authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics records build statistics for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/transparency-dev/armored-witness-image/api"
)

const namespace = "imgbuild"

// Metrics holds the collectors for a single tool run.
type Metrics struct {
	reg *prometheus.Registry

	builds        *prometheus.CounterVec
	imageBytes    *prometheus.GaugeVec
	buildDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New returns Metrics backed by a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Number of image builds, by image kind and result.",
		}, []string{"kind", "result"}),
		imageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bytes",
			Help:      "Size of the last build's artifacts, by artifact.",
		}, []string{"artifact"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time taken to build an image.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful build.",
		}),
	}
	m.reg.MustRegister(m.builds, m.imageBytes, m.buildDuration, m.lastSuccess)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveBuild records the outcome of a build of the given kind.
func (m *Metrics) ObserveBuild(kind string, start, end time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		m.lastSuccess.Set(float64(end.Unix()))
	}
	m.builds.WithLabelValues(kind, result).Inc()
	m.buildDuration.WithLabelValues(kind).Observe(end.Sub(start).Seconds())
}

// SetBytes records the size of a build artifact.
func (m *Metrics) SetBytes(artifact string, n int) {
	m.imageBytes.WithLabelValues(artifact).Set(float64(n))
}

// WriteFile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("%w: writing metrics to %q: %v", api.ErrIO, path, err)
	}
	return nil
}
