// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes node counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the node metrics. A nil *Collector records nothing.
type Collector struct {
	reg *prometheus.Registry

	ticks           prometheus.Counter
	packets         prometheus.Counter
	emitted         prometheus.Counter
	skipped         *prometheus.CounterVec
	stillnessResets prometheus.Counter
	state           prometheus.Gauge
	calibrations    *prometheus.CounterVec
}

// New registers the node metrics on a private registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_node_ticks_total",
			Help: "Lifecycle ticks while streaming.",
		}),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_node_packets_total",
			Help: "DMP packets fetched.",
		}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_node_samples_emitted_total",
			Help: "Orientation samples handed to the reporter.",
		}),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motion_node_packets_skipped_total",
				Help: "Ticks without a usable packet.",
			},
			[]string{"reason"},
		),
		stillnessResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "motion_node_stillness_resets_total",
			Help: "Stillness windows restarted by timing gaps or read errors.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "motion_node_state",
			Help: "Current lifecycle state.",
		}),
		calibrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motion_node_calibrations_total",
				Help: "Calibration requests by target and result.",
			},
			[]string{"target", "result"},
		),
	}
	c.reg.MustRegister(c.ticks, c.packets, c.emitted, c.skipped, c.stillnessResets, c.state, c.calibrations)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Tick() {
	if c != nil {
		c.ticks.Inc()
	}
}

func (c *Collector) Packet() {
	if c != nil {
		c.packets.Inc()
	}
}

func (c *Collector) Emitted() {
	if c != nil {
		c.emitted.Inc()
	}
}

// Skipped counts a tick without a usable packet; reason is "empty" or "error".
func (c *Collector) Skipped(reason string) {
	if c != nil {
		c.skipped.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) StillnessReset() {
	if c != nil {
		c.stillnessResets.Inc()
	}
}

func (c *Collector) State(v int) {
	if c != nil {
		c.state.Set(float64(v))
	}
}

func (c *Collector) Calibration(target, result string) {
	if c != nil {
		c.calibrations.WithLabelValues(target, result).Inc()
	}
}
