// Autotune domain metrics.
//
// Wraps the generic Prometheus Registry with the counters and gauges the
// autotune core's telemetry sink drives: one action/save counter per
// axis, and a gauge snapshot of the live gains so a running tune can be
// watched on a dashboard without tailing the log.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import "fwautotune/pkg/gains"

// AutotuneMetrics is the domain metrics facade the SITL harness (and any
// embedding flight controller) registers autotune activity into.
type AutotuneMetrics struct {
	registry *Registry

	ActionsTotal *Counter
	SavesTotal   *Counter
	FF           *Gauge
	P            *Gauge
	I            *Gauge
	D            *Gauge
	RMaxPos      *Gauge
	Tau          *Gauge
}

// NewAutotuneMetrics builds and registers the full autotune metric set on
// a fresh registry.
func NewAutotuneMetrics() *AutotuneMetrics {
	r := NewRegistry()
	m := &AutotuneMetrics{
		registry:     r,
		ActionsTotal: NewCounter("autotune_actions_total", "Gain-law actions taken, by axis and action"),
		SavesTotal:   NewCounter("autotune_saves_total", "Gain snapshots committed to the parameter store, by axis"),
		FF:           NewGauge("autotune_ff", "Live feed-forward gain, by axis"),
		P:            NewGauge("autotune_p", "Live proportional gain, by axis"),
		I:            NewGauge("autotune_i", "Live integral gain, by axis"),
		D:            NewGauge("autotune_d", "Live derivative gain, by axis"),
		RMaxPos:      NewGauge("autotune_rmax_pos", "Positive rate envelope, by axis, deg/s"),
		Tau:          NewGauge("autotune_tau", "Attitude-to-rate time constant, by axis, seconds"),
	}
	r.MustRegister(m.ActionsTotal)
	r.MustRegister(m.SavesTotal)
	r.MustRegister(m.FF)
	r.MustRegister(m.P)
	r.MustRegister(m.I)
	r.MustRegister(m.D)
	r.MustRegister(m.RMaxPos)
	r.MustRegister(m.Tau)
	return m
}

// Gather renders every registered metric in Prometheus text format.
func (m *AutotuneMetrics) Gather() string {
	return m.registry.Gather()
}

// RecordAction increments the action counter for axis/action. Matches the
// autotune.Sink.NotifyAction shape so it can be wired in directly.
func (m *AutotuneMetrics) RecordAction(axis gains.Axis, action gains.Action) {
	m.ActionsTotal.Inc(Labels{"axis": axis.String(), "action": action.String()})
}

// RecordSave increments the save counter for axis. Matches
// autotune.Sink.NotifySave.
func (m *AutotuneMetrics) RecordSave(axis gains.Axis) {
	m.SavesTotal.Inc(Labels{"axis": axis.String()})
}

// ObserveGains updates the gauge snapshot for axis. Called once per
// telemetry record rather than once per tick, so the gauges move at the
// log rate rather than the loop rate.
func (m *AutotuneMetrics) ObserveGains(axis gains.Axis, g gains.ATGains) {
	labels := Labels{"axis": axis.String()}
	m.FF.Set(labels, float64(g.FF))
	m.P.Set(labels, float64(g.P))
	m.I.Set(labels, float64(g.I))
	m.D.Set(labels, float64(g.D))
	m.RMaxPos.Set(labels, float64(g.RMaxPos))
	m.Tau.Set(labels, float64(g.Tau))
}
