package telemetry

import (
	"fwautotune/pkg/autotune"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/metrics"
)

// MetricsSink drives the Prometheus-style autotune gauges and counters
// from the core's telemetry callbacks.
type MetricsSink struct {
	m *metrics.AutotuneMetrics
}

// NewMetricsSink wraps m as an autotune.Sink.
func NewMetricsSink(m *metrics.AutotuneMetrics) *MetricsSink {
	return &MetricsSink{m: m}
}

func (s *MetricsSink) WriteBlock(r autotune.Record) {
	s.m.ObserveGains(r.Axis, gains.ATGains{
		FF:      r.FF,
		P:       r.P,
		I:       r.I,
		D:       r.D,
		RMaxPos: r.RMaxPos,
		Tau:     r.Tau,
	})
}

func (s *MetricsSink) NotifyAction(axis gains.Axis, action gains.Action) {
	if action == gains.ActionNone {
		return
	}
	s.m.RecordAction(axis, action)
}

func (s *MetricsSink) NotifySave(axis gains.Axis) {
	s.m.RecordSave(axis)
}
