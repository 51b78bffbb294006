package telemetry

import (
	"strings"
	"testing"

	"fwautotune/pkg/autotune"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/metrics"
)

type recordingSink struct {
	blocks  int
	actions []gains.Action
	saves   int
}

func (r *recordingSink) WriteBlock(autotune.Record) { r.blocks++ }
func (r *recordingSink) NotifyAction(axis gains.Axis, a gains.Action) {
	r.actions = append(r.actions, a)
}
func (r *recordingSink) NotifySave(axis gains.Axis) { r.saves++ }

func TestMultiFansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := Multi{a, nil, b}

	m.WriteBlock(autotune.Record{Axis: gains.Roll})
	m.NotifyAction(gains.Roll, gains.ActionRaisePD)
	m.NotifySave(gains.Roll)

	for _, s := range []*recordingSink{a, b} {
		if s.blocks != 1 || len(s.actions) != 1 || s.saves != 1 {
			t.Errorf("sink did not receive exactly one of each callback: %+v", s)
		}
	}
}

func TestMetricsSinkSkipsActionNone(t *testing.T) {
	m := metrics.NewAutotuneMetrics()
	s := NewMetricsSink(m)

	s.NotifyAction(gains.Roll, gains.ActionNone)
	if got := m.Gather(); strings.Contains(got, `action="none"`) {
		t.Errorf("ActionNone must not be counted, got:\n%s", got)
	}

	s.NotifyAction(gains.Roll, gains.ActionRaisePD)
	if got := m.Gather(); !strings.Contains(got, `action="raise_pd"`) {
		t.Errorf("expected a raise_pd sample in the gathered metrics, got:\n%s", got)
	}
}

func TestMetricsSinkObservesGains(t *testing.T) {
	m := metrics.NewAutotuneMetrics()
	s := NewMetricsSink(m)

	// exact binary fractions so the float64-widened gauge value round-trips
	// to the same short decimal %g prints.
	s.WriteBlock(autotune.Record{Axis: gains.Pitch, FF: 0.5, P: 0.25, RMaxPos: 120, Tau: 0.25})

	got := m.Gather()
	if !strings.Contains(got, `autotune_ff{axis="pitch"} 0.5`) {
		t.Errorf("expected FF gauge for pitch, got:\n%s", got)
	}
	if !strings.Contains(got, `autotune_rmax_pos{axis="pitch"} 120`) {
		t.Errorf("expected rmax_pos gauge for pitch, got:\n%s", got)
	}
}

func TestMetricsSinkRecordsSaves(t *testing.T) {
	m := metrics.NewAutotuneMetrics()
	s := NewMetricsSink(m)

	s.NotifySave(gains.Roll)
	s.NotifySave(gains.Roll)

	got := m.Gather()
	if !strings.Contains(got, `autotune_saves_total{axis="roll"} 2`) {
		t.Errorf("expected saves_total=2 for roll, got:\n%s", got)
	}
}
