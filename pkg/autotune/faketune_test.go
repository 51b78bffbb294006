package autotune

import (
	"fwautotune/pkg/clock"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/paramstore"
	"fwautotune/pkg/ratepid"
)

// fakeRatePID is a RatePID whose gain handles are backed by an in-memory
// paramstore, so tests can assert on both live values and persisted
// writes.
type fakeRatePID struct {
	ff, p, i, d, imax paramstore.ParamF32
	slew              float32
}

func newFakeRatePID(store paramstore.Store, ff, p, i, d, imax, slew float32) *fakeRatePID {
	return &fakeRatePID{
		ff:    paramstore.NewParamF32(store, "pid.ff", ff),
		p:     paramstore.NewParamF32(store, "pid.p", p),
		i:     paramstore.NewParamF32(store, "pid.i", i),
		d:     paramstore.NewParamF32(store, "pid.d", d),
		imax:  paramstore.NewParamF32(store, "pid.imax", imax),
		slew:  slew,
	}
}

func (f *fakeRatePID) FF() paramstore.ParamF32    { return f.ff }
func (f *fakeRatePID) KP() paramstore.ParamF32    { return f.p }
func (f *fakeRatePID) KI() paramstore.ParamF32    { return f.i }
func (f *fakeRatePID) KD() paramstore.ParamF32    { return f.d }
func (f *fakeRatePID) KIMAX() paramstore.ParamF32 { return f.imax }
func (f *fakeRatePID) SlewLimit() float32         { return f.slew }
func (f *fakeRatePID) SetSlewLimit(v float32)     { f.slew = v }
func (f *fakeRatePID) PidInfo() ratepid.PidInfo   { return ratepid.PidInfo{} }

type fakeAirframe struct {
	limitDeg float32
	level    int
}

func (a *fakeAirframe) AttitudeLimitDeg(axis gains.Axis) float32 { return a.limitDeg }
func (a *fakeAirframe) AutotuneLevel() int                      { return a.level }

type fakeSink struct {
	records []Record
	actions []gains.Action
	saves   int
}

func (s *fakeSink) WriteBlock(r Record)                        { s.records = append(s.records, r) }
func (s *fakeSink) NotifyAction(axis gains.Axis, a gains.Action) { s.actions = append(s.actions, a) }
func (s *fakeSink) NotifySave(axis gains.Axis)                  { s.saves++ }

type testRig struct {
	tuner *Tuner
	pid   *fakeRatePID
	slot  GainsSlot
	store *paramstore.MemoryStore
	af    *fakeAirframe
	sink  *fakeSink
	clk   *clock.Fake
}

type rigConfig struct {
	loopRateHz      float32
	rmaxPos, rmaxNeg int16
	tau             float32
	ff, p, i, d, imax, slew float32
	attLimit        float32
	level           int
}

func newTestRig(cfg rigConfig) *testRig {
	store := paramstore.NewMemoryStore()
	slot := GainsSlot{
		Tau:     paramstore.NewParamF32(store, "tau", cfg.tau),
		RMaxPos: paramstore.NewParamI16(store, "rmax_pos", cfg.rmaxPos),
		RMaxNeg: paramstore.NewParamI16(store, "rmax_neg", cfg.rmaxNeg),
	}
	pid := newFakeRatePID(store, cfg.ff, cfg.p, cfg.i, cfg.d, cfg.imax, cfg.slew)
	af := &fakeAirframe{limitDeg: cfg.attLimit, level: cfg.level}
	sink := &fakeSink{}
	clk := clock.NewFake()
	tuner := New(slot, gains.Roll, af, pid, clk, FixedScheduler(cfg.loopRateHz), sink)
	return &testRig{tuner: tuner, pid: pid, slot: slot, store: store, af: af, sink: sink, clk: clk}
}
