// Package autotune implements the online rate-PID gain identifier: a
// per-tick state machine that watches pilot-commanded rate demands,
// infers feed-forward and proportional/derivative gains from how the
// actuator responds, and slews the rate/time-constant envelope toward an
// aggressiveness profile. It is the Go port of ArduPilot's AP_AutoTune,
// restructured around small injected collaborators instead of a global
// HAL facade.
package autotune

import (
	"math"

	"fwautotune/pkg/clock"
	"fwautotune/pkg/filter"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/paramstore"
	"fwautotune/pkg/ratepid"
)

// AirframeParams is the read-only attitude-limit and aggressiveness-level
// source. airframe.Params satisfies this.
type AirframeParams interface {
	AttitudeLimitDeg(axis gains.Axis) float32
	AutotuneLevel() int
}

// Scheduler supplies the inner loop rate the signal-conditioning filters
// are built against.
type Scheduler interface {
	LoopRateHz() float32
}

// FixedScheduler is a Scheduler with a constant rate, for tests and the
// SITL harness where the loop rate is fixed for the run.
type FixedScheduler float32

func (s FixedScheduler) LoopRateHz() float32 { return float32(s) }

// Record is one §4.6 telemetry sample: a snapshot of the conditioner and
// gain-law state, emitted at most at the log rate.
type Record struct {
	TimestampUS uint64
	Axis        gains.Axis
	State       gains.State
	Actuator    float32
	DesiredRate float32
	ActualRate  float32
	FFSingle    float32
	FF, P, I, D float32
	Action      gains.Action
	RMaxPos     int16
	Tau         float32
}

// Sink receives the tuner's telemetry. WriteBlock is called at most at
// the log rate (§4.6); NotifyAction and NotifySave fire exactly once per
// occurrence, regardless of the log throttle, so counters never miss an
// event squeezed between two log samples.
type Sink interface {
	WriteBlock(Record)
	NotifyAction(axis gains.Axis, action gains.Action)
	NotifySave(axis gains.Axis)
}

// GainsSlot bundles the envelope parameters (RMAX/TAU) that live outside
// the rate-PID collaborator: these are owned by the airframe/rate-loop
// configuration, not the PID, so they get their own persistable handles.
type GainsSlot struct {
	Tau     paramstore.ParamF32
	RMaxPos paramstore.ParamI16
	RMaxNeg paramstore.ParamI16
}

// Tuner is the autotune core for a single axis.
type Tuner struct {
	slot      GainsSlot
	axis      gains.Axis
	airframe  AirframeParams
	pid       ratepid.RatePID
	clk       clock.Source
	scheduler Scheduler
	sink      Sink

	running bool
	state   gains.State

	current, restore, lastSave, nextSave gains.ATGains

	stateEnterMS uint32
	lastSaveMS   uint32
	lastLogMS    uint32

	actuatorFilter, rateFilter, targetFilter filter.LowPass
	ffFilter                                 filter.Median

	minActuator, maxActuator float32
	minRate, maxRate         float32
	minTarget, maxTarget     float32
	maxP, maxD               float32
	minDmod, maxDmod         float32
	maxSRate                 float32
	ffSingle                 float32
	action                   gains.Action
}

// New constructs a Tuner for one axis, bound to its rate-PID collaborator
// and envelope-parameter slot. sink may be nil, in which case telemetry
// is simply dropped.
func New(slot GainsSlot, axis gains.Axis, airframe AirframeParams, pid ratepid.RatePID, clk clock.Source, scheduler Scheduler, sink Sink) *Tuner {
	return &Tuner{
		slot:      slot,
		axis:      axis,
		airframe:  airframe,
		pid:       pid,
		clk:       clk,
		scheduler: scheduler,
		sink:      sink,
		state:     gains.Idle,
		minDmod:   1,
	}
}

// IsRunning reports whether the tuner is actively adjusting gains.
func (t *Tuner) IsRunning() bool { return t.running }

// State returns the current event-detector state, for ambient callers
// (metrics, the SITL harness) that want it outside a log record.
func (t *Tuner) State() gains.State { return t.state }

// CurrentGains returns the tuner's live gain snapshot.
func (t *Tuner) CurrentGains() gains.ATGains { return t.current }

// Start enters tuning. Idempotent: calling it while already running is a
// no-op, since start() is only ever invoked from a mode-transition edge.
func (t *Tuner) Start() {
	if t.running {
		return
	}
	t.running = true
	t.state = gains.Idle

	now := t.clk.NowMS()
	t.lastSaveMS = now
	t.lastLogMS = now
	t.stateEnterMS = now

	t.current = t.gainsFromPID()
	t.restore = t.current
	t.lastSave = t.current

	// first rmax/tau convergence step happens synchronously, before the
	// first update() tick — see the supplemented-features note on this
	// port's fidelity to the original's double update_rmax() call.
	t.updateRmax()

	imax := filter.Clamp(t.pid.KIMAX().Get(), imaxMin, imaxMax)
	t.pid.KIMAX().Set(imax)
	t.current.IMAX = imax

	t.nextSave = t.current

	rate := t.scheduler.LoopRateHz()
	t.actuatorFilter = filter.NewLowPass(rate, 0.75)
	t.rateFilter = filter.NewLowPass(rate, 0.75)
	t.targetFilter = filter.NewLowPass(rate, 4)
	t.ffFilter = filter.NewMedian(2)

	if t.pid.SlewLimit() <= 0 {
		t.pid.SetSlewLimit(defaultSlewLimit)
	}

	if t.current.FF < floorFF {
		t.current.FF = floorFF
		t.pid.FF().Set(floorFF)
	}

	t.resetExtrema()
}

// Stop leaves tuning, restoring the snapshot captured at the most recent
// save boundary (or at Start, if none occurred) and persisting it.
// Idempotent.
func (t *Tuner) Stop() {
	if !t.running {
		return
	}
	t.running = false
	t.state = gains.Idle
	t.persistGains(t.restore)
	t.current = t.restore
	t.notifySave()
}

func (t *Tuner) resetExtrema() {
	t.minActuator, t.maxActuator = 0, 0
	t.minRate, t.maxRate = 0, 0
	t.minTarget, t.maxTarget = 0, 0
	t.maxP, t.maxD = 0, 0
	t.minDmod, t.maxDmod = 1, 0
	t.maxSRate = 0
}

// stateChange records a completed transition back to newState and resets
// the per-event extrema used by the gain law on the next event.
func (t *Tuner) stateChange(newState gains.State, nowMS uint32) {
	t.minDmod = 1
	t.maxDmod = 0
	t.maxSRate = 0
	t.maxP, t.maxD = 0, 0
	t.state = newState
	t.stateEnterMS = nowMS
}

// Update is the per-tick entry point: pidInfo carries the inner rate
// loop's latest telemetry, scaler is the airspeed-derived actuator
// scaling, and angleErrDeg is the attitude-loop error driving the rate
// demand.
func (t *Tuner) Update(pidInfo ratepid.PidInfo, scaler, angleErrDeg float32) {
	if !t.running {
		return
	}

	nowMS := t.clk.NowMS()
	t.checkSave(nowMS)

	desiredRate := t.targetFilter.Apply(pidInfo.Target)
	clippedActuator := filter.Clamp(pidInfo.FF+pidInfo.P+pidInfo.D+pidInfo.I, -45, 45) - pidInfo.I
	actuator := t.actuatorFilter.Apply(clippedActuator)
	actualRate := t.rateFilter.Apply(pidInfo.Actual)

	t.maxActuator = max32(t.maxActuator, actuator)
	t.minActuator = min32(t.minActuator, actuator)
	t.maxRate = max32(t.maxRate, actualRate)
	t.minRate = min32(t.minRate, actualRate)
	t.maxTarget = max32(t.maxTarget, desiredRate)
	t.minTarget = min32(t.minTarget, desiredRate)
	t.maxP = max32(t.maxP, absf32(pidInfo.P))
	t.maxD = max32(t.maxD, absf32(pidInfo.D))
	t.minDmod = min32(t.minDmod, pidInfo.Dmod)
	t.maxDmod = max32(t.maxDmod, pidInfo.Dmod)
	t.maxSRate = max32(t.maxSRate, pidInfo.SlewRate)

	attLimitDeg := t.airframe.AttitudeLimitDeg(t.axis)
	rateThreshold1 := rateThresh1Frac * min32(attLimitDeg/t.current.Tau, float32(t.current.RMaxPos))
	rateThreshold2 := rateThresh2Frac * rateThreshold1
	inAttDemand := absf32(angleErrDeg) >= attDemandFrac*attLimitDeg

	newState := t.state
	switch t.state {
	case gains.Idle:
		if desiredRate > rateThreshold1 && inAttDemand {
			newState = gains.DemandPos
		} else if desiredRate < -rateThreshold1 && inAttDemand {
			newState = gains.DemandNeg
		}
	case gains.DemandPos:
		if desiredRate < rateThreshold2 {
			newState = gains.Idle
		}
	case gains.DemandNeg:
		if desiredRate > -rateThreshold2 {
			newState = gains.Idle
		}
	}

	// the log gate is checked before the transition is applied, so a
	// record is still emitted on ticks where state does not change —
	// note the record's state field reports newState, not the state the
	// tuner is still in at this point.
	if clock.ElapsedMS(nowMS, t.lastLogMS) >= logPeriodMS {
		t.emit(nowMS, newState, actuator, desiredRate, actualRate)
		t.lastLogMS = nowMS
	}

	if newState == t.state {
		if t.state == gains.Idle &&
			clock.ElapsedMS(nowMS, t.stateEnterMS) >= idleOscillationMS &&
			t.maxDmod < idleOscillationDmod {
			gainMul := float32(1 - decPD)
			if t.maxP < t.maxD {
				t.current.D *= gainMul
			} else {
				t.current.P *= gainMul
			}
			t.pid.KP().Set(t.current.P)
			t.pid.KD().Set(t.current.D)
			t.setAction(gains.ActionIdleLowerPD)
			t.stateChange(t.state, nowMS)
		}
		return
	}

	if newState != gains.Idle {
		// starting an event
		t.minActuator, t.maxActuator = 0, 0
		t.minRate, t.maxRate = 0, 0
		t.stateEnterMS = nowMS
		t.state = newState
		return
	}

	if (t.state == gains.DemandPos && t.maxRate < lowRateFraction*float32(t.current.RMaxPos)) ||
		(t.state == gains.DemandNeg && t.minRate > -lowRateFraction*float32(t.current.RMaxNeg)) {
		t.setAction(gains.ActionLowRate)
		t.stateChange(gains.Idle, nowMS)
		return
	}

	if clock.ElapsedMS(nowMS, t.stateEnterMS) < minEventMS {
		t.setAction(gains.ActionShort)
		t.stateChange(gains.Idle, nowMS)
		return
	}

	if !t.runGainLaw(t.state, scaler) {
		// non-finite intermediate: treat the event as a low-rate abort
		// rather than writing garbage gains.
		t.setAction(gains.ActionLowRate)
		t.stateChange(gains.Idle, nowMS)
		return
	}
	t.updateRmax()
	t.stateChange(gains.Idle, nowMS)
}

func (t *Tuner) setAction(a gains.Action) {
	t.action = a
	t.notifyAction()
}

func (t *Tuner) notifyAction() {
	if t.sink != nil && t.action != gains.ActionNone {
		t.sink.NotifyAction(t.axis, t.action)
	}
}

func (t *Tuner) notifySave() {
	if t.sink != nil {
		t.sink.NotifySave(t.axis)
	}
}

func (t *Tuner) emit(nowMS uint32, state gains.State, actuator, desiredRate, actualRate float32) {
	if t.sink == nil {
		return
	}
	t.sink.WriteBlock(Record{
		TimestampUS: t.clk.NowUS(),
		Axis:        t.axis,
		State:       state,
		Actuator:    actuator,
		DesiredRate: desiredRate,
		ActualRate:  actualRate,
		FFSingle:    t.ffSingle,
		FF:          t.current.FF,
		P:           t.current.P,
		I:           t.current.I,
		D:           t.current.D,
		Action:      t.action,
		RMaxPos:     t.current.RMaxPos,
		Tau:         t.current.Tau,
	})
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func isFinite32(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}
