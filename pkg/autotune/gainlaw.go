package autotune

import (
	"fwautotune/pkg/filter"
	"fwautotune/pkg/gains"
)

// runGainLaw computes the single-event FF estimate and adjusts P, D, I,
// and FF for the just-completed event. prevState is the DEMAND state the
// event occurred in (the tuner is still in that state when this is
// called — the transition to IDLE is applied by the caller afterwards).
// Returns false if a non-finite intermediate was produced, in which case
// the caller treats the event as a low-rate abort instead of writing
// garbage gains to the PID.
func (t *Tuner) runGainLaw(prevState gains.State, scaler float32) bool {
	var ffSingle float32
	if prevState == gains.DemandPos {
		ffSingle = t.maxActuator / (t.maxRate * scaler)
	} else {
		ffSingle = t.minActuator / (t.minRate * scaler)
	}
	if !isFinite32(ffSingle) {
		return false
	}
	t.ffSingle = ffSingle

	FF := t.ffFilter.Apply(ffSingle)
	oldFF := t.pid.FF().Get()
	FF = filter.Clamp(FF, oldFF*(1-decFF), oldFF*(1+incFF))

	absActuator := max32(t.maxActuator, absf32(t.minActuator))
	pdHigh := 0.3 * absActuator
	pdSignificant := t.maxP > pdHigh || t.maxD > pdHigh

	var demRatio float32
	if prevState == gains.DemandPos {
		demRatio = filter.Clamp(safeDiv(t.maxRate, t.maxTarget), 0.1, 2)
	} else {
		demRatio = filter.Clamp(safeDiv(t.minRate, t.minTarget), 0.1, 2)
	}
	overshot := demRatio > overshoot

	D := max32(t.pid.KD().Get(), floorD)
	P := max32(t.pid.KP().Get(), floorP)

	var action gains.Action
	if t.minDmod < 1.0 || (overshot && pdSignificant) {
		gainMul := float32(1 - decPD)
		dmodMul := filter.LinearInterpolate(gainMul, 1, t.minDmod, 0.6, 1.0)
		overshootMul := filter.LinearInterpolate(1, gainMul, demRatio, overshoot, 1.3*overshoot)
		if t.maxP < t.maxD {
			D *= dmodMul * overshootMul
		} else {
			P *= dmodMul * overshootMul
		}
		action = gains.ActionLowerPD
	} else {
		slewLimit := t.pid.SlewLimit()
		gainMul := float32(1 + incPD)
		pdMul := filter.LinearInterpolate(gainMul, 1, t.maxSRate, 0.2*slewLimit, 0.6*slewLimit)
		P *= pdMul
		D *= pdMul
		action = gains.ActionRaisePD
	}

	if !isFinite32(FF) || !isFinite32(P) || !isFinite32(D) {
		return false
	}

	t.pid.FF().Set(FF)
	t.pid.KP().Set(P)
	t.pid.KD().Set(D)

	I := max32(P*iRatio, FF/trimTconst)
	t.pid.KI().Set(I)

	t.current.FF = FF
	t.current.P = P
	t.current.I = I
	t.current.D = D

	t.setAction(action)
	return true
}

// safeDiv returns 0 for a zero denominator instead of ±Inf/NaN, matching
// the error-handling design's non-finite-abort rule one step upstream of
// the NaN checks in runGainLaw.
func safeDiv(a, b float32) float32 {
	if b == 0 {
		return 0
	}
	return a / b
}
