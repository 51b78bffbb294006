package autotune

import (
	"fwautotune/pkg/filter"
	"fwautotune/pkg/gains"
)

// updateRmax gradually moves RMAX and TAU towards the target profile
// selected by the airframe's aggressiveness level. Called once
// synchronously from Start and once at the end of every completed event,
// so a pilot who jumps straight to a level-10 tune from a poorly tuned
// plane still converges smoothly rather than snapping.
func (t *Tuner) updateRmax() {
	level := t.airframe.AutotuneLevel()
	if level < 0 {
		level = 0
	}
	if level > len(gains.TuningTable) {
		level = len(gains.TuningTable)
	}

	var targetRmax int16
	var targetTau float32
	if level == 0 {
		targetRmax = filter.ClampI16(t.current.RMaxPos, minRMax, maxRMax)
		targetTau = filter.Clamp(t.current.Tau, minTau, maxTau)
	} else {
		row := gains.TuningTable[level-1]
		targetRmax = row.RMax
		targetTau = row.Tau
	}

	if level > 0 && t.current.FF > 0 {
		invtau := 1/targetTau + t.current.I/t.current.FF
		if invtau > 0 {
			targetTau = max32(targetTau, 1/invtau)
		}
	}

	if t.current.RMaxPos == 0 {
		t.current.RMaxPos = defaultRMaxPos
	}
	t.current.RMaxPos = filter.ClampI16(targetRmax, t.current.RMaxPos-rmaxSlewPerCallDegS, t.current.RMaxPos+rmaxSlewPerCallDegS)

	if level != 0 || t.current.RMaxNeg == 0 {
		t.current.RMaxNeg = t.current.RMaxPos
	}

	t.current.Tau = filter.Clamp(targetTau, t.current.Tau*(1-tauSlewFraction), t.current.Tau*(1+tauSlewFraction))

	t.slot.RMaxPos.Set(t.current.RMaxPos)
	t.slot.RMaxNeg.Set(t.current.RMaxNeg)
	t.slot.Tau.Set(t.current.Tau)
}
