package autotune

import (
	"fwautotune/pkg/clock"
	"fwautotune/pkg/gains"
	"fwautotune/pkg/paramstore"
)

// checkSave runs the delayed-commit ring once every SAVE_PERIOD: it
// persists the gains from the previous save period (giving the pilot
// SAVE_PERIOD milliseconds to bail out before a set of gains becomes
// durable) while leaving the gains actually flying untouched.
func (t *Tuner) checkSave(nowMS uint32) {
	if clock.ElapsedMS(nowMS, t.lastSaveMS) < savePeriodMS {
		return
	}

	tmp := t.gainsFromPID()
	t.persistGains(t.nextSave)
	t.lastSave = t.nextSave
	t.setGainsOnPID(tmp)
	t.restore = t.nextSave
	t.nextSave = tmp
	t.lastSaveMS = nowMS
	t.notifySave()
}

// gainsFromPID reads the live gain values straight off the collaborators
// — the rate-PID for FF/P/I/D/IMAX, the gains slot for RMAX/TAU.
func (t *Tuner) gainsFromPID() gains.ATGains {
	return gains.ATGains{
		Tau:     t.slot.Tau.Get(),
		RMaxPos: t.slot.RMaxPos.Get(),
		RMaxNeg: t.slot.RMaxNeg.Get(),
		FF:      t.pid.FF().Get(),
		P:       t.pid.KP().Get(),
		I:       t.pid.KI().Get(),
		D:       t.pid.KD().Get(),
		IMAX:    t.pid.KIMAX().Get(),
	}
}

// setGainsOnPID pushes g into the live collaborators without persisting
// it — used to put the gains actually being flown back in place after a
// save.
func (t *Tuner) setGainsOnPID(g gains.ATGains) {
	t.pid.FF().Set(g.FF)
	t.pid.KP().Set(g.P)
	t.pid.KI().Set(g.I)
	t.pid.KD().Set(g.D)
	t.pid.KIMAX().Set(g.IMAX)
	t.slot.Tau.Set(g.Tau)
	t.slot.RMaxPos.Set(g.RMaxPos)
	t.slot.RMaxNeg.Set(g.RMaxNeg)
}

// persistGains sets g onto the live collaborators (unconditionally, like
// setGainsOnPID) and additionally persists each field to the parameter
// store, but only when the change clears the write-economy threshold:
// floats persist only if |Δ|/|new| > 0.001 or the new value is ≤ 0
// (always persisted, since the relative check is meaningless at zero);
// ints persist only if the value actually changed.
func (t *Tuner) persistGains(g gains.ATGains) {
	saveFloatIfChanged(t.slot.Tau, g.Tau)
	saveIntIfChanged(t.slot.RMaxPos, g.RMaxPos)
	saveIntIfChanged(t.slot.RMaxNeg, g.RMaxNeg)
	saveFloatIfChanged(t.pid.FF(), g.FF)
	saveFloatIfChanged(t.pid.KP(), g.P)
	saveFloatIfChanged(t.pid.KI(), g.I)
	saveFloatIfChanged(t.pid.KD(), g.D)
	saveFloatIfChanged(t.pid.KIMAX(), g.IMAX)
}

func saveFloatIfChanged(v paramstore.ParamF32, value float32) {
	old := v.Get()
	v.Set(value)
	if value <= 0 || absf32((value-old)/value) > 0.001 {
		v.Save()
	}
}

func saveIntIfChanged(v paramstore.ParamI16, value int16) {
	old := v.Get()
	v.Set(value)
	if old != value {
		v.Save()
	}
}
