package autotune

import (
	"testing"
	"time"

	"fwautotune/pkg/gains"
	"fwautotune/pkg/ratepid"
)

func TestStartSeedsEnvelopeAndClampsGains(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.002, p: 0.05, i: 0.02, d: 0.01, imax: 1.5, slew: 0,
		attLimit: 45, level: 0,
	})

	rig.tuner.Start()

	if !rig.tuner.IsRunning() {
		t.Fatal("Start should leave the tuner running")
	}
	if rig.tuner.State() != gains.Idle {
		t.Errorf("Start should enter Idle, got %v", rig.tuner.State())
	}
	if got := rig.pid.KIMAX().Get(); got != imaxMax {
		t.Errorf("IMAX above the ceiling should clamp to %v, got %v", imaxMax, got)
	}
	if got := rig.pid.FF().Get(); got != floorFF {
		t.Errorf("FF below the floor should clamp to %v, got %v", floorFF, got)
	}
	if got := rig.pid.SlewLimit(); got != defaultSlewLimit {
		t.Errorf("non-positive slew limit should default to %v, got %v", defaultSlewLimit, got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()
	rig.pid.FF().Set(0.9) // simulate a live change after Start
	rig.tuner.Start()     // must be a no-op now

	if got := rig.pid.FF().Get(); got != 0.9 {
		t.Errorf("second Start call must not reset live gains: FF = %v, want 0.9", got)
	}
}

func TestStopWhenNeverStartedIsNoop(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Stop()
	if rig.sink.saves != 0 {
		t.Errorf("Stop before Start should not persist anything, got %d saves", rig.sink.saves)
	}
}

// quietTick drives one Update call with no pilot demand and no actuator
// activity, the condition under which the event detector must never leave
// Idle.
func quietTick(rig *testRig) {
	rig.tuner.Update(ratepid.PidInfo{Dmod: 1}, 1, 0)
}

func TestQuietHoverStaysIdleAndSavesOncePerPeriod(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	const hz = 400
	dt := time.Second / hz
	lastSaves := 0
	for tick := 0; tick < 20*hz; tick++ {
		rig.clk.Advance(dt)
		quietTick(rig)

		if rig.tuner.State() != gains.Idle {
			t.Fatalf("tick %d: quiet hover left Idle, state=%v", tick, rig.tuner.State())
		}
		if rig.sink.saves-lastSaves > 1 {
			t.Fatalf("tick %d: checkSave fired more than once since the last observation", tick)
		}
		lastSaves = rig.sink.saves
	}

	if len(rig.sink.actions) != 0 {
		t.Errorf("quiet hover should never trigger a gain-law action, got %v", rig.sink.actions)
	}
	if rig.sink.saves != 2 {
		t.Errorf("20s of quiet hover should save exactly twice (at 10s and 20s), got %d", rig.sink.saves)
	}
	if got := rig.pid.FF().Get(); got != 0.3 {
		t.Errorf("gains must not drift while idle: FF = %v, want 0.3", got)
	}
}

func TestRunGainLawIncreasesWhenClean(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	tn := rig.tuner
	tn.state = gains.DemandPos
	tn.maxActuator, tn.minActuator = 30, 0
	tn.maxRate, tn.minRate = 70, 0
	tn.maxTarget, tn.minTarget = 65, 0
	tn.maxP, tn.maxD = 0.02, 0.01
	tn.minDmod, tn.maxDmod = 1.0, 0
	tn.maxSRate = 0

	if !tn.runGainLaw(gains.DemandPos, 1) {
		t.Fatal("runGainLaw reported a non-finite intermediate")
	}

	const tol = 1e-4
	if got := rig.pid.FF().Get(); absf32(got-0.336) > tol {
		t.Errorf("FF = %v, want ~0.336 (clamped to old*(1+incFF))", got)
	}
	if got := rig.pid.KP().Get(); absf32(got-0.055) > tol {
		t.Errorf("P = %v, want ~0.055", got)
	}
	if got := rig.pid.KD().Get(); absf32(got-0.011) > tol {
		t.Errorf("D = %v, want ~0.011", got)
	}
	if got := rig.pid.KI().Get(); absf32(got-0.336) > tol {
		t.Errorf("I = %v, want ~0.336", got)
	}
	if tn.action != gains.ActionRaisePD {
		t.Errorf("action = %v, want RaisePD", tn.action)
	}
}

func TestRunGainLawDecreasesOnOvershootWithDominantD(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.02, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	tn := rig.tuner
	tn.state = gains.DemandPos
	tn.maxActuator, tn.minActuator = 40, 0
	tn.maxRate, tn.minRate = 80, 0
	tn.maxTarget, tn.minTarget = 65, 0
	tn.maxP, tn.maxD = 5, 15 // D dominates and clears the 0.3*actuator bar
	tn.minDmod, tn.maxDmod = 1.0, 0
	tn.maxSRate = 0

	if !tn.runGainLaw(gains.DemandPos, 1) {
		t.Fatal("runGainLaw reported a non-finite intermediate")
	}

	const tol = 1e-4
	if got := rig.pid.KP().Get(); absf32(got-0.05) > tol {
		t.Errorf("P should be left unchanged by a D-dominant overshoot: got %v, want 0.05", got)
	}
	if got := rig.pid.KD().Get(); absf32(got-0.0184146) > tol {
		t.Errorf("D = %v, want ~0.0184146", got)
	}
	if tn.action != gains.ActionLowerPD {
		t.Errorf("action = %v, want LowerPD", tn.action)
	}
}

func TestRunGainLawDecreasesOnSlewLimitedDerivative(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.06, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	tn := rig.tuner
	tn.state = gains.DemandPos
	tn.maxActuator, tn.minActuator = 30, 0
	tn.maxRate, tn.minRate = 65, 0
	tn.maxTarget, tn.minTarget = 65, 0
	tn.maxP, tn.maxD = 5, 2 // below the significance bar on their own
	tn.minDmod, tn.maxDmod = 0.8, 0
	tn.maxSRate = 0

	if !tn.runGainLaw(gains.DemandPos, 1) {
		t.Fatal("runGainLaw reported a non-finite intermediate")
	}

	const tol = 1e-4
	if got := rig.pid.KP().Get(); absf32(got-0.054) > tol {
		t.Errorf("P = %v, want ~0.054 (0.06 * 0.9 dmod_mul)", got)
	}
	if got := rig.pid.KD().Get(); absf32(got-0.01) > tol {
		t.Errorf("D should be left unchanged when P peaked higher: got %v, want 0.01", got)
	}
	if tn.action != gains.ActionLowerPD {
		t.Errorf("a sub-1.0 min_Dmod must trigger LowerPD even without overshoot, got %v", tn.action)
	}
}

// TestSaveRestoreRingLagsOnePeriod exercises check_save's delayed-commit
// ring directly: the value persisted at boundary N is always the value
// that was live at the end of boundary N-1, and Stop restores exactly
// that lagged snapshot rather than whatever is live at the moment it's
// called.
func TestSaveRestoreRingLagsOnePeriod(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.2, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	// simulate an event-driven FF change between t=0 and the first save
	// boundary, the way runGainLaw would leave it.
	rig.pid.FF().Set(0.25)
	rig.clk.Advance(10 * time.Second)
	rig.tuner.checkSave(rig.clk.NowMS())

	if rig.sink.saves != 1 {
		t.Fatalf("first boundary should save once, got %d", rig.sink.saves)
	}
	if got, ok := rig.store.GetFloat("pid.ff"); !ok || absf32(got-0.2) > 1e-6 {
		t.Errorf("first boundary should persist the Start-time snapshot 0.2, got %v (ok=%v)", got, ok)
	}
	if got := rig.pid.FF().Get(); got != 0.25 {
		t.Errorf("live FF must not be disturbed by its own boundary: got %v, want 0.25", got)
	}

	// another event-driven change before the second boundary.
	rig.pid.FF().Set(0.3)
	rig.clk.Advance(10 * time.Second)
	rig.tuner.checkSave(rig.clk.NowMS())

	if rig.sink.saves != 2 {
		t.Fatalf("second boundary should save once, got %d", rig.sink.saves)
	}
	if got, ok := rig.store.GetFloat("pid.ff"); !ok || absf32(got-0.25) > 1e-6 {
		t.Errorf("second boundary should persist the first-period's live value 0.25, got %v (ok=%v)", got, ok)
	}

	rig.tuner.Stop()
	if got := rig.pid.FF().Get(); absf32(got-0.25) > 1e-6 {
		t.Errorf("Stop should restore the lagged snapshot 0.25, got %v", got)
	}
}

func TestCheckSaveWithinPeriodIsNoop(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.2, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	rig.clk.Advance(9 * time.Second)
	rig.tuner.checkSave(rig.clk.NowMS())
	if rig.sink.saves != 0 {
		t.Errorf("checkSave before the period elapses must not fire, got %d saves", rig.sink.saves)
	}
}

// TestEventDetectorOnlyTransitionsThroughIdle drives a clean demand-pos
// excursion and a clean demand-neg excursion back to back, asserting the
// state sequence only ever touches Idle<->DemandPos and Idle<->DemandNeg,
// never jumping directly between the two demand states.
func TestEventDetectorOnlyTransitionsThroughIdle(t *testing.T) {
	rig := newTestRig(rigConfig{
		loopRateHz: 400, rmaxPos: 75, rmaxNeg: 75, tau: 1.0,
		ff: 0.3, p: 0.05, i: 0.02, d: 0.01, imax: 0.6, slew: 150,
		attLimit: 45, level: 0,
	})
	rig.tuner.Start()

	const hz = 400
	dt := time.Second / hz
	var seen []gains.State
	record := func() {
		if len(seen) == 0 || seen[len(seen)-1] != rig.tuner.State() {
			seen = append(seen, rig.tuner.State())
		}
	}

	// ramp into a large positive rate demand with a full attitude error,
	// long enough to clear the min-event-duration guard.
	for tick := 0; tick < 200; tick++ {
		rig.clk.Advance(dt)
		rig.tuner.Update(ratepid.PidInfo{Target: 50, Actual: 45, FF: 0.3, P: 0.05, Dmod: 1}, 1, 40)
		record()
	}
	for tick := 0; tick < 50; tick++ {
		rig.clk.Advance(dt)
		rig.tuner.Update(ratepid.PidInfo{Dmod: 1}, 1, 0)
		record()
	}
	// now the negative side.
	for tick := 0; tick < 200; tick++ {
		rig.clk.Advance(dt)
		rig.tuner.Update(ratepid.PidInfo{Target: -50, Actual: -45, FF: 0.3, P: 0.05, Dmod: 1}, 1, -40)
		record()
	}
	for tick := 0; tick < 50; tick++ {
		rig.clk.Advance(dt)
		rig.tuner.Update(ratepid.PidInfo{Dmod: 1}, 1, 0)
		record()
	}

	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if prev == gains.DemandPos && cur == gains.DemandNeg {
			t.Fatalf("illegal transition DemandPos->DemandNeg at step %d", i)
		}
		if prev == gains.DemandNeg && cur == gains.DemandPos {
			t.Fatalf("illegal transition DemandNeg->DemandPos at step %d", i)
		}
	}
	if len(seen) < 3 {
		t.Fatalf("expected the run to visit more than one state, saw %v", seen)
	}
}
