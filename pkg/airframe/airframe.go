// Package airframe describes the fixed-wing vehicle parameter block the
// autotune core reads attitude limits and the aggressiveness level from.
// It is an external collaborator per the core's design: the tuner never
// mutates it.
package airframe

import "fwautotune/pkg/gains"

// Params is the read-only airframe parameter block. Field names and
// units (integer centi-degrees) follow the source's AP_Vehicle::FixedWing
// block so the attitude-limit math in the event detector carries over
// unchanged.
type Params struct {
	RollLimitCD     int32 // roll angle limit, centi-degrees
	PitchLimitMaxCD int32 // max pitch angle limit, centi-degrees
	PitchLimitMinCD int32 // min pitch angle limit, centi-degrees (often negative)
	Level           int   // 0..11, aggressiveness level for update_rmax
}

// AutotuneLevel returns the aggressiveness level the envelope slewer
// reads. Exposed as a method (rather than exporting Level directly to
// the autotune core) so Params can satisfy an interface alongside other
// airframe sources.
func (p *Params) AutotuneLevel() int {
	return p.Level
}

// AttitudeLimitDeg returns att_limit_deg for the given axis: ROLL uses
// roll_limit_cd/100; PITCH uses min(|pitch_max_cd|,|pitch_min_cd|)/100.
// This is the only axis-specific code the core relies on, so it is a
// two-arm switch on Axis rather than a separate type per axis.
func (p *Params) AttitudeLimitDeg(axis gains.Axis) float32 {
	switch axis {
	case gains.Pitch:
		maxAbs := abs32(p.PitchLimitMaxCD)
		minAbs := abs32(p.PitchLimitMinCD)
		lim := maxAbs
		if minAbs < lim {
			lim = minAbs
		}
		return float32(lim) * 0.01
	default: // gains.Roll
		return float32(p.RollLimitCD) * 0.01
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
