// Package ratepid defines the RatePID collaborator contract the autotune
// core reads gains from and writes adjusted gains into, plus a reference
// rate-mode PID controller exercised by the SITL harness: an
// anti-windup/derivative shape retuned from a temperature loop to a
// body-rate loop, with a slew-rate limiter on the output instead of a
// PWM clamp.
package ratepid

import "fwautotune/pkg/paramstore"

// RatePID is the contract the autotune core needs from the axis's rate
// controller: FF/P/I/D/IMAX are each a persistable float handle, and
// SlewLimit reports the configured output slew-rate ceiling so the gain
// law engine can compute dmod_mul and PD_mul thresholds from it.
type RatePID interface {
	FF() paramstore.ParamF32
	KP() paramstore.ParamF32
	KI() paramstore.ParamF32
	KD() paramstore.ParamF32
	KIMAX() paramstore.ParamF32
	SlewLimit() float32
	SetSlewLimit(v float32)

	// PidInfo reports the most recent tick's internals: target, actual,
	// the FF/P/I/D contributions, the slew-limiter's D multiplier, and
	// the observed output slew rate. The autotune core never calls
	// Update itself — it only reads this snapshot every tick.
	PidInfo() PidInfo
}

// PidInfo is the per-tick snapshot the autotune core's signal conditioner
// consumes. Units match the source's AP_PIDInfo: target/actual in deg/s,
// FF/P/I/D are the raw contribution terms (not yet combined into output).
type PidInfo struct {
	Target   float32
	Actual   float32
	FF       float32
	P        float32
	I        float32
	D        float32
	Dmod     float32 // slew-limiter's multiplier on the D term, (0,1]
	SlewRate float32 // observed |Δoutput/Δt|
}
