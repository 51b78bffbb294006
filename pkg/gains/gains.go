// Package gains defines the data types shared across the autotune core:
// the gain snapshot, axis/state/action enums, and the fixed tuning table
// used by the envelope slewer. This is the Go equivalent of the ATGains
// struct and ATState/Action enums in AP_AutoTune.h.
package gains

// ATGains is a snapshot of the rate-PID gains and envelope parameters the
// autotuner reasons about. It is a small value type, trivially copyable,
// matching the source's plain-old-data ATGains struct.
type ATGains struct {
	Tau     float32 // time constant of the attitude->rate mapping, seconds
	RMaxPos int16   // positive rate envelope, deg/s
	RMaxNeg int16   // negative rate envelope, deg/s
	FF      float32
	P       float32
	I       float32
	D       float32
	IMAX    float32
}

// Axis selects which attitude-limit field of the airframe parameter block
// a Tuner reads.
type Axis int

const (
	Roll Axis = iota
	Pitch
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	default:
		return "unknown"
	}
}

// State is the autotune event-detector state.
type State int

const (
	Idle State = iota
	DemandPos
	DemandNeg
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DemandPos:
		return "demand_pos"
	case DemandNeg:
		return "demand_neg"
	default:
		return "unknown"
	}
}

// Action records why the gain law engine did (or didn't) adjust gains on
// the most recent event. It exists purely for the log record.
type Action int

const (
	ActionNone Action = iota
	ActionLowRate
	ActionShort
	ActionRaisePD
	ActionLowerPD
	ActionIdleLowerPD
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionLowRate:
		return "low_rate"
	case ActionShort:
		return "short"
	case ActionRaisePD:
		return "raise_pd"
	case ActionLowerPD:
		return "lower_pd"
	case ActionIdleLowerPD:
		return "idle_lower_pd"
	default:
		return "unknown"
	}
}

// TuningRow is one entry of the aggressiveness tuning table.
type TuningRow struct {
	Tau  float32
	RMax int16
}

// TuningTable maps aggressiveness level 1..11 to (tau, rmax). Index 0 of
// this slice corresponds to level 1; level 0 ("keep current values") has
// no row and is handled by the caller.
var TuningTable = [11]TuningRow{
	{Tau: 1.00, RMax: 20},
	{Tau: 0.90, RMax: 30},
	{Tau: 0.80, RMax: 40},
	{Tau: 0.70, RMax: 50},
	{Tau: 0.60, RMax: 60},
	{Tau: 0.50, RMax: 75},
	{Tau: 0.30, RMax: 90},
	{Tau: 0.20, RMax: 120},
	{Tau: 0.15, RMax: 160},
	{Tau: 0.10, RMax: 210},
	{Tau: 0.10, RMax: 300},
}
