package airframe

import (
	"fmt"

	"fwautotune/pkg/config"
	"fwautotune/pkg/errors"
)

// GainSeed is the initial ATGains loaded from a [gains_roll]/[gains_pitch]
// section, before the SITL harness hands the individual fields to the
// rate-PID's ParamF32/ParamI16 handles.
type GainSeed struct {
	FF, P, I, D, IMAX float32
	Tau               float32
	RMaxPos, RMaxNeg  int16
	SlewLimit         float32
}

// StickProfile describes the scripted pilot-demand waveform the SITL
// harness drives the plant with: a square-wave step of the given
// amplitude and duty cycle, plus uniform noise added to the command.
type StickProfile struct {
	StepDegS  float32 // commanded rate amplitude, deg/s
	PeriodS   float32 // full step-then-rest period, seconds
	DutyCycle float32 // fraction of PeriodS the step is held high
	NoiseDegS float32 // peak amplitude of additive uniform noise
}

// Scenario is everything one SITL run needs: the airframe block, a gain
// seed per axis, the stick waveform, and the loop rate the harness ticks
// at.
type Scenario struct {
	Airframe   Params
	Roll       GainSeed
	Pitch      GainSeed
	Stick      StickProfile
	LoopRateHz float32
}

// LoadScenario reads a Scenario from an INI-style config file: [airframe],
// [gains_roll], [gains_pitch], and [stick] sections.
func LoadScenario(path string) (Scenario, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Scenario{}, errors.ScenarioError(path, err)
	}
	sc, err := scenarioFromConfig(cfg)
	if err != nil {
		return Scenario{}, errors.ScenarioError(path, err)
	}
	return sc, nil
}

// LoadScenarioString is LoadScenario for an in-memory config string, used
// by tests. Unlike LoadScenario, its errors are not wrapped in a
// ScenarioError.
func LoadScenarioString(data string) (Scenario, error) {
	cfg, err := config.LoadString(data)
	if err != nil {
		return Scenario{}, err
	}
	return scenarioFromConfig(cfg)
}

func scenarioFromConfig(cfg *config.Config) (Scenario, error) {
	var sc Scenario

	af, err := cfg.GetSection("airframe")
	if err != nil {
		return sc, err
	}
	rollLimit, err := af.GetInt("roll_limit_cd")
	if err != nil {
		return sc, err
	}
	pitchMax, err := af.GetInt("pitch_limit_max_cd")
	if err != nil {
		return sc, err
	}
	pitchMin, err := af.GetInt("pitch_limit_min_cd")
	if err != nil {
		return sc, err
	}
	level, err := af.GetInt("autotune_level", 0)
	if err != nil {
		return sc, err
	}
	loopRate, err := af.GetFloat("loop_rate_hz", 400)
	if err != nil {
		return sc, err
	}
	sc.Airframe = Params{
		RollLimitCD:     int32(rollLimit),
		PitchLimitMaxCD: int32(pitchMax),
		PitchLimitMinCD: int32(pitchMin),
		Level:           level,
	}
	sc.LoopRateHz = float32(loopRate)

	roll, err := loadGainSeed(cfg, "gains_roll")
	if err != nil {
		return sc, err
	}
	sc.Roll = roll

	pitch, err := loadGainSeed(cfg, "gains_pitch")
	if err != nil {
		return sc, err
	}
	sc.Pitch = pitch

	stick, err := cfg.GetSection("stick")
	if err != nil {
		return sc, err
	}
	stepDegS, err := stick.GetFloat("step_deg_s")
	if err != nil {
		return sc, err
	}
	periodS, err := stick.GetFloat("period_s", 1.0)
	if err != nil {
		return sc, err
	}
	duty, err := stick.GetFloat("duty_cycle", 0.3)
	if err != nil {
		return sc, err
	}
	noise, err := stick.GetFloat("noise_deg_s", 0)
	if err != nil {
		return sc, err
	}
	sc.Stick = StickProfile{
		StepDegS:  float32(stepDegS),
		PeriodS:   float32(periodS),
		DutyCycle: float32(duty),
		NoiseDegS: float32(noise),
	}

	return sc, nil
}

func loadGainSeed(cfg *config.Config, name string) (GainSeed, error) {
	sec, err := cfg.GetSection(name)
	if err != nil {
		return GainSeed{}, err
	}

	var g GainSeed
	fields := []struct {
		key string
		dst *float32
		req bool
	}{
		{"ff", &g.FF, true},
		{"p", &g.P, true},
		{"i", &g.I, true},
		{"d", &g.D, true},
		{"imax", &g.IMAX, false},
		{"tau", &g.Tau, true},
		{"slew_limit", &g.SlewLimit, false},
	}
	for _, f := range fields {
		var v float64
		var err error
		if f.req {
			v, err = sec.GetFloat(f.key)
		} else {
			v, err = sec.GetFloat(f.key, 0)
		}
		if err != nil {
			return GainSeed{}, fmt.Errorf("section %s: %w", name, err)
		}
		*f.dst = float32(v)
	}

	rmaxPos, err := sec.GetInt("rmax_pos")
	if err != nil {
		return GainSeed{}, fmt.Errorf("section %s: %w", name, err)
	}
	rmaxNeg, err := sec.GetInt("rmax_neg", rmaxPos)
	if err != nil {
		return GainSeed{}, fmt.Errorf("section %s: %w", name, err)
	}
	g.RMaxPos = int16(rmaxPos)
	g.RMaxNeg = int16(rmaxNeg)

	if g.IMAX == 0 {
		g.IMAX = 0.6
	}

	return g, nil
}
