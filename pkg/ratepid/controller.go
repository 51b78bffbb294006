package ratepid

import (
	"sync"

	"fwautotune/pkg/paramstore"
)

// RateController is a reference RatePID: a body-rate loop with an
// anti-windup integral and discrete derivative shape, driving a
// rate-command output instead of a PWM duty cycle, with a slew-rate
// limiter on the output that attenuates the derivative term when it
// fires (Dmod < 1) — the behavior the gain law engine detects and
// reacts to.
type RateController struct {
	mu sync.Mutex

	ff, kp, ki, kd, kimax paramstore.ParamF32
	slewLimit             float32

	integral   float32
	prevError  float32
	prevOutput float32
	haveOutput bool

	info PidInfo
}

// RateControllerConfig binds a RateController's gain handles to a Store
// under the given parameter-name prefix (e.g. "roll." or "pitch."), with
// these values as their initial in-memory values; nothing is written to
// the Store until a handle is saved.
type RateControllerConfig struct {
	Store     paramstore.Store
	Prefix    string
	FF, P, I, D, IMAX float32
	SlewLimit float32
}

// NewRateController builds a RateController with its gain handles bound
// to cfg.Store under cfg.Prefix.
func NewRateController(cfg RateControllerConfig) *RateController {
	slew := cfg.SlewLimit
	return &RateController{
		ff:        paramstore.NewParamF32(cfg.Store, cfg.Prefix+"ff", cfg.FF),
		kp:        paramstore.NewParamF32(cfg.Store, cfg.Prefix+"p", cfg.P),
		ki:        paramstore.NewParamF32(cfg.Store, cfg.Prefix+"i", cfg.I),
		kd:        paramstore.NewParamF32(cfg.Store, cfg.Prefix+"d", cfg.D),
		kimax:     paramstore.NewParamF32(cfg.Store, cfg.Prefix+"imax", cfg.IMAX),
		slewLimit: slew,
	}
}

func (c *RateController) FF() paramstore.ParamF32    { return c.ff }
func (c *RateController) KP() paramstore.ParamF32    { return c.kp }
func (c *RateController) KI() paramstore.ParamF32    { return c.ki }
func (c *RateController) KD() paramstore.ParamF32    { return c.kd }
func (c *RateController) KIMAX() paramstore.ParamF32 { return c.kimax }

func (c *RateController) SlewLimit() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slewLimit
}

func (c *RateController) SetSlewLimit(v float32) {
	c.mu.Lock()
	c.slewLimit = v
	c.mu.Unlock()
}

func (c *RateController) PidInfo() PidInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Update runs one tick of the rate loop given the elapsed time and the
// current target/actual rate, and returns the combined output. It is
// called by the SITL harness driving the plant model, never by the
// autotune core itself.
func (c *RateController) Update(dt, target, actual float32) float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dt <= 0 {
		return c.prevOutput
	}

	errVal := target - actual
	ff := c.ff.Get() * target
	p := c.kp.Get() * errVal

	c.integral += errVal * dt
	imax := c.kimax.Get()
	if c.integral > imax {
		c.integral = imax
	} else if c.integral < -imax {
		c.integral = -imax
	}
	i := c.ki.Get() * c.integral

	dmod := float32(1)
	if c.haveOutput && c.slewLimit > 0 {
		rate := absf(c.prevOutput-c.lastRaw(p, i, ff)) / dt
		if rate > c.slewLimit {
			dmod = c.slewLimit / rate
			if dmod < 0.1 {
				dmod = 0.1
			}
		}
	}

	d := c.kd.Get() * dmod * (errVal - c.prevError) / dt
	c.prevError = errVal

	output := ff + p + i + d
	slewRate := float32(0)
	if c.haveOutput {
		slewRate = absf(output-c.prevOutput) / dt
	}
	c.prevOutput = output
	c.haveOutput = true

	c.info = PidInfo{
		Target:   target,
		Actual:   actual,
		FF:       ff,
		P:        p,
		I:        i,
		D:        d,
		Dmod:     dmod,
		SlewRate: slewRate,
	}
	return output
}

// lastRaw recomputes what the un-limited output would have been this
// tick (before the derivative contribution), used only to estimate
// whether the slew limiter should engage before the D term is added.
func (c *RateController) lastRaw(p, i, ff float32) float32 {
	return ff + p + i
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
