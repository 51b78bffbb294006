// Package clock provides the monotonic time source the autotune core is
// driven from. now_ms wraps at 2^32 and is always differenced with
// unsigned subtraction (ElapsedMS) rather than compared directly, the
// same technique used to extend a wrapped 32-bit hardware clock.
package clock

import "time"

// Source supplies monotonic time to the autotune core. now_ms wraps at
// 2^32; now_us is only used for log timestamps and is never differenced
// against a wrapped value.
type Source interface {
	NowMS() uint32
	NowUS() uint64
}

// System is a Source backed by the process monotonic clock.
type System struct {
	start time.Time
}

// NewSystem returns a Source anchored at the current instant so NowMS
// starts near zero instead of near a multiple-of-the-epoch value.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) NowMS() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

func (s *System) NowUS() uint64 {
	return uint64(time.Since(s.start).Microseconds())
}

// ElapsedMS returns now-prev under 32-bit modular arithmetic: the
// subtraction is done unsigned, so a wrap between prev and now still
// produces the correct small positive duration.
func ElapsedMS(now, prev uint32) uint32 {
	return now - prev
}

// Fake is a Source for tests: time only advances
// when Advance is called, keeping ticks deterministic. Microseconds are
// the only accumulator; NowMS is derived from it so sub-millisecond tick
// periods (e.g. 400 Hz => 2.5 ms) don't drift from truncation.
type Fake struct {
	us uint64
}

// NewFake returns a Fake starting at time zero.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) NowMS() uint32 { return uint32(f.us / 1000) }
func (f *Fake) NowUS() uint64 { return f.us }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.us += uint64(d.Microseconds())
}
