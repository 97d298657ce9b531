// timebase.go — protocol time conversion and per-quantum advance.
//
// The render thread reads base_offset, drift_ms, and global_ms fresh
// every quantum rather than caching them, so a host-clock pause or
// correction is picked up on the very next call rather than after some
// resync interval.
package timebase

import (
	"math"
	"sync/atomic"
)

// Time is a 64-bit fixed-point protocol time: the upper 32 bits are
// integer seconds from the command protocol's epoch, the lower 32 a
// fractional second at 1/2^32 resolution.
type Time uint64

// FromSeconds converts a float64 seconds value to protocol time,
// truncating the fractional remainder to 32-bit precision.
func FromSeconds(seconds float64) Time {
	whole := uint64(seconds)
	frac := seconds - float64(whole)
	return Time(whole<<32 | uint64(frac*(1<<32)))
}

// Seconds converts t back to a float64 seconds value.
func (t Time) Seconds() float64 {
	whole := float64(uint64(t) >> 32)
	frac := float64(uint32(t)) / (1 << 32)
	return whole + frac
}

// Base holds the three time-base components the control thread
// maintains: a write-once origin and two atomically adjustable
// corrections.
type Base struct {
	offsetBits atomic.Uint64 // float64 bit pattern; avoids boxing a float64 into an atomic.Value

	driftMs  atomic.Int32
	globalMs atomic.Int32

	nonmonotonic *atomic.Uint32 // optional, bound by the caller
}

// NewBase returns a Base with offset 0 and no corrections, as if the
// shared region had just been zeroed by init_memory.
func NewBase() *Base {
	return &Base{}
}

// BindNonmonotonicCounter attaches the metrics counter incremented
// whenever Now observes the quantum clock moving backward.
func (b *Base) BindNonmonotonicCounter(counter *atomic.Uint32) {
	b.nonmonotonic = counter
}

// SetOffset implements set_time_offset: a write-once-in-spirit update
// from the control thread. Nothing prevents a second call — the core
// does not enforce write-once, matching the original's plain field
// write semantics — but no render-thread code ever calls it.
func (b *Base) SetOffset(seconds float64) {
	b.offsetBits.Store(math.Float64bits(seconds))
}

// Offset implements get_time_offset, returning the most recent value
// passed to SetOffset.
func (b *Base) Offset() float64 {
	return math.Float64frombits(b.offsetBits.Load())
}

// SetDrift and SetGlobal implement the control thread's periodic and
// user-settable corrections.
func (b *Base) SetDrift(ms int32)  { b.driftMs.Store(ms) }
func (b *Base) SetGlobal(ms int32) { b.globalMs.Store(ms) }

// Now computes the absolute protocol time at the start of a quantum,
// given the quantum's wall-clock start in seconds since the process's
// own monotonic reference. All three time-base components are read
// fresh; last is the previous quantum's result (zero on the first
// call) used only to detect and count a non-monotonic jump.
func (b *Base) Now(quantumStartSeconds float64, last Time) Time {
	offset := math.Float64frombits(b.offsetBits.Load())
	drift := float64(b.driftMs.Load()) / 1000
	global := float64(b.globalMs.Load()) / 1000

	now := FromSeconds(quantumStartSeconds + offset + drift + global)
	if last != 0 && now < last && b.nonmonotonic != nil {
		b.nonmonotonic.Add(1)
	}
	return now
}

// Advance computes the protocol-time span covered by a quantum of
// frames samples at the given sample rate, for quantum-boundary
// scheduling comparisons.
func Advance(frames, sampleRate uint32) Time {
	return FromSeconds(float64(frames) / float64(sampleRate))
}
