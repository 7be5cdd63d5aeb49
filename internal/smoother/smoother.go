// Package smoother implements per-sample, lock-free parameter ramps. It
// generalizes the uint64-bits-as-float64 atomic idiom used for this
// codebase's master-gain control into a reusable per-parameter primitive:
// set_target is callable from any thread, next_sample is callable from the
// audio thread without ever waiting on a mutex.
package smoother

import (
	"math"
	"sync/atomic"
)

// Smoother ramps a single float64 value toward a target over a configured
// time, advancing linearly by a fixed step per sample.
type Smoother struct {
	sampleRate float64

	currentBits atomic.Uint64
	targetBits  atomic.Uint64
	stepBits    atomic.Uint64
}

// New creates a Smoother at the given initial value.
func New(sampleRate float64, initial float64) *Smoother {
	s := &Smoother{sampleRate: sampleRate}
	s.currentBits.Store(math.Float64bits(initial))
	s.targetBits.Store(math.Float64bits(initial))
	s.stepBits.Store(math.Float64bits(0))
	return s
}

// Current returns the present smoothed value. Safe to call from the audio
// thread: a single atomic load, no blocking.
func (s *Smoother) Current() float64 {
	return math.Float64frombits(s.currentBits.Load())
}

// Target returns the value the smoother is ramping toward.
func (s *Smoother) Target() float64 {
	return math.Float64frombits(s.targetBits.Load())
}

// SetTarget schedules a ramp from the current value to v over
// smoothingTimeSeconds, recomputing the per-sample step. Callable from any
// thread.
func (s *Smoother) SetTarget(v float64, smoothingTimeSeconds float64) {
	current := s.Current()
	s.targetBits.Store(math.Float64bits(v))
	var step float64
	if smoothingTimeSeconds > 0 {
		samples := smoothingTimeSeconds * s.sampleRate
		if samples >= 1 {
			step = (v - current) / samples
		} else {
			step = v - current
		}
	} else {
		step = v - current
	}
	s.stepBits.Store(math.Float64bits(step))
}

// Reset immediately jumps both current and target to v, the only permitted
// discontinuity.
func (s *Smoother) Reset(v float64) {
	s.currentBits.Store(math.Float64bits(v))
	s.targetBits.Store(math.Float64bits(v))
	s.stepBits.Store(math.Float64bits(0))
}

// NextSample advances current by one step toward target, clamping on
// overshoot, and returns the new current value. Wait-free; callable from
// the audio thread every sample.
func (s *Smoother) NextSample() float64 {
	current := s.Current()
	target := s.Target()
	step := math.Float64frombits(s.stepBits.Load())
	if step == 0 || current == target {
		return current
	}
	next := current + step
	if (step > 0 && next >= target) || (step < 0 && next <= target) {
		next = target
	}
	s.currentBits.Store(math.Float64bits(next))
	return next
}
