package fm

import "math"

// Operator is one of the four FM operators (A, B1, B2, C) described in
// §4.11: a sine oscillator whose phase can be modulated by another
// operator's output, shaped by its own envelope and output level, with
// optional self-feedback.
type Operator struct {
	FreqRatio   float64 // multiplier against the voice's base frequency
	DetuneCents float64
	OutputLevel float64 // linear 0..1
	ModIndex    float64 // scales this operator's output when it is used to phase-modulate another
	Feedback    float64 // 0..1, scales this operator's previous output fed back into its own phase, in every algorithm
	KeyTracking float64 // pitch always follows the note and is not scaled by this; a value <= 0 drops DetuneCents, any positive value keeps it

	Envelope *Envelope

	phase      float64
	lastOutput float64
}

// NewOperator creates an operator with a default envelope at the given
// sample rate.
func NewOperator(sampleRate float64) *Operator {
	return &Operator{FreqRatio: 1, OutputLevel: 1, ModIndex: 1, KeyTracking: 1, Envelope: NewEnvelope(sampleRate)}
}

// ResetPhase zeroes the oscillator phase, used on NoteOn when the voice's
// phase_reset option is enabled.
func (op *Operator) ResetPhase() {
	op.phase = 0
	op.lastOutput = 0
}

func centsToRatio(cents float64) float64 {
	return math.Pow(2, cents/1200.0)
}

// Render advances the operator by one sample given the carrier base
// frequency and an incoming phase-modulation signal (already scaled by the
// source operator's modulation index), returning this operator's output
// sample in roughly [-1,1] scaled by envelope and output level.
func (op *Operator) Render(sampleRate, baseFreq, modInput float64) float64 {
	freq := baseFreq * op.FreqRatio * centsToRatio(op.DetuneCents)
	if op.KeyTracking <= 0 {
		freq = baseFreq * op.FreqRatio
	}
	inc := freq / sampleRate

	fb := op.lastOutput * op.Feedback
	out := math.Sin(2*math.Pi*op.phase + modInput + fb)

	op.phase += inc
	if op.phase >= 1 {
		op.phase -= math.Floor(op.phase)
	}

	env := op.Envelope.Advance()
	out *= env * op.OutputLevel
	op.lastOutput = out
	return out
}

// Active reports whether the operator's envelope has anything left to
// render.
func (op *Operator) Active() bool { return op.Envelope.Active() }
