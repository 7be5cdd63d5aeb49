package fm

import "math"

// noteToFreq converts a MIDI note number to Hz (A4 = note 69 = 440Hz).
func noteToFreq(note int) float64 {
	return 440.0 * math.Pow(2, (float64(note)-69)/12.0)
}

// Voice is one of the 16 polyphonic voices of a Voice Machine: four
// operators plus the bookkeeping voice stealing needs.
type Voice struct {
	ops [numRoles]*Operator

	note      int
	velocity  float64
	baseFreq  float64
	allocSeq  uint64 // monotonic allocation order, oldest-first tiebreak for stealing
	gate      bool   // true from NoteOn until NoteOff (gate release starts the release stage)
}

func newVoice(sampleRate float64) *Voice {
	v := &Voice{}
	for r := Role(0); r < numRoles; r++ {
		v.ops[r] = NewOperator(sampleRate)
	}
	return v
}

// idle reports whether every operator envelope has fully decayed.
func (v *Voice) idle() bool {
	for _, op := range v.ops {
		if op.Active() {
			return false
		}
	}
	return true
}

// inRelease reports whether the voice is gated off and at least one
// operator is still in its release stage (not yet idle).
func (v *Voice) inRelease() bool {
	if v.gate {
		return false
	}
	return !v.idle()
}

// noteOn triggers the voice: sets note/velocity/base frequency, optionally
// resets operator phases, and triggers every operator's envelope from
// attack.
func (v *Voice) noteOn(note int, velocity float64, seq uint64, phaseReset bool) {
	v.note = note
	v.velocity = velocity
	v.baseFreq = noteToFreq(note)
	v.allocSeq = seq
	v.gate = true
	for _, op := range v.ops {
		if phaseReset {
			op.ResetPhase()
		}
		op.Envelope.Trigger()
	}
}

// noteOff transitions every operator's envelope to release.
func (v *Voice) noteOff() {
	v.gate = false
	for _, op := range v.ops {
		op.Envelope.Release()
	}
}

// render advances the voice by one sample under the given algorithm and
// returns its mono carrier sum, scaled by velocity and normalized by
// carrier count.
func (v *Voice) render(alg Algorithm, sampleRate float64) float64 {
	sum := alg.Render(v.ops, sampleRate, v.baseFreq)
	out := sum / float64(alg.CarrierCount()) * v.velocity
	// denormal prevention: flush sub-audible residue to true zero.
	if math.Abs(out) < 1e-20 {
		out = 0
	}
	return out
}
