// Package fm implements the FM Operator+Envelope (§4.11) and FM TONE Voice
// Machine (§4.12): a 16-voice, 4-operator (A/B1/B2/C), 8-algorithm FM
// synthesis engine driven by the Parameter Bridge and dispatched to by the
// Sequencer Bridge.
package fm

import (
	"math"
	"sync"

	"github.com/cbegin/tonecore/internal/paramspec"
)

const numVoices = 16

// Machine is one polyphonic FM TONE voice machine: 16 voices sharing an
// algorithm selection and a per-operator parameter set, driven by NoteOn,
// NoteOff and SetParam calls from the Sequencer Bridge / Parameter Bridge.
// Every method, Process included, locks the mutex below. In this engine's
// wiring NoteOn, NoteOff and SetParam run on the same thread as Process
// (the Bridge's Update forwards synchronously), so the lock is uncontended
// there.
type Machine struct {
	mu sync.Mutex

	sampleRate float64
	algorithm  Algorithm
	phaseReset bool
	masterGain float64

	voices  [numVoices]*Voice
	nextSeq uint64

	// outBuf is reused across Process calls so steady-state rendering
	// never allocates; it is only grown if frames*channels changes.
	outBuf []float32
}

// NewMachine creates a 16-voice FM TONE machine at the given sample rate,
// defaulting to algorithm 1 and unity master gain.
func NewMachine(sampleRate float64) *Machine {
	m := &Machine{sampleRate: sampleRate, algorithm: Algorithm1, masterGain: 1, phaseReset: true}
	for i := range m.voices {
		m.voices[i] = newVoice(sampleRate)
	}
	return m
}

// pickVoice applies the §4.12 stealing policy: prefer an idle voice, else
// the oldest voice in release, else the oldest voice overall.
func (m *Machine) pickVoice() *Voice {
	for _, v := range m.voices {
		if v.idle() {
			return v
		}
	}
	var oldestRelease *Voice
	for _, v := range m.voices {
		if v.inRelease() && (oldestRelease == nil || v.allocSeq < oldestRelease.allocSeq) {
			oldestRelease = v
		}
	}
	if oldestRelease != nil {
		return oldestRelease
	}
	oldest := m.voices[0]
	for _, v := range m.voices[1:] {
		if v.allocSeq < oldest.allocSeq {
			oldest = v
		}
	}
	return oldest
}

// NoteOn allocates a voice per the stealing policy and triggers it.
func (m *Machine) NoteOn(note int, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.pickVoice()
	m.nextSeq++
	v.noteOn(note, velocity/127.0, m.nextSeq, m.phaseReset)
}

// NoteOff releases the most recently triggered active voice matching note.
func (m *Machine) NoteOff(note int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var target *Voice
	for _, v := range m.voices {
		if v.gate && v.note == note {
			if target == nil || v.allocSeq > target.allocSeq {
				target = v
			}
		}
	}
	if target != nil {
		target.noteOff()
	}
}

// SetParam implements paramspec.Target, routing a scaled native parameter
// value to the machine's algorithm selector, operators, or voice options.
func (m *Machine) SetParam(id string, native float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "algorithm" {
		alg := Algorithm(int(math.Round(native)))
		if alg.Valid() {
			m.algorithm = alg
		}
		return
	}
	if id == "phase_reset" {
		m.phaseReset = native >= 0.5
		return
	}
	if id == "master_gain" {
		m.masterGain = native
		return
	}

	role, field, ok := parseOperatorParam(id)
	if !ok {
		return
	}
	for _, v := range m.voices {
		applyOperatorField(v.ops[role], field, native)
	}
}

// Process renders frames frames of interleaved output, channels samples
// per frame, by summing
// every voice's carrier output, applying master gain.
func (m *Machine) Process(frames, channels int) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := frames * channels
	if cap(m.outBuf) < size {
		m.outBuf = make([]float32, size)
	}
	out := m.outBuf[:size]
	for i := 0; i < frames; i++ {
		var sum float64
		for _, v := range m.voices {
			if v.idle() {
				continue
			}
			sum += v.render(m.algorithm, m.sampleRate)
		}
		sum *= m.masterGain
		for c := 0; c < channels; c++ {
			out[i*channels+c] = float32(sum)
		}
	}
	return out
}

// ActiveVoiceCount returns how many voices are not idle, for observability.
func (m *Machine) ActiveVoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.voices {
		if !v.idle() {
			n++
		}
	}
	return n
}

var _ paramspec.Target = (*Machine)(nil)
