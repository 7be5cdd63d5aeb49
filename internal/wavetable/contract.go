package wavetable

import "sync"

// Machine adapts the wavetable Engine above to the bridge.VoiceMachine
// integration contract (NoteOn(note, velocity) / NoteOff(note)) and to the
// engine package's Process(frames, channels) shape, so a WAVETONE-style
// track can sit behind the sequencer bridge exactly like an FM TONE track.
// Per the spec's non-goals, only this integration contract is implemented
// here — the wavetable engine's own synthesis (Engine, above) is kept and
// adapted rather than reduced to a stub, since it already renders
// correctly and this machine is a thin dispatcher over it.
type Machine struct {
	mu     sync.Mutex
	engine *Engine
	byNote map[int]int // note -> active voice id, for NoteOff lookup

	// outBuf is reused across Process calls so steady-state rendering
	// never allocates; it is only grown if frames*channels changes.
	outBuf []float32
}

// NewMachine wraps a wavetable Engine for use behind the sequencer bridge.
func NewMachine(sampleRate int, params Params) *Machine {
	return &Machine{engine: New(sampleRate, params), byNote: make(map[int]int)}
}

// NoteOn satisfies bridge.VoiceMachine. velocity follows the same
// convention as fm.Machine.NoteOn: a raw 0-127 value, matching what the
// sequencer bridge forwards from an evqueue.Event.
func (m *Machine) NoteOn(note int, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.engine.NoteOn(note, int(velocity), 0, 0)
	m.byNote[note] = id
}

// NoteOff satisfies bridge.VoiceMachine.
func (m *Machine) NoteOff(note int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byNote[note]; ok {
		m.engine.NoteOff(id)
		delete(m.byNote, note)
	}
}

// SetParam implements paramspec.Target for the subset of wavetable
// parameters exposed as ParameterSpecs (master gain and filter type);
// richer per-voice parameters stay behind the lower-level Engine API.
func (m *Machine) SetParam(id string, native float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch id {
	case "wt_master_gain":
		m.engine.SetMasterGain(native)
	case "wt_filter_type":
		m.engine.SetFilterType(int(native))
	}
}

// Process renders frames samples of interleaved output at the given
// channel count (1 or 2; wavetable's native output is stereo and is
// downmixed to mono if channels == 1).
func (m *Machine) Process(frames, channels int) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := frames * channels
	if cap(m.outBuf) < size {
		m.outBuf = make([]float32, size)
	}
	out := m.outBuf[:size]
	for i := 0; i < frames; i++ {
		l, r := m.engine.RenderFrame()
		if channels == 1 {
			out[i] = (l + r) / 2
			continue
		}
		out[i*channels] = l
		if channels > 1 {
			out[i*channels+1] = r
		}
	}
	return out
}
