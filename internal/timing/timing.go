// Package timing converts BPM/steps-per-beat into a sample-accurate step
// clock. It generalizes the bpm-to-samples-per-tick conversion used by this
// codebase's tick-based sequencer, replacing the fixed 16th-note/MML-tick
// grid with a configurable steps-per-beat field (§4.9, open question Q1).
package timing

import "sync"

// Transport is the play/pause/stop state of the timing synchronizer.
type Transport int

const (
	TransportStopped Transport = iota
	TransportPlaying
	TransportPaused
)

// State is a snapshot of TimingState as defined by the data model.
type State struct {
	SampleRate       int
	BPM              float64
	StepsPerBeat     int
	TimeSigNum       int
	TimeSigDen       int
	SamplesPerBeat   float64
	SamplesPerStep   float64
	CurrentSampleTime uint64
	CurrentStep      int64
	Swing            float64 // fraction in [-0.5, 0.5]
	Transport        Transport
}

// Synchronizer owns the TimingState and emits step-boundary callbacks as
// ProcessBuffer advances the sample clock.
type Synchronizer struct {
	mu sync.Mutex

	sampleRate   int
	bpm          float64
	stepsPerBeat int
	sigNum       int
	sigDen       int
	swing        float64
	transport    Transport

	currentSampleTime uint64
	currentStep       int64

	onStep func(step int64, sampleOffsetInBuffer int)
}

// New creates a Synchronizer at the given sample rate with a default
// 4/4 time signature, 120 BPM, and a 4 steps-per-beat (16th note) grid.
func New(sampleRate int) *Synchronizer {
	s := &Synchronizer{
		sampleRate:   sampleRate,
		bpm:          120,
		stepsPerBeat: 4,
		sigNum:       4,
		sigDen:       4,
	}
	return s
}

// OnStep installs the callback fired once per step boundary crossed during
// ProcessBuffer. Must be set before the audio thread starts calling
// ProcessBuffer; not safe to change concurrently with it.
func (s *Synchronizer) OnStep(fn func(step int64, sampleOffsetInBuffer int)) {
	s.onStep = fn
}

// SetBPM sets tempo, clamped to [20,200] per §4.9 (higher inputs saturate).
func (s *Synchronizer) SetBPM(bpm float64) {
	if bpm < 20 {
		bpm = 20
	} else if bpm > 200 {
		bpm = 200
	}
	s.mu.Lock()
	s.bpm = bpm
	s.mu.Unlock()
}

// SetStepsPerBeat sets the sequencer grid resolution (default 4, 16th notes).
func (s *Synchronizer) SetStepsPerBeat(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.stepsPerBeat = n
	s.mu.Unlock()
}

// SetSwing sets the swing fraction in [-0.5, 0.5] applied to odd-indexed
// steps (Q3: only odd 16th-notes are offset; no triplet/64th handling).
func (s *Synchronizer) SetSwing(fraction float64) {
	if fraction < -0.5 {
		fraction = -0.5
	} else if fraction > 0.5 {
		fraction = 0.5
	}
	s.mu.Lock()
	s.swing = fraction
	s.mu.Unlock()
}

func (s *Synchronizer) SetTransport(t Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

func (s *Synchronizer) samplesPerBeat() float64 {
	return 60.0 / s.bpm * float64(s.sampleRate)
}

func (s *Synchronizer) samplesPerStep() float64 {
	return s.samplesPerBeat() / float64(s.stepsPerBeat)
}

// stepBoundary returns the sample time of the boundary for the given step
// index, including the swing offset applied to odd-indexed steps.
func (s *Synchronizer) stepBoundary(step int64) float64 {
	sps := s.samplesPerStep()
	t := float64(step) * sps
	if step%2 != 0 {
		t += s.swing * sps
	}
	return t
}

// ProcessBuffer advances the sample clock by frames samples and fires
// OnStep for every step boundary crossed, with the sample offset within
// this buffer at which the boundary falls. Returns the new current sample
// time. Must be called only while Transport is Playing; stopped/paused
// synchronizers do not advance.
func (s *Synchronizer) ProcessBuffer(frames int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != TransportPlaying {
		return s.currentSampleTime
	}

	start := s.currentSampleTime
	end := start + uint64(frames)

	for {
		boundary := s.stepBoundary(s.currentStep + 1)
		if boundary > float64(end) {
			break
		}
		if boundary < float64(start) {
			// Guards against a pathological swing/steps-per-beat
			// configuration that would otherwise spin forever.
			s.currentStep++
			continue
		}
		offset := int(boundary - float64(start))
		s.currentStep++
		if s.onStep != nil {
			s.onStep(s.currentStep, offset)
		}
	}

	s.currentSampleTime = end
	return end
}

// Snapshot returns a read-only copy of the current TimingState.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SampleRate:        s.sampleRate,
		BPM:               s.bpm,
		StepsPerBeat:      s.stepsPerBeat,
		TimeSigNum:        s.sigNum,
		TimeSigDen:        s.sigDen,
		SamplesPerBeat:    s.samplesPerBeat(),
		SamplesPerStep:    s.samplesPerStep(),
		CurrentSampleTime: s.currentSampleTime,
		CurrentStep:       s.currentStep,
		Swing:             s.swing,
		Transport:         s.transport,
	}
}
