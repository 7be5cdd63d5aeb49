package audio

import "github.com/cbegin/tonecore/internal/engine"

// EngineSource adapts an *engine.Engine to the SampleSource interface
// NewPlayer expects, so the audio engine can be handed straight to
// ebiten's audio output the same way this codebase's MML player wired its
// sequencer in before.
type EngineSource struct {
	Engine *engine.Engine
}

// Process renders len(dst)/2 stereo frames from the engine into dst. Any
// Process error (the engine isn't running, or a panic was recovered inside
// Engine.Process) fills dst with silence rather than propagating, since
// SampleSource has no error return.
func (s *EngineSource) Process(dst []float32) {
	frames := len(dst) / 2
	if err := s.Engine.Process(dst, frames, 0); err != nil {
		for i := range dst {
			dst[i] = 0
		}
	}
}
