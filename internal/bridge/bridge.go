// Package bridge implements the Sequencer Bridge (§4.10): it maintains the
// track -> VoiceMachine map and dispatches events pulled from the event
// queue to each track's machine. It is shaped after this codebase's
// multi-engine dispatch (routing NoteOn/NoteOff/control calls to a module
// number's VoiceEngine), generalized to the event queue's richer
// (priority, sample-accurate) event stream and to ParamChange events which
// route through a Parameter Bridge rather than a direct field write.
package bridge

import (
	"fmt"

	"github.com/cbegin/tonecore/internal/evqueue"
	"github.com/cbegin/tonecore/internal/paramspec"
)

// VoiceMachine is whatever a track's event dispatch targets. FM TONE
// (internal/fm.Machine) is the only voice machine this engine ships today;
// WAVETONE, drum and FX machines are integration-contract only per spec
// and implement this same interface from their own packages.
type VoiceMachine interface {
	NoteOn(note int, velocity float64)
	NoteOff(note int)
}

// track bundles a voice machine with the parameter bridge that mediates
// its ParamChange events.
type track struct {
	machine VoiceMachine
	params  *paramspec.Bridge
}

// Bridge dispatches events pulled from an evqueue.Queue to per-track voice
// machines. Register is a mutator-path call (not real-time); ProcessEvents
// runs on the audio thread once per buffer.
type Bridge struct {
	queue  *evqueue.Queue
	tracks map[int]*track

	lastSampleOffset int // most recent event's offset into its buffer, for tests/observability
}

// New creates a Bridge pulling events from queue.
func New(queue *evqueue.Queue) *Bridge {
	return &Bridge{queue: queue, tracks: make(map[int]*track)}
}

// Register assigns a voice machine (and optionally its parameter bridge)
// to a track number. params may be nil if the track's machine takes no
// ParamChange events.
func (b *Bridge) Register(trackNum int, machine VoiceMachine, params *paramspec.Bridge) {
	b.tracks[trackNum] = &track{machine: machine, params: params}
}

// Unregister removes a track's voice machine.
func (b *Bridge) Unregister(trackNum int) {
	delete(b.tracks, trackNum)
}

// ProcessEvents pulls every event timestamped at or before
// bufferStartTime+bufferSize-1 from the queue and dispatches it to the
// track it names. Each event's sample offset within the buffer (Timestamp
// - bufferStartTime, clamped into [0, bufferSize)) is recorded for
// sample-aligned playback; this bridge dispatches at buffer granularity
// (consistent with the voice machines it drives, whose Process renders a
// whole buffer at a time) and does not itself split a buffer at the
// offset — a stricter sample-accurate host would.
func (b *Bridge) ProcessEvents(bufferStartTime uint64, bufferSize int) []DispatchError {
	upto := bufferStartTime + uint64(bufferSize) - 1
	events := b.queue.DequeueUpto(upto)

	var errs []DispatchError
	for _, e := range events {
		offset := 0
		if e.Timestamp > bufferStartTime {
			offset = int(e.Timestamp - bufferStartTime)
		}
		if offset >= bufferSize {
			offset = bufferSize - 1
		}
		b.lastSampleOffset = offset

		tr, ok := b.tracks[e.Track]
		if !ok {
			errs = append(errs, DispatchError{Event: e, Err: fmt.Errorf("%w: track %d", ErrUnknownTrack, e.Track)})
			continue
		}
		b.dispatch(tr, e, &errs)
	}
	return errs
}

func (b *Bridge) dispatch(tr *track, e evqueue.Event, errs *[]DispatchError) {
	switch e.Kind {
	case evqueue.KindNoteOn:
		tr.machine.NoteOn(e.Note, float64(e.Velocity))
	case evqueue.KindNoteOff:
		tr.machine.NoteOff(e.Note)
	case evqueue.KindParamChange:
		if tr.params == nil {
			*errs = append(*errs, DispatchError{Event: e, Err: ErrNoParamBridge})
			return
		}
		if err := tr.params.Update(e.ParamKey, e.Value); err != nil {
			*errs = append(*errs, DispatchError{Event: e, Err: err})
		}
	case evqueue.KindPatternChange, evqueue.KindTransport:
		// Handled by the sequencer/timing layer upstream of the bridge;
		// nothing to dispatch to a voice machine.
	}
}

// LastSampleOffset returns the most recently dispatched event's sample
// offset within its buffer, for tests and observability.
func (b *Bridge) LastSampleOffset() int { return b.lastSampleOffset }
