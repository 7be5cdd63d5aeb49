package bridge

import (
	"errors"
	"testing"

	"github.com/cbegin/tonecore/internal/evqueue"
	"github.com/cbegin/tonecore/internal/paramspec"
)

type fakeMachine struct {
	onNotes  []int
	offNotes []int
}

func (f *fakeMachine) NoteOn(note int, velocity float64)  { f.onNotes = append(f.onNotes, note) }
func (f *fakeMachine) NoteOff(note int)                   { f.offNotes = append(f.offNotes, note) }

type fakeTarget struct{ writes map[string]float64 }

func (f *fakeTarget) SetParam(id string, native float64) {
	if f.writes == nil {
		f.writes = map[string]float64{}
	}
	f.writes[id] = native
}

func TestDispatchesNoteOnAndNoteOffToRegisteredTrack(t *testing.T) {
	q := evqueue.New(16)
	q.Enqueue(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 0, Note: 60, Velocity: 100, Timestamp: 10})
	q.Enqueue(evqueue.Event{Kind: evqueue.KindNoteOff, Track: 0, Note: 60, Timestamp: 20})

	b := New(q)
	m := &fakeMachine{}
	b.Register(0, m, nil)

	errs := b.ProcessEvents(0, 64)
	if len(errs) != 0 {
		t.Fatalf("unexpected dispatch errors: %v", errs)
	}
	if len(m.onNotes) != 1 || m.onNotes[0] != 60 {
		t.Fatalf("NoteOn not dispatched: %v", m.onNotes)
	}
	if len(m.offNotes) != 1 || m.offNotes[0] != 60 {
		t.Fatalf("NoteOff not dispatched: %v", m.offNotes)
	}
}

func TestParamChangeRoutesThroughParameterBridge(t *testing.T) {
	q := evqueue.New(16)
	q.Enqueue(evqueue.Event{Kind: evqueue.KindParamChange, Track: 1, ParamKey: "gain", Value: 0.5, Timestamp: 5})

	b := New(q)
	target := &fakeTarget{}
	specs := []paramspec.Spec{{ID: "gain", Min: 0, Max: 2, Curve: paramspec.CurveLinear}}
	pb := paramspec.New(specs, target, nil)
	b.Register(1, &fakeMachine{}, pb)

	b.ProcessEvents(0, 64)
	if target.writes["gain"] != 1.0 {
		t.Fatalf("gain = %v, want 1.0 (0.5 scaled into [0,2])", target.writes["gain"])
	}
}

func TestUnknownTrackReportsDispatchError(t *testing.T) {
	q := evqueue.New(16)
	q.Enqueue(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 99, Note: 60, Timestamp: 1})
	b := New(q)

	errs := b.ProcessEvents(0, 64)
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnknownTrack) {
		t.Fatalf("expected ErrUnknownTrack, got %v", errs)
	}
}

func TestSampleOffsetClampedIntoBuffer(t *testing.T) {
	q := evqueue.New(16)
	q.Enqueue(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 0, Note: 60, Timestamp: 1000})
	b := New(q)
	b.Register(0, &fakeMachine{}, nil)

	b.ProcessEvents(990, 64) // offset would be 10, within [0,64)
	if b.LastSampleOffset() != 10 {
		t.Fatalf("offset = %d, want 10", b.LastSampleOffset())
	}
}
