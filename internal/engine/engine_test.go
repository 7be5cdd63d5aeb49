package engine

import (
	"testing"

	"github.com/cbegin/tonecore/internal/config"
	"github.com/cbegin/tonecore/internal/evqueue"
	"github.com/cbegin/tonecore/internal/persist"
)

type recordingStore struct {
	saved map[string]float32
}

func (s *recordingStore) Save(key string, value float32) error {
	if s.saved == nil {
		s.saved = make(map[string]float32)
	}
	s.saved[key] = value
	return nil
}

func (s *recordingStore) Load(key string) (float32, bool, error) {
	v, ok := s.saved[key]
	return v, ok, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.New(config.WithSampleRate(48000), config.WithBufferSize(256), config.WithChannelCount(2))
	e := New(cfg, nil)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func TestLifecycleStateMachine(t *testing.T) {
	e := newTestEngine(t)
	if e.State() != StateReady {
		t.Fatalf("state = %v, want ready", e.State())
	}
	if _, err := e.RegisterTrack(0); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateRunning {
		t.Fatalf("state = %v, want running", e.State())
	}
	if err := e.Suspend(); err != nil {
		t.Fatal(err)
	}
	if err := e.Resume(); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", e.State())
	}
}

func TestProcessRejectedBeforeStart(t *testing.T) {
	e := newTestEngine(t)
	buf := make([]float32, 256*2)
	if err := e.Process(buf, 256, 0); err != ErrNotRunning {
		t.Fatalf("got %v, want ErrNotRunning", err)
	}
}

func TestProcessRendersNoteOn(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterTrack(0)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.EnqueueEvent(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 0, Note: 69, Velocity: 100, Timestamp: 0, Priority: evqueue.PriorityHigh})

	buf := make([]float32, 256*2)
	if err := e.Process(buf, 256, 0); err != nil {
		t.Fatal(err)
	}
	var nonZero bool
	for _, s := range buf {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("expected non-silent output after NoteOn")
	}
}

func TestSuspendProducesSilence(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterTrack(0)
	e.Start()
	e.EnqueueEvent(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 0, Note: 69, Velocity: 100, Timestamp: 0})
	e.Suspend()

	buf := make([]float32, 256*2)
	for i := range buf {
		buf[i] = 1 // poison
	}
	if err := e.Process(buf, 256, 0); err != nil {
		t.Fatal(err)
	}
	for _, s := range buf {
		if s != 0 {
			t.Fatal("expected silence while suspended")
		}
	}
}

func TestParamChangeSavesThroughPersistenceStore(t *testing.T) {
	e := newTestEngine(t)
	store := &recordingStore{}
	e.SetPersistenceStore(store)
	e.RegisterTrack(0)
	pb, ok := e.ParamBridge(0)
	if !ok {
		t.Fatal("expected param bridge for track 0")
	}
	if err := pb.Update("master_gain", 0.5); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one saved value, got %d", len(store.saved))
	}
	key := persist.Key(e.presetID, "master_gain")
	if _, ok := store.saved[key]; !ok {
		t.Fatalf("expected key %q in saved values, got %+v", key, store.saved)
	}
}

func TestMetricsReflectQueueDepth(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterTrack(0)
	e.Start()
	e.EnqueueEvent(evqueue.Event{Kind: evqueue.KindNoteOn, Track: 0, Note: 60, Timestamp: 1_000_000, Priority: evqueue.PriorityHigh})
	if m := e.Metrics(); m.EventQueueDepth != 1 {
		t.Fatalf("EventQueueDepth = %d, want 1", m.EventQueueDepth)
	}
}
