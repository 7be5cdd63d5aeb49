package evqueue

import (
	"testing"

	"pgregory.net/rapid"
)

// TestS2EventPriorityOrdering is the literal S2 scenario: at t=1000 enqueue
// ParamChange(low) then NoteOn(high); dequeue_upto(1500) returns NoteOn first.
func TestS2EventPriorityOrdering(t *testing.T) {
	q := New(16)
	q.Enqueue(Event{Kind: KindParamChange, Timestamp: 1000, Priority: PriorityLow})
	q.Enqueue(Event{Kind: KindNoteOn, Timestamp: 1000, Priority: PriorityHigh})

	got := q.DequeueUpto(1500)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Kind != KindNoteOn {
		t.Fatalf("first event kind = %v, want NoteOn", got[0].Kind)
	}
}

func TestDequeueUptoOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New(64)
		n := rapid.IntRange(0, 50).Draw(t, "n")
		for i := 0; i < n; i++ {
			q.Enqueue(Event{
				Kind:      KindNoteOn,
				Timestamp: uint64(rapid.IntRange(0, 100).Draw(t, "ts")),
				Priority:  Priority(rapid.IntRange(0, 3).Draw(t, "prio")),
			})
		}
		got := q.DequeueUpto(1000)
		for i := 1; i < len(got); i++ {
			a, b := got[i-1], got[i]
			if a.Timestamp > b.Timestamp {
				t.Fatalf("out of order by timestamp at %d", i)
			}
			if a.Timestamp == b.Timestamp && a.Priority < b.Priority {
				t.Fatalf("out of order by priority at %d", i)
			}
		}
	})
}

func TestOverflowDropsInsteadOfBlocking(t *testing.T) {
	q := New(4)
	for i := 0; i < 10; i++ {
		q.Enqueue(Event{Kind: KindNoteOn, Timestamp: uint64(i), Priority: PriorityNormal})
	}
	if q.Len() != 4 {
		t.Fatalf("Len = %d, want 4 (bounded capacity)", q.Len())
	}
	if q.Dropped() == 0 {
		t.Fatalf("expected dropped count > 0")
	}
}

func TestDropIfLateSupersedes(t *testing.T) {
	q := New(16)
	q.Enqueue(Event{Kind: KindParamChange, Track: 1, ParamKey: "cutoff", Value: 0.1, Timestamp: 10, DropIfLate: true})
	q.Enqueue(Event{Kind: KindParamChange, Track: 1, ParamKey: "cutoff", Value: 0.9, Timestamp: 20, DropIfLate: true})
	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (superseded)", q.Len())
	}
	got := q.DequeueUpto(1000)
	if len(got) != 1 || got[0].Value != 0.9 {
		t.Fatalf("got %+v, want single event with value 0.9", got)
	}
}
