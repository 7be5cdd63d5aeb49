// Package evqueue implements the bounded, priority-ordered event queue that
// carries sequencer events to the audio thread. It is loosely grounded on
// the pre-sorted host event list pattern used by this codebase's plugin
// event package, reshaped here into an actual min-heap (container/heap)
// since the sequencer bridge needs true (timestamp, priority, seq) ordering
// rather than a host-guaranteed pre-sorted list.
package evqueue

import "container/heap"

// Priority orders events when timestamps tie. Higher values win.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Kind identifies the payload carried by an Event.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindParamChange
	KindPatternChange
	KindTransport
)

// Event is a single PrioritizedEvent as defined by the data model: a
// timestamped, prioritized payload dispatched to a track's voice machine.
type Event struct {
	Kind      Kind
	Track     int
	Note      int
	Velocity  int
	ParamKey  string
	Value     float64
	Priority  Priority
	Timestamp uint64 // sample time
	DropIfLate bool  // ParamChange of the same key supersedes older ones

	seq int64 // insertion sequence, assigned by the queue
}

type item struct {
	ev    Event
	index int
}

// heapSlice implements container/heap.Interface ordered by
// (timestamp asc, priority desc, seq asc), the strict total order required
// by the spec.
type heapSlice []*item

func (h heapSlice) Len() int { return len(h) }

func (h heapSlice) Less(i, j int) bool {
	a, b := h[i].ev, h[j].ev
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (h heapSlice) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapSlice) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a bounded priority queue of Events. It never blocks and never
// allocates in dequeue_upto beyond the returned slice.
type Queue struct {
	capacity int
	h        heapSlice
	nextSeq  int64
	dropped  int64 // events dropped due to overflow, for the observability surface
}

// New creates a Queue with the given bounded capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{capacity: capacity}
	heap.Init(&q.h)
	return q
}

// Enqueue adds e to the queue. If the queue is at capacity, the current
// lowest-priority, oldest-timestamp event is dropped to make room (the
// queue never blocks and never grows past capacity). A ParamChange event
// marked DropIfLate that shares a (Track, ParamKey) with an already-queued
// ParamChange replaces it in place instead of adding a new entry.
func (q *Queue) Enqueue(e Event) {
	if e.Kind == KindParamChange && e.DropIfLate {
		for _, it := range q.h {
			if it.ev.Kind == KindParamChange && it.ev.Track == e.Track && it.ev.ParamKey == e.ParamKey {
				e.seq = it.ev.seq
				it.ev = e
				heap.Fix(&q.h, it.index)
				return
			}
		}
	}

	e.seq = q.nextSeq
	q.nextSeq++

	if len(q.h) >= q.capacity {
		q.dropLowestPriority()
	}
	heap.Push(&q.h, &item{ev: e})
}

// dropLowestPriority removes the event with the lowest priority, breaking
// ties by the oldest timestamp, to make room for a newly-enqueued event.
func (q *Queue) dropLowestPriority() {
	if len(q.h) == 0 {
		return
	}
	worst := 0
	for i := 1; i < len(q.h); i++ {
		a, b := q.h[i].ev, q.h[worst].ev
		if a.Priority < b.Priority || (a.Priority == b.Priority && a.Timestamp < b.Timestamp) {
			worst = i
		}
	}
	heap.Remove(&q.h, worst)
	q.dropped++
}

// DequeueUpto removes and returns, in (timestamp asc, priority desc, seq
// asc) order, every event with Timestamp <= t. Runs in O(k log n) with no
// heap allocation beyond the returned slice.
func (q *Queue) DequeueUpto(t uint64) []Event {
	var out []Event
	for len(q.h) > 0 && q.h[0].ev.Timestamp <= t {
		it := heap.Pop(&q.h).(*item)
		out = append(out, it.ev)
	}
	return out
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int { return len(q.h) }

// Dropped returns the cumulative number of events dropped due to overflow.
func (q *Queue) Dropped() int64 { return q.dropped }
