// Package routing implements the N x M routing matrix of §4.5: an
// RCU-published set of connections independent of the audio graph's own
// topology, with its own gain/active/latency bookkeeping and a bounded
// change-event history for the observability surface.
package routing

import (
	"sync"
	"sync/atomic"
)

// ChangeKind classifies an entry in the routing matrix's change ring.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeGain
	ChangeToggled
	ChangeOptimized
)

// Connection mirrors the routing-relevant fields of a graph connection.
type Connection struct {
	SourceID                   string
	DestID                     string
	Gain                       float64
	Active                     bool
	LatencyCompensationSamples int
}

// ChangeEvent records one mutation to the matrix.
type ChangeEvent struct {
	Kind       ChangeKind
	SourceID   string
	DestID     string
	Gain       float64
}

// Matrix is an RCU-style set of Connections: mutators build a new slice and
// publish it via atomic.Pointer swap; readers (the audio thread) load the
// pointer once per cycle and see a consistent view for the whole buffer.
type Matrix struct {
	maxInputs, maxOutputs int

	mu          sync.Mutex // guards mutation serialization only, never the read path
	connections atomic.Pointer[[]Connection]

	historyMu sync.Mutex
	history   []ChangeEvent
	maxHist   int
}

// New creates a Matrix with the given I x O capacity.
func New(maxInputs, maxOutputs int) *Matrix {
	m := &Matrix{maxInputs: maxInputs, maxOutputs: maxOutputs, maxHist: 256}
	empty := []Connection{}
	m.connections.Store(&empty)
	return m
}

// Snapshot returns the connections visible for the current cycle. Safe to
// call from the audio thread: a single atomic load, no allocation.
func (m *Matrix) Snapshot() []Connection {
	return *m.connections.Load()
}

func (m *Matrix) record(ev ChangeEvent) {
	m.historyMu.Lock()
	m.history = append(m.history, ev)
	if len(m.history) > m.maxHist {
		m.history = m.history[len(m.history)-m.maxHist:]
	}
	m.historyMu.Unlock()
}

// publish copies the current snapshot, applies mutate, and atomically swaps
// in the result. mutate must not retain the slice it's given.
func (m *Matrix) publish(mutate func(conns []Connection) []Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := *m.connections.Load()
	next := mutate(append([]Connection(nil), cur...))
	m.connections.Store(&next)
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 2 {
		return 2
	}
	return g
}

// Add inserts a new connection, rejecting it silently (no-op) if doing so
// would exceed the matrix's I x O capacity.
func (m *Matrix) Add(c Connection) {
	c.Gain = clampGain(c.Gain)
	added := false
	m.publish(func(conns []Connection) []Connection {
		if len(conns) >= m.maxInputs*m.maxOutputs {
			return conns
		}
		added = true
		return append(conns, c)
	})
	if added {
		m.record(ChangeEvent{Kind: ChangeAdded, SourceID: c.SourceID, DestID: c.DestID, Gain: c.Gain})
	}
}

// Remove drops the connection between source and dest, if present.
func (m *Matrix) Remove(sourceID, destID string) {
	m.publish(func(conns []Connection) []Connection {
		out := conns[:0]
		for _, c := range conns {
			if c.SourceID == sourceID && c.DestID == destID {
				continue
			}
			out = append(out, c)
		}
		return out
	})
	m.record(ChangeEvent{Kind: ChangeRemoved, SourceID: sourceID, DestID: destID})
}

// SetGain updates the gain of the connection between source and dest,
// clamped to [0,2].
func (m *Matrix) SetGain(sourceID, destID string, gain float64) {
	gain = clampGain(gain)
	m.publish(func(conns []Connection) []Connection {
		for i := range conns {
			if conns[i].SourceID == sourceID && conns[i].DestID == destID {
				conns[i].Gain = gain
			}
		}
		return conns
	})
	m.record(ChangeEvent{Kind: ChangeGain, SourceID: sourceID, DestID: destID, Gain: gain})
}

// SetActive toggles a connection's participation in the next audio cycle.
// Never applies mid-buffer: readers only ever observe the snapshot acquired
// at the start of their current cycle.
func (m *Matrix) SetActive(sourceID, destID string, active bool) {
	m.publish(func(conns []Connection) []Connection {
		for i := range conns {
			if conns[i].SourceID == sourceID && conns[i].DestID == destID {
				conns[i].Active = active
			}
		}
		return conns
	})
	m.record(ChangeEvent{Kind: ChangeToggled, SourceID: sourceID, DestID: destID})
}

// ClearAll removes every connection atomically from the reader's
// perspective: a single pointer swap to an empty slice.
func (m *Matrix) ClearAll() {
	m.mu.Lock()
	empty := []Connection{}
	m.connections.Store(&empty)
	m.mu.Unlock()
	m.record(ChangeEvent{Kind: ChangeRemoved})
}

// Utilization is active_connections / (max_inputs * max_outputs).
func (m *Matrix) Utilization() float64 {
	conns := m.Snapshot()
	var active int
	for _, c := range conns {
		if c.Active {
			active++
		}
	}
	capacity := m.maxInputs * m.maxOutputs
	if capacity == 0 {
		return 0
	}
	return float64(active) / float64(capacity)
}

// SumGainInto returns the sum of active connection gains feeding destID,
// used to enforce the P4 invariant (sum of active gains into any input
// after clamp must not exceed mixerMaxGain at the call site).
func (m *Matrix) SumGainInto(destID string) float64 {
	var sum float64
	for _, c := range m.Snapshot() {
		if c.Active && c.DestID == destID {
			sum += c.Gain
		}
	}
	return sum
}

// History returns a copy of the bounded change-event ring.
func (m *Matrix) History() []ChangeEvent {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	return append([]ChangeEvent(nil), m.history...)
}
