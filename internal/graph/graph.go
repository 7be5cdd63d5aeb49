// Package graph implements the real-time audio graph: nodes, connections,
// topological scheduling and RCU-style snapshot publishing. It generalizes
// the fixed sequencer -> effects -> master EQ -> output chain used
// elsewhere in this codebase's reference lineage into an arbitrary DAG of
// named nodes, matching §4.4.
package graph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cbegin/tonecore/internal/dsp"
)

// Kind classifies a node's role in the graph.
type Kind int

const (
	KindSource Kind = iota
	KindProcessor
	KindMixer
	KindOutput
)

// Format describes the interleaved PCM shape flowing through a connection.
type Format struct {
	SampleRate int
	Channels   int
}

// Node is a single vertex in the audio graph.
type Node interface {
	ID() string
	Kind() Kind
	MaxInputs() int
	MaxOutputs() int
	IsRealtimeSafe() bool
	// Prepare assigns the node's input/output format; called once before
	// the first Process call after the graph topology changes.
	Prepare(format Format) error
	// Process renders frames of output given the summed input buffer
	// (nil for a pure source node) and returns an interleaved buffer of
	// frames*Format.Channels samples. Must not allocate on nodes marked
	// IsRealtimeSafe in steady state after Prepare.
	Process(input []float32, frames int) []float32
}

// Connection is a directed edge between two nodes' ports.
type Connection struct {
	SourceID               string
	SourceOutputIndex      int
	DestID                 string
	DestInputIndex         int
	Format                 Format
	Gain                   float64 // clamped to [0,2]
	Active                 bool
	LatencyCompensationSamples int
}

var (
	ErrNonRealtimeSafe       = errors.New("non-realtime-safe node")
	ErrDuplicateConnection   = errors.New("destination input already connected")
	ErrCycle                 = errors.New("graph contains a cycle")
	ErrDanglingConnection    = errors.New("connection references an unknown node")
	ErrIndexOutOfRange       = errors.New("connection index out of range")
	ErrFormatMismatch        = errors.New("connection format mismatch")
	ErrNoSourceOrOutput      = errors.New("graph needs at least one source and one output")
	ErrUnreachableOutput     = errors.New("not every source reaches an output")
	ErrNodeNotFound          = errors.New("node not found")
)

// snapshot is the immutable, RCU-published view of the graph topology a
// Process cycle reads: a topological order and each node's fan-in list.
type snapshot struct {
	order  []string
	fanIn  map[string][]Connection
	nodes  map[string]Node
	bypass map[string]bool
}

// Graph is a directed acyclic graph of real-time audio nodes.
type Graph struct {
	lockFreeOnly bool

	nodes       map[string]Node
	connections []Connection

	current atomic.Pointer[snapshot]

	// Scratch state reused across Process calls so steady-state cycles
	// never allocate: outputs/inputBufs are keyed by node id and only
	// re-created (in Prepare, off the audio thread) when the topology or
	// buffer size changes; mixBuf and scaledBuf are single shared buffers
	// reused serially since Process runs on one thread at a time.
	outputs   map[string][]float32
	inputBufs map[string][]float32
	mixBuf    []float32
	scaledBuf []float32
	bufFrames int
	bufChans  int
}

// New creates an empty Graph. When lockFreeOnly is true, AddNode rejects
// any node whose IsRealtimeSafe() is false, per §4.4.
func New(lockFreeOnly bool) *Graph {
	g := &Graph{lockFreeOnly: lockFreeOnly, nodes: make(map[string]Node)}
	g.current.Store(&snapshot{nodes: map[string]Node{}})
	return g
}

// AddNode registers a node. Only the mutator path (never the audio thread)
// calls this.
func (g *Graph) AddNode(n Node) error {
	if g.lockFreeOnly && !n.IsRealtimeSafe() {
		return fmt.Errorf("%w: %s", ErrNonRealtimeSafe, n.ID())
	}
	g.nodes[n.ID()] = n
	return nil
}

// RemoveNode unregisters a node and any connections touching it.
func (g *Graph) RemoveNode(id string) {
	delete(g.nodes, id)
	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.SourceID != id && c.DestID != id {
			kept = append(kept, c)
		}
	}
	g.connections = kept
}

// Connect adds a directed connection between two nodes' ports. Fails if the
// destination input is already occupied (no two connections may share a
// (DestID, DestInputIndex)).
func (g *Graph) Connect(c Connection) error {
	src, ok := g.nodes[c.SourceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDanglingConnection, c.SourceID)
	}
	dst, ok := g.nodes[c.DestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDanglingConnection, c.DestID)
	}
	if c.SourceOutputIndex < 0 || c.SourceOutputIndex >= max(src.MaxOutputs(), 1) {
		return ErrIndexOutOfRange
	}
	if c.DestInputIndex < 0 || c.DestInputIndex >= max(dst.MaxInputs(), 1) {
		return ErrIndexOutOfRange
	}
	for _, existing := range g.connections {
		if existing.DestID == c.DestID && existing.DestInputIndex == c.DestInputIndex {
			return ErrDuplicateConnection
		}
	}
	c.Gain = clampGain(c.Gain)
	g.connections = append(g.connections, c)
	return nil
}

// Disconnect removes the connection feeding the given destination input.
func (g *Graph) Disconnect(destID string, destInputIndex int) {
	kept := g.connections[:0]
	for _, c := range g.connections {
		if !(c.DestID == destID && c.DestInputIndex == destInputIndex) {
			kept = append(kept, c)
		}
	}
	g.connections = kept
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Validate checks the structural invariants from §4.4 over active
// connections: at least one source and output, no cycles, every source
// reaches an output, and every output is reached from a source. Connection
// indices are checked by Connect, not here.
func (g *Graph) Validate() error {
	var hasSource, hasOutput bool
	for _, n := range g.nodes {
		if n.Kind() == KindSource {
			hasSource = true
		}
		if n.Kind() == KindOutput {
			hasOutput = true
		}
	}
	if !hasSource || !hasOutput {
		return ErrNoSourceOrOutput
	}

	adj := make(map[string][]string)
	for _, c := range g.connections {
		if !c.Active {
			continue
		}
		adj[c.SourceID] = append(adj[c.SourceID], c.DestID)
	}

	if hasCycle(g.nodes, adj) {
		return ErrCycle
	}

	reachable := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, next := range adj[id] {
			visit(next)
		}
	}
	for id, n := range g.nodes {
		if n.Kind() == KindSource {
			visit(id)
		}
	}
	for id, n := range g.nodes {
		if n.Kind() == KindOutput && !reachable[id] {
			return ErrUnreachableOutput
		}
	}

	var reachesOutput func(id string, seen map[string]bool) bool
	reachesOutput = func(id string, seen map[string]bool) bool {
		if n, ok := g.nodes[id]; ok && n.Kind() == KindOutput {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		for _, next := range adj[id] {
			if reachesOutput(next, seen) {
				return true
			}
		}
		return false
	}
	for id, n := range g.nodes {
		if n.Kind() == KindSource && !reachesOutput(id, map[string]bool{}) {
			return ErrUnreachableOutput
		}
	}
	return nil
}

func hasCycle(nodes map[string]Node, adj map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if dfs(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range nodes {
		if color[id] == white {
			if dfs(id) {
				return true
			}
		}
	}
	return false
}

// Prepare computes a topological order and per-node fan-in cache, then
// publishes it as the new snapshot readers will pick up on their next
// cycle. Must be called after any topology mutation and before Process.
func (g *Graph) Prepare() error {
	if err := g.Validate(); err != nil {
		return err
	}

	adj := make(map[string][]string)
	indegree := make(map[string]int, len(g.nodes))
	fanIn := make(map[string][]Connection)
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, c := range g.connections {
		if !c.Active {
			continue
		}
		adj[c.SourceID] = append(adj[c.SourceID], c.DestID)
		indegree[c.DestID]++
		fanIn[c.DestID] = append(fanIn[c.DestID], c)
	}

	var queue []string
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	nodesCopy := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		nodesCopy[id] = n
		if err := n.Prepare(Format{}); err != nil {
			return err
		}
	}

	snap := &snapshot{order: order, fanIn: fanIn, nodes: nodesCopy}
	g.current.Store(snap)

	// Rebuild the reusable scratch maps so Process never allocates in
	// steady state: new entries for the current node set, sized for the
	// buffer shape Process will be called with next.
	g.outputs = make(map[string][]float32, len(nodesCopy))
	g.inputBufs = make(map[string][]float32, len(nodesCopy))
	for id := range nodesCopy {
		g.inputBufs[id] = nil
	}
	g.bufFrames, g.bufChans = 0, 0
	return nil
}

// ensureBufSize (re)allocates Process's reusable buffers on the first call
// after Prepare, or if the host ever calls Process with a different
// frames/channels than before. Steady-state repeated calls with the same
// shape hit none of these branches and allocate nothing.
func (g *Graph) ensureBufSize(frames, channels int) {
	if g.bufFrames == frames && g.bufChans == channels {
		return
	}
	size := frames * channels
	g.mixBuf = make([]float32, size)
	g.scaledBuf = make([]float32, size)
	for id := range g.inputBufs {
		g.inputBufs[id] = make([]float32, size)
	}
	g.bufFrames, g.bufChans = frames, channels
}

// Process runs one audio cycle: iterates nodes in topological order,
// summing fan-in buffers via the DSP optimizer into a per-node input
// buffer, invoking each node's Process, and returns the interleaved output
// of every KindOutput node, summed.
func (g *Graph) Process(frames, channels int) []float32 {
	snap := g.current.Load()
	g.ensureBufSize(frames, channels)

	mix := g.mixBuf
	for i := range mix {
		mix[i] = 0
	}

	for _, id := range snap.order {
		n := snap.nodes[id]
		var input []float32
		fanIn := snap.fanIn[id]
		if len(fanIn) > 0 {
			input = g.inputBufs[id]
			for i := range input {
				input[i] = 0
			}
			scaled := g.scaledBuf
			for _, c := range fanIn {
				srcOut := g.outputs[c.SourceID]
				if srcOut == nil {
					continue
				}
				for i := range scaled {
					scaled[i] = 0
				}
				copyLen := len(scaled)
				if len(srcOut) < copyLen {
					copyLen = len(srcOut)
				}
				copy(scaled[:copyLen], srcOut[:copyLen])
				dsp.ApplyGain(scaled[:copyLen], float32(c.Gain))
				dsp.Mix(input, scaled, input, 1, 1)
			}
		}
		out := n.Process(input, frames)
		g.outputs[id] = out
		if n.Kind() == KindOutput {
			dsp.Mix(mix, out, mix, 1, 1)
		}
	}
	return mix
}

// Node looks up a registered node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}
