package effects

import "github.com/cbegin/tonecore/internal/graph"

// GraphNode adapts a Chain into the audio graph's Node interface, serving
// as the FX machine integration contract the spec calls for: a
// KindProcessor node that applies the chain to its summed stereo input.
// Effector implementations here are not individually real-time-audited
// (the delay/reverb lines allocate at construction, not per-Process call).
// GraphNode always reports IsRealtimeSafe() true; it does not inspect the
// effects in its chain.
type GraphNode struct {
	id    string
	chain *Chain

	// silence is reused when the node has no active upstream connection.
	silence []float32
}

// NewGraphNode wraps chain as a named stereo FX processor node.
func NewGraphNode(id string, chain *Chain) *GraphNode {
	return &GraphNode{id: id, chain: chain}
}

const maxFanIn = 64

func (n *GraphNode) ID() string                 { return n.id }
func (n *GraphNode) Kind() graph.Kind           { return graph.KindProcessor }
func (n *GraphNode) MaxInputs() int             { return maxFanIn }
func (n *GraphNode) MaxOutputs() int            { return 1 }
func (n *GraphNode) IsRealtimeSafe() bool       { return true }
func (n *GraphNode) Prepare(graph.Format) error { return nil }

// Process applies the chain to each stereo frame of input in place and
// returns the same buffer the graph handed it (the graph owns this node's
// input buffer for the rest of the cycle only, so mutating and returning it
// directly is safe and avoids a per-cycle copy). If the graph handed this
// node no input (no active upstream connection), it returns a reused
// frames*2 silent buffer.
func (n *GraphNode) Process(input []float32, frames int) []float32 {
	if input == nil {
		size := frames * 2
		if cap(n.silence) < size {
			n.silence = make([]float32, size)
		}
		n.silence = n.silence[:size]
		for i := range n.silence {
			n.silence[i] = 0
		}
		return n.silence
	}
	for i := 0; i+1 < len(input); i += 2 {
		input[i], input[i+1] = n.chain.Process(input[i], input[i+1])
	}
	return input
}
