package engine

import (
	"github.com/cbegin/tonecore/internal/fm"
	"github.com/cbegin/tonecore/internal/graph"
)

// trackNode adapts an fm.Machine into a graph.Node source: its Process
// output is whatever the voice machine currently renders, ignoring the
// graph's summed input (a voice machine has no upstream audio input).
type trackNode struct {
	id       string
	channels int
	machine  *fm.Machine
}

func (n *trackNode) ID() string           { return n.id }
func (n *trackNode) Kind() graph.Kind      { return graph.KindSource }
func (n *trackNode) MaxInputs() int        { return 0 }
func (n *trackNode) MaxOutputs() int       { return 1 }
func (n *trackNode) IsRealtimeSafe() bool  { return true }
func (n *trackNode) Prepare(graph.Format) error { return nil }

func (n *trackNode) Process(_ []float32, frames int) []float32 {
	return n.machine.Process(frames, n.channels)
}

// passthroughOutputNode is the single master output sink: it forwards its
// summed input unchanged, matching §4.4's KindOutput role ("the graph
// collects every output node's buffer into the final mix").
type passthroughOutputNode struct {
	id       string
	channels int

	// silence is reused when the node has no active upstream connection,
	// so even that edge case allocates nothing in steady state.
	silence []float32
}

func (n *passthroughOutputNode) ID() string           { return n.id }
func (n *passthroughOutputNode) Kind() graph.Kind      { return graph.KindOutput }
func (n *passthroughOutputNode) MaxInputs() int        { return 64 }
func (n *passthroughOutputNode) MaxOutputs() int       { return 1 }
func (n *passthroughOutputNode) IsRealtimeSafe() bool  { return true }
func (n *passthroughOutputNode) Prepare(graph.Format) error { return nil }

func (n *passthroughOutputNode) Process(input []float32, frames int) []float32 {
	if input == nil {
		size := frames * n.channels
		if cap(n.silence) < size {
			n.silence = make([]float32, size)
		}
		n.silence = n.silence[:size]
		for i := range n.silence {
			n.silence[i] = 0
		}
		return n.silence
	}
	return input
}
