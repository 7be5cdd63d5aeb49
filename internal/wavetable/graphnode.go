package wavetable

import "github.com/cbegin/tonecore/internal/graph"

// GraphNode adapts a Machine into a graph.Node source, the same shape
// internal/engine uses for FM TONE tracks, so a wavetable track can be
// wired into the audio graph via Engine.RegisterTrackMachine.
type GraphNode struct {
	id       string
	channels int
	machine  *Machine
}

// NewGraphNode wraps machine as a named source node.
func NewGraphNode(id string, channels int, machine *Machine) *GraphNode {
	return &GraphNode{id: id, channels: channels, machine: machine}
}

func (n *GraphNode) ID() string                   { return n.id }
func (n *GraphNode) Kind() graph.Kind              { return graph.KindSource }
func (n *GraphNode) MaxInputs() int                { return 0 }
func (n *GraphNode) MaxOutputs() int               { return 1 }
func (n *GraphNode) IsRealtimeSafe() bool          { return true }
func (n *GraphNode) Prepare(graph.Format) error    { return nil }

func (n *GraphNode) Process(_ []float32, frames int) []float32 {
	return n.machine.Process(frames, n.channels)
}
