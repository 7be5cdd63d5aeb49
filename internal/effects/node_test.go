package effects

import "testing"

type passthroughEffector struct{ resetCalled bool }

func (p *passthroughEffector) Process(l, r float32) (float32, float32) { return l * 0.5, r * 0.5 }
func (p *passthroughEffector) Reset()                                  { p.resetCalled = true }

func TestGraphNodeAppliesChainToInterleavedBuffer(t *testing.T) {
	chain := NewChain(&passthroughEffector{})
	node := NewGraphNode("fx-0", chain)
	in := []float32{1, 1, 0.5, 0.5}
	out := node.Process(in, 2)
	want := []float32{0.5, 0.5, 0.25, 0.25}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestGraphNodeNilInputYieldsSilence(t *testing.T) {
	node := NewGraphNode("fx-0", NewChain())
	out := node.Process(nil, 4)
	for _, s := range out {
		if s != 0 {
			t.Fatalf("expected silence, got %v", out)
		}
	}
}
