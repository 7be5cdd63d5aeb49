package dsp

import (
	"math"
	"testing"
)

func TestApplyGain(t *testing.T) {
	buf := []float32{1, 2, -2}
	ApplyGain(buf, 0.5)
	want := []float32{0.5, 1, -1}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestMix(t *testing.T) {
	in1 := []float32{1, 1, 1}
	in2 := []float32{2, 2, 2}
	out := make([]float32, 3)
	Mix(in1, in2, out, 0.5, 0.25)
	for i, v := range out {
		if math.Abs(float64(v)-1.0) > 1e-6 {
			t.Fatalf("out[%d] = %v, want 1.0", i, v)
		}
	}
}

func TestApplyFade(t *testing.T) {
	buf := []float32{1, 1, 1, 1, 1}
	ApplyFade(buf, 0, 1)
	if buf[0] != 0 {
		t.Fatalf("first sample = %v, want 0", buf[0])
	}
	if buf[len(buf)-1] != 1 {
		t.Fatalf("last sample = %v, want 1", buf[len(buf)-1])
	}
	for i := 1; i < len(buf); i++ {
		if buf[i] < buf[i-1] {
			t.Fatalf("fade not monotone at %d", i)
		}
	}
}

func TestRMSAndPeak(t *testing.T) {
	buf := []float32{1, -1, 1, -1}
	if got := RMS(buf); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("RMS = %v, want 1.0", got)
	}
	if got := Peak(buf); got != 1.0 {
		t.Fatalf("Peak = %v, want 1.0", got)
	}
}

func TestSoftClipBounded(t *testing.T) {
	buf := []float32{0, 0.5, 1, 2, 10, -10}
	SoftClip(buf, 1.0)
	for i, v := range buf {
		if math.Abs(float64(v)) > 1.0+1e-6 {
			t.Fatalf("buf[%d] = %v exceeds threshold", i, v)
		}
	}
}

func TestSoftClipFiniteInFiniteOut(t *testing.T) {
	buf := make([]float32, 1000)
	for i := range buf {
		buf[i] = float32(i%200) - 100
	}
	SoftClip(buf, 0.8)
	for i, v := range buf {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("buf[%d] = %v not finite", i, v)
		}
	}
}

func TestApplyGainNoAllocation(t *testing.T) {
	buf := make([]float32, 512)
	allocs := testing.AllocsPerRun(10, func() {
		ApplyGain(buf, 0.9)
	})
	if allocs > 0 {
		t.Fatalf("ApplyGain allocated %v times per run, want 0", allocs)
	}
}
