// Package dsp implements the buffer-level transforms the audio graph applies
// on every cycle: gain, mixing, fades, level metering and soft clipping.
// Every function here operates on caller-provided interleaved float32 slices
// and performs no allocation, so it is safe to call from the audio thread.
package dsp

import "math"

// ApplyGain scales every sample in buf by g, in place.
func ApplyGain(buf []float32, g float32) {
	for i := range buf {
		buf[i] *= g
	}
}

// Mix writes g1*in1 + g2*in2 into out. out may alias in1 or in2.
// in1, in2 and out must have equal length.
func Mix(in1, in2, out []float32, g1, g2 float32) {
	n := len(out)
	if len(in1) < n {
		n = len(in1)
	}
	if len(in2) < n {
		n = len(in2)
	}
	for i := 0; i < n; i++ {
		out[i] = in1[i]*g1 + in2[i]*g2
	}
}

// ApplyFade ramps the gain applied to buf linearly from gStart to gEnd
// across the whole buffer, sample by sample.
func ApplyFade(buf []float32, gStart, gEnd float32) {
	n := len(buf)
	if n == 0 {
		return
	}
	if n == 1 {
		buf[0] *= gEnd
		return
	}
	step := (gEnd - gStart) / float32(n-1)
	g := gStart
	for i := range buf {
		buf[i] *= g
		g += step
	}
}

// RMS returns the root-mean-square level of buf.
func RMS(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// Peak returns the largest absolute sample value in buf.
func Peak(buf []float32) float64 {
	var peak float64
	for _, s := range buf {
		a := math.Abs(float64(s))
		if a > peak {
			peak = a
		}
	}
	return peak
}

// SoftClip applies x - x^3/3 soft saturation, scaled so that the output
// never exceeds threshold in magnitude. Samples are normalized by threshold
// before the cubic and rescaled afterward, and the constant-input bound
// (threshold * 2/3, the extremum of x - x^3/3 on [-1,1]) is used to keep
// |out| <= threshold for any finite input.
func SoftClip(buf []float32, threshold float32) {
	if threshold <= 0 {
		threshold = 1
	}
	const extremum = 2.0 / 3.0 // max|x - x^3/3| on x in [-1,1], at x = +-1
	for i, s := range buf {
		x := float64(s) / float64(threshold)
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		y := x - (x*x*x)/3
		buf[i] = float32(y/extremum) * threshold
	}
}
