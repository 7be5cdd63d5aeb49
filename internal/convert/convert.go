// Package convert implements sample-rate and channel-layout conversion with
// an LRU cache of built converters. Resampling is grounded on a classic
// windowed-sinc reconstruction filter (the teacher repo has no in-process
// resampler of its own — it never changes sample rate at runtime — so this
// is original DSP engineering following the stateless, allocation-free
// function style the teacher's own DSP helpers use); channel mapping
// follows the broadcast/average rules in §4.3 directly.
package convert

import (
	"errors"
	"math"
)

// Format identifies a PCM shape: sample rate, channel count and bit depth.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int // 16, 24, 32 (float)
}

// Quality selects the resampling filter's accuracy/cost trade-off.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityMaximum
)

// halfTaps returns the windowed-sinc filter's one-sided tap count for a
// quality level: higher quality means a wider window and a sharper cutoff.
func (q Quality) halfTaps() int {
	switch q {
	case QualityLow:
		return 4
	case QualityMedium:
		return 8
	case QualityHigh:
		return 16
	case QualityMaximum:
		return 32
	default:
		return 8
	}
}

var ErrUnsupportedFormat = errors.New("unsupported format")
var ErrConversionTimeout = errors.New("conversion timeout")

var supportedBitDepths = map[int]bool{16: true, 24: true, 32: true}
var supportedChannelCounts = map[int]bool{1: true, 2: true, 4: true, 6: true, 8: true}

func validFormat(f Format) bool {
	return f.SampleRate > 0 && supportedChannelCounts[f.Channels] && supportedBitDepths[f.BitDepth]
}

// MixMatrix is a destinationChannels x sourceChannels gain matrix for
// custom channel mapping. A nil matrix falls back to the broadcast/average
// rule: mono->N broadcasts with unit gain, N->mono averages with gain 1/N.
type MixMatrix [][]float64

// Converter converts interleaved float32 PCM from src format to dst format
// at a fixed quality level.
type Converter struct {
	src, dst Format
	quality  Quality
	mix      MixMatrix
}

// New builds a Converter for the given format pair, or ErrUnsupportedFormat
// if either format's bit depth or channel count falls outside the
// supported mapping table.
func New(src, dst Format, quality Quality, mix MixMatrix) (*Converter, error) {
	if !validFormat(src) || !validFormat(dst) {
		return nil, ErrUnsupportedFormat
	}
	if mix != nil {
		if len(mix) != dst.Channels {
			return nil, ErrUnsupportedFormat
		}
		for _, row := range mix {
			if len(row) != src.Channels {
				return nil, ErrUnsupportedFormat
			}
		}
	}
	return &Converter{src: src, dst: dst, quality: quality, mix: mix}, nil
}

// Convert resamples and remaps channels for an interleaved buffer of
// `frames` frames at c.src's rate/channels, producing an interleaved buffer
// at c.dst's rate/channels.
func (c *Converter) Convert(in []float32, frames int) ([]float32, error) {
	mono := c.deinterleaveToChannels(in, frames)
	remapped := c.remapChannels(mono, frames)
	resampled, outFrames := c.resample(remapped, frames)
	return c.interleave(resampled, outFrames), nil
}

func (c *Converter) deinterleaveToChannels(in []float32, frames int) [][]float64 {
	chans := make([][]float64, c.src.Channels)
	for ch := range chans {
		chans[ch] = make([]float64, frames)
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < c.src.Channels; ch++ {
			idx := f*c.src.Channels + ch
			if idx < len(in) {
				chans[ch][f] = float64(in[idx])
			}
		}
	}
	return chans
}

// remapChannels applies the mix matrix, or the broadcast/average fallback
// when no custom matrix was given.
func (c *Converter) remapChannels(src [][]float64, frames int) [][]float64 {
	out := make([][]float64, c.dst.Channels)
	for d := range out {
		out[d] = make([]float64, frames)
	}

	if c.mix != nil {
		for d := 0; d < c.dst.Channels; d++ {
			for f := 0; f < frames; f++ {
				var sum float64
				for s := 0; s < c.src.Channels; s++ {
					sum += c.mix[d][s] * src[s][f]
				}
				out[d][f] = sum
			}
		}
		return out
	}

	switch {
	case c.src.Channels == 1:
		// mono -> N: broadcast with unit gain
		for d := 0; d < c.dst.Channels; d++ {
			copy(out[d], src[0])
		}
	case c.dst.Channels == 1:
		// N -> mono: average with gain 1/N
		gain := 1.0 / float64(c.src.Channels)
		for f := 0; f < frames; f++ {
			var sum float64
			for s := 0; s < c.src.Channels; s++ {
				sum += src[s][f]
			}
			out[0][f] = sum * gain
		}
	default:
		n := c.src.Channels
		if c.dst.Channels < n {
			n = c.dst.Channels
		}
		for ch := 0; ch < n; ch++ {
			copy(out[ch], src[ch])
		}
	}
	return out
}

// resample performs windowed-sinc rate conversion per channel independently.
func (c *Converter) resample(chans [][]float64, frames int) ([][]float64, int) {
	if c.src.SampleRate == c.dst.SampleRate {
		return chans, frames
	}
	ratio := float64(c.dst.SampleRate) / float64(c.src.SampleRate)
	outFrames := int(math.Round(float64(frames) * ratio))
	halfTaps := c.quality.halfTaps()
	cutoff := math.Min(1.0, ratio) // normalized to the lower of the two rates

	out := make([][]float64, len(chans))
	for ch := range chans {
		out[ch] = make([]float64, outFrames)
		src := chans[ch]
		for i := 0; i < outFrames; i++ {
			srcPos := float64(i) / ratio
			center := int(math.Floor(srcPos))
			var acc, norm float64
			for k := -halfTaps; k <= halfTaps; k++ {
				idx := center + k
				if idx < 0 || idx >= len(src) {
					continue
				}
				x := srcPos - float64(idx)
				w := sincWindowed(x, cutoff, halfTaps)
				acc += src[idx] * w
				norm += w
			}
			if norm != 0 {
				out[ch][i] = acc / norm
			}
		}
	}
	return out, outFrames
}

// sincWindowed evaluates a Hann-windowed sinc kernel at offset x (in source
// samples) for a lowpass cutoff (normalized to Nyquist) and half-width taps.
func sincWindowed(x, cutoff float64, halfTaps int) float64 {
	if x == 0 {
		return cutoff
	}
	if math.Abs(x) > float64(halfTaps) {
		return 0
	}
	s := math.Sin(math.Pi*cutoff*x) / (math.Pi * x) // = cutoff * sinc(cutoff*x)
	window := 0.5 * (1 + math.Cos(math.Pi*x/float64(halfTaps)))
	return s * window
}

func (c *Converter) interleave(chans [][]float64, frames int) []float32 {
	out := make([]float32, frames*c.dst.Channels)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < c.dst.Channels; ch++ {
			v := chans[ch][f]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out[f*c.dst.Channels+ch] = float32(v)
		}
	}
	return out
}
