package convert

import (
	"math"
	"testing"
	"time"
)

// TestS3MonoToStereo is the literal S3 scenario: constant 0.5 mono input,
// every output sample equals 0.5 on both channels.
func TestS3MonoToStereo(t *testing.T) {
	src := Format{SampleRate: 44100, Channels: 1, BitDepth: 32}
	dst := Format{SampleRate: 44100, Channels: 2, BitDepth: 32}
	c, err := New(src, dst, QualityHigh, nil)
	if err != nil {
		t.Fatal(err)
	}
	frames := 16
	in := make([]float32, frames)
	for i := range in {
		in[i] = 0.5
	}
	out, err := c.Convert(in, frames)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != frames*2 {
		t.Fatalf("len(out) = %d, want %d", len(out), frames*2)
	}
	for i, v := range out {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Fatalf("out[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestMonoAverageFromStereo(t *testing.T) {
	src := Format{SampleRate: 44100, Channels: 2, BitDepth: 32}
	dst := Format{SampleRate: 44100, Channels: 1, BitDepth: 32}
	c, err := New(src, dst, QualityHigh, nil)
	if err != nil {
		t.Fatal(err)
	}
	in := []float32{1, 0, 1, 0}
	out, err := c.Convert(in, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range out {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Fatalf("got %v, want 0.5", v)
		}
	}
}

// TestP5RoundTripPreservesRMS checks a pure tone's RMS survives a
// src->dst->src round trip at high quality within 0.5dB.
func TestP5RoundTripPreservesRMS(t *testing.T) {
	sr1 := Format{SampleRate: 44100, Channels: 1, BitDepth: 32}
	sr2 := Format{SampleRate: 48000, Channels: 1, BitDepth: 32}

	toB, err := New(sr1, sr2, QualityHigh, nil)
	if err != nil {
		t.Fatal(err)
	}
	back, err := New(sr2, sr1, QualityHigh, nil)
	if err != nil {
		t.Fatal(err)
	}

	frames := 2048
	freq := 1000.0
	in := make([]float32, frames)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sr1.SampleRate)))
	}

	mid, err := toB.Convert(in, frames)
	if err != nil {
		t.Fatal(err)
	}
	final, err := back.Convert(mid, len(mid))
	if err != nil {
		t.Fatal(err)
	}

	rmsIn := rms(in)
	// Ignore filter ramp-up/down edges, compare the interior.
	edge := 64
	lo, hi := edge, len(final)-edge
	if hi <= lo {
		hi = len(final)
	}
	rmsOut := rms(final[lo:hi])

	dbDiff := 20 * math.Log10(rmsOut/rmsIn)
	if math.Abs(dbDiff) > 0.5 {
		t.Fatalf("RMS drifted by %v dB, want within 0.5dB (in=%v out=%v)", dbDiff, rmsIn, rmsOut)
	}
}

func rms(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

func TestUnsupportedFormatRejected(t *testing.T) {
	bad := Format{SampleRate: 44100, Channels: 3, BitDepth: 32}
	good := Format{SampleRate: 44100, Channels: 2, BitDepth: 32}
	if _, err := New(bad, good, QualityHigh, nil); err != ErrUnsupportedFormat {
		t.Fatalf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	c := NewCache(2, time.Minute)
	f := func(rate int) Format { return Format{SampleRate: rate, Channels: 2, BitDepth: 32} }

	c.Get(f(44100), f(48000), QualityLow, nil)
	c.Get(f(44100), f(88200), QualityLow, nil)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	c.Get(f(44100), f(96000), QualityLow, nil) // evicts the LRU entry
	if c.Len() != 2 {
		t.Fatalf("Len after eviction = %d, want 2 (bounded)", c.Len())
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(4, time.Millisecond)
	fake := time.Now()
	c.now = func() time.Time { return fake }
	f := func(rate int) Format { return Format{SampleRate: rate, Channels: 2, BitDepth: 32} }

	conv1, err := c.Get(f(44100), f(48000), QualityLow, nil)
	if err != nil {
		t.Fatal(err)
	}
	fake = fake.Add(time.Second)
	conv2, err := c.Get(f(44100), f(48000), QualityLow, nil)
	if err != nil {
		t.Fatal(err)
	}
	if conv1 == conv2 {
		t.Fatalf("expected a rebuilt converter after TTL expiry")
	}
}
