package timing

import "testing"

// TestS4TempoPrecision is the literal S4 scenario: sr=44100, bpm=120,
// steps_per_beat=4 -> samples_per_beat=22050, samples_per_step=5512.5,
// 8 step callbacks over one second.
func TestS4TempoPrecision(t *testing.T) {
	s := New(44100)
	s.SetBPM(120)
	s.SetStepsPerBeat(4)
	s.SetTransport(TransportPlaying)

	snap := s.Snapshot()
	if snap.SamplesPerBeat != 22050 {
		t.Fatalf("SamplesPerBeat = %v, want 22050", snap.SamplesPerBeat)
	}
	if snap.SamplesPerStep != 5512.5 {
		t.Fatalf("SamplesPerStep = %v, want 5512.5", snap.SamplesPerStep)
	}

	var steps int
	s.OnStep(func(step int64, offset int) { steps++ })
	s.ProcessBuffer(44100)

	if steps < 7 || steps > 9 {
		t.Fatalf("steps = %d, want 8 (+-1)", steps)
	}
}

// TestP8StepCallbackCount checks the P8 invariant across several spans.
func TestP8StepCallbackCount(t *testing.T) {
	cases := []struct {
		bpm          float64
		stepsPerBeat int
		sampleRate   int
		span         int
	}{
		{120, 4, 44100, 44100},
		{90, 4, 48000, 48000 * 2},
		{140, 3, 44100, 44100 / 2},
	}
	for _, c := range cases {
		s := New(c.sampleRate)
		s.SetBPM(c.bpm)
		s.SetStepsPerBeat(c.stepsPerBeat)
		s.SetTransport(TransportPlaying)
		var steps int
		s.OnStep(func(step int64, offset int) { steps++ })
		s.ProcessBuffer(c.span)

		expected := int(float64(c.span) * c.bpm * float64(c.stepsPerBeat) / (60 * float64(c.sampleRate)))
		if diff := steps - expected; diff < -1 || diff > 1 {
			t.Fatalf("bpm=%v spb=%v: steps=%d, want %d +-1", c.bpm, c.stepsPerBeat, steps, expected)
		}
	}
}

func TestBPMClamped(t *testing.T) {
	s := New(44100)
	s.SetBPM(1000)
	if got := s.Snapshot().BPM; got != 200 {
		t.Fatalf("BPM = %v, want clamped to 200", got)
	}
	s.SetBPM(1)
	if got := s.Snapshot().BPM; got != 20 {
		t.Fatalf("BPM = %v, want clamped to 20", got)
	}
}

func TestStoppedTransportDoesNotAdvance(t *testing.T) {
	s := New(44100)
	s.ProcessBuffer(1000)
	if got := s.Snapshot().CurrentSampleTime; got != 0 {
		t.Fatalf("CurrentSampleTime = %d, want 0 while stopped", got)
	}
}
