package fm

import (
	"math"
	"testing"
)

// TestS5Algorithm1CollapsesToSinusoid is the literal S5 scenario: algorithm
// 1, all mod indices 0, NoteOn 440Hz (note 69), output must match an
// analytic 440Hz sinusoid within 0.1% RMS error over 1024 samples at
// sr=48000.
func TestS5Algorithm1CollapsesToSinusoid(t *testing.T) {
	const sampleRate = 48000.0
	m := NewMachine(sampleRate)
	m.SetParam("algorithm", 1)
	for prefix := range roleByPrefix {
		m.SetParam(prefix+"mod_index", 0)
		m.SetParam(prefix+"env_attack", 0)
		m.SetParam(prefix+"env_sustain", 1)
		m.SetParam(prefix+"feedback", 0)
		m.SetParam(prefix+"ratio", 1)
	}
	m.NoteOn(69, 127)

	out := m.Process(1024, 1)
	var sumSq, errSq float64
	for n := 0; n < 1024; n++ {
		analytic := math.Sin(2 * math.Pi * 440 * float64(n) / sampleRate)
		got := float64(out[n])
		d := got - analytic
		sumSq += analytic * analytic
		errSq += d * d
	}
	rmsAnalytic := math.Sqrt(sumSq / 1024)
	rmsErr := math.Sqrt(errSq / 1024)
	if rmsErr/rmsAnalytic > 0.001 {
		t.Fatalf("rms error ratio %v exceeds 0.1%%", rmsErr/rmsAnalytic)
	}
}

func TestMachineProcessNoAllocation(t *testing.T) {
	m := NewMachine(48000)
	m.NoteOn(69, 100)
	m.Process(256, 2) // grow outBuf to its steady-state size first
	allocs := testing.AllocsPerRun(10, func() {
		m.Process(256, 2)
	})
	if allocs > 0 {
		t.Fatalf("Process allocated %v times per run, want 0", allocs)
	}
}

// TestS6VoiceStealingOldestInRelease is the literal S6 scenario: with all
// 16 voices active, a NoteOn must steal the oldest voice currently in
// release, reassigning its note immediately and restarting its envelope
// from attack.
func TestS6VoiceStealingOldestInRelease(t *testing.T) {
	m := NewMachine(48000)
	for i := 0; i < numVoices; i++ {
		m.NoteOn(40+i, 100)
	}
	// Release the first-allocated voice (note 40) so it moves into the
	// release stage while the other 15 remain gated on.
	m.NoteOff(40)
	if !m.voices[0].inRelease() {
		t.Fatalf("expected voice 0 (note 40) to be in release")
	}

	m.NoteOn(99, 110)

	found := false
	for _, v := range m.voices {
		if v.note == 99 {
			found = true
			if v.ops[RoleA].Envelope.State() != EnvelopeAttack {
				t.Fatalf("stolen voice envelope state = %v, want attack", v.ops[RoleA].Envelope.State())
			}
		}
	}
	if !found {
		t.Fatalf("no voice carries the new note 99 after stealing")
	}
}

// TestP9ReleaseReachesIdleNearReleaseTime checks that a voice transitions
// to fully idle within a small epsilon of its configured release time after
// NoteOff, once attack/decay have already completed.
func TestP9ReleaseReachesIdleNearReleaseTime(t *testing.T) {
	const sampleRate = 48000.0
	m := NewMachine(sampleRate)
	const releaseSec = 0.05
	for prefix := range roleByPrefix {
		m.SetParam(prefix+"env_attack", 0.001)
		m.SetParam(prefix+"env_decay", 0.001)
		m.SetParam(prefix+"env_sustain", 0.7)
		m.SetParam(prefix+"env_release", releaseSec)
	}
	m.NoteOn(60, 100)

	// Run past attack+decay into sustain.
	for i := 0; i < int(0.01*sampleRate); i++ {
		m.Process(1, 1)
	}
	m.NoteOff(60)

	samples := 0
	for !m.voices[0].idle() && samples < int(5*sampleRate) {
		m.Process(1, 1)
		samples++
	}
	expected := releaseSec * sampleRate
	if math.Abs(float64(samples)-expected) > expected*0.05+4 {
		t.Fatalf("release took %d samples, want ~%v", samples, expected)
	}
}
