package ring

import (
	"testing"

	"pgregory.net/rapid"
)

// TestS1WrapAround is the literal S1 scenario from the spec: capacity 10,
// write [0..8], read 4, write [100,101,102], read 8.
func TestS1WrapAround(t *testing.T) {
	b := New(10)
	src := make([]float32, 9)
	for i := range src {
		src[i] = float32(i)
	}
	if n := b.Write(src); n != 9 {
		t.Fatalf("Write = %d, want 9", n)
	}
	got := make([]float32, 4)
	if n := b.Read(got); n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}

	more := []float32{100, 101, 102}
	if n := b.Write(more); n != 3 {
		t.Fatalf("Write = %d, want 3", n)
	}

	final := make([]float32, 8)
	if n := b.Read(final); n != 8 {
		t.Fatalf("Read = %d, want 8", n)
	}
	want := []float32{4, 5, 6, 7, 8, 100, 101, 102}
	for i := range want {
		if final[i] != want[i] {
			t.Fatalf("final[%d] = %v, want %v (full=%v)", i, final[i], want[i], final)
		}
	}
}

func TestAvailableNeverExceedsCapacity(t *testing.T) {
	b := New(16)
	src := make([]float32, 100)
	b.Write(src)
	if b.AvailableRead() > b.Capacity() {
		t.Fatalf("AvailableRead %d > capacity %d", b.AvailableRead(), b.Capacity())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cap := rapid.IntRange(1, 64).Draw(t, "cap")
		b := New(cap)
		var written, read []float32
		ops := rapid.IntRange(1, 50).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "isWrite") {
				n := rapid.IntRange(0, cap).Draw(t, "n")
				chunk := make([]float32, n)
				for j := range chunk {
					chunk[j] = float32(len(written) + j)
				}
				got := b.Write(chunk)
				written = append(written, chunk[:got]...)
			} else {
				n := rapid.IntRange(0, cap).Draw(t, "n")
				dst := make([]float32, n)
				got := b.Read(dst)
				read = append(read, dst[:got]...)
			}
			if b.AvailableRead() > b.Capacity() {
				t.Fatalf("available_read %d exceeds capacity %d", b.AvailableRead(), b.Capacity())
			}
		}
		// drain remainder
		for b.AvailableRead() > 0 {
			dst := make([]float32, b.AvailableRead())
			n := b.Read(dst)
			read = append(read, dst[:n]...)
		}
		if len(read) > len(written) {
			t.Fatalf("read more samples (%d) than ever written (%d)", len(read), len(written))
		}
		for i := range read {
			if read[i] != written[i] {
				t.Fatalf("read[%d] = %v, want %v", i, read[i], written[i])
			}
		}
	})
}
