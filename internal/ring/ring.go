// Package ring implements a single-producer/single-consumer circular buffer
// of float32 samples, the audio transport between the sequencer/UI side and
// the real-time callback. It generalizes the index-arithmetic idiom used by
// the mutex-guarded ring buffer elsewhere in this codebase's lineage into a
// wait-free version: the producer only ever advances the write index, the
// consumer only ever advances the read index, and each side only reads the
// other's index with an atomic load.
package ring

import "sync/atomic"

// Buffer is an SPSC ring buffer of capacity N-1 usable samples (one slot is
// reserved to distinguish full from empty without a separate counter).
type Buffer struct {
	buf  []float32
	n    uint64 // len(buf), a power of two is not required
	read atomic.Uint64
	// write is padded conceptually by being a distinct cache line in
	// spirit; Go gives no portable padding guarantee, so this is
	// accepted as a correctness-only implementation, not padded for
	// false-sharing avoidance.
	write atomic.Uint64
}

// New creates a ring buffer able to hold capacity usable samples (capacity+1
// backing slots are allocated).
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		buf: make([]float32, capacity+1),
		n:   uint64(capacity + 1),
	}
}

// Capacity returns the usable capacity (backing size minus the reserved slot).
func (b *Buffer) Capacity() int {
	return int(b.n - 1)
}

// AvailableRead returns the number of samples that can currently be read.
func (b *Buffer) AvailableRead() int {
	w := b.write.Load()
	r := b.read.Load()
	return int((w - r + b.n) % b.n)
}

// AvailableWrite returns the number of samples that can currently be written
// without overrunning the reader.
func (b *Buffer) AvailableWrite() int {
	return b.Capacity() - b.AvailableRead()
}

// Write copies up to len(src) samples into the buffer and returns the number
// actually written (less than len(src) if the buffer doesn't have room).
// Wait-free: performs at most two contiguous copies, never allocates, never
// blocks.
func (b *Buffer) Write(src []float32) int {
	avail := b.AvailableWrite()
	n := len(src)
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	w := b.write.Load()
	first := int(b.n - w)
	if first > n {
		first = n
	}
	copy(b.buf[w:], src[:first])
	if n > first {
		copy(b.buf[0:], src[first:n])
	}
	b.write.Store((w + uint64(n)) % b.n) // release: publishes the new data
	return n
}

// Read copies up to len(dst) samples out of the buffer and returns the
// number actually read.
func (b *Buffer) Read(dst []float32) int {
	avail := b.AvailableRead()
	n := len(dst)
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	r := b.read.Load()
	first := int(b.n - r)
	if first > n {
		first = n
	}
	copy(dst[:first], b.buf[r:])
	if n > first {
		copy(dst[first:n], b.buf[0:])
	}
	b.read.Store((r + uint64(n)) % b.n) // acquire side publishes consumption
	return n
}
