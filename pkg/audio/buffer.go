package audio

import (
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultBufferSamples bounds a [CaptureBuffer] created with a non-positive
// capacity: 30 seconds at [DefaultSampleRate].
const DefaultBufferSamples = 30 * DefaultSampleRate

// Cursor is an absolute sample position in a [CaptureBuffer]'s stream. The
// first sample ever appended is at position 0; positions keep increasing across
// eviction and release.
type Cursor int64

// CaptureBuffer is a bounded FIFO of mono float32 samples. Appending beyond
// capacity evicts the oldest samples. It is safe for concurrent use by one
// producer and any number of readers.
type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float32
	max     int
	// start is the absolute position of samples[0].
	start   int64
	evicted atomic.Int64
}

// NewCaptureBuffer returns a buffer that holds at most max samples. A
// non-positive max selects [DefaultBufferSamples].
func NewCaptureBuffer(max int) *CaptureBuffer {
	if max <= 0 {
		max = DefaultBufferSamples
	}
	return &CaptureBuffer{
		samples: make([]float32, 0, min(max, 4*DefaultSampleRate)),
		max:     max,
	}
}

// Append adds samples to the tail, evicting from the head as needed so that
// Len never exceeds the capacity.
func (b *CaptureBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) >= b.max {
		// Only the newest max samples survive.
		drop := len(b.samples) + len(samples) - b.max
		b.start += int64(drop)
		b.evicted.Add(int64(drop))
		b.samples = append(b.samples[:0], samples[len(samples)-b.max:]...)
		return
	}

	if over := len(b.samples) + len(samples) - b.max; over > 0 {
		n := copy(b.samples, b.samples[over:])
		b.samples = b.samples[:n]
		b.start += int64(over)
		b.evicted.Add(int64(over))
	}
	b.samples = append(b.samples, samples...)
}

// Snapshot returns a copy of the buffered samples, oldest first.
func (b *CaptureBuffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.samples)
}

// Peek returns a copy of the buffered samples together with the cursor just
// past the last returned sample. Passing that cursor to [CaptureBuffer.Release]
// drops exactly what Peek returned, keeping anything appended in between.
func (b *CaptureBuffer) Peek() ([]float32, Cursor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.samples), Cursor(b.start + int64(len(b.samples)))
}

// Release drops every sample before c. Samples already evicted are not
// counted again.
func (b *CaptureBuffer) Release(c Cursor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int64(c) - b.start
	if n <= 0 {
		return
	}
	if n >= int64(len(b.samples)) {
		b.start += int64(len(b.samples))
		b.samples = b.samples[:0]
		return
	}
	kept := copy(b.samples, b.samples[n:])
	b.samples = b.samples[:kept]
	b.start += n
}

// Clear discards all buffered samples.
func (b *CaptureBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start += int64(len(b.samples))
	b.samples = b.samples[:0]
}

// Len returns the number of buffered samples.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Cap returns the maximum number of samples the buffer holds.
func (b *CaptureBuffer) Cap() int { return b.max }

// Evicted returns the total number of samples dropped by capacity eviction.
func (b *CaptureBuffer) Evicted() int64 { return b.evicted.Load() }
