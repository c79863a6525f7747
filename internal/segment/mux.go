package segment

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mux drives several segmenters from one goroutine, one tick each per poll
// interval, in registration order.
type Mux struct {
	interval time.Duration

	mu   sync.Mutex
	segs []*Segmenter
}

// NewMux returns a Mux ticking every interval. A non-positive interval uses
// the [DefaultConfig] poll interval.
func NewMux(interval time.Duration, segs ...*Segmenter) *Mux {
	if interval <= 0 {
		interval = DefaultConfig().PollInterval
	}
	return &Mux{interval: interval, segs: segs}
}

// Add registers another segmenter.
func (m *Mux) Add(s *Segmenter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segs = append(m.segs, s)
}

func (m *Mux) segmenters() []*Segmenter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Segmenter(nil), m.segs...)
}

// Tick ticks every segmenter once.
func (m *Mux) Tick() {
	for _, s := range m.segmenters() {
		s.Tick()
	}
}

// Run ticks until ctx is done. It returns nil on cancellation.
func (m *Mux) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Flush flushes every segmenter. Call it only after Run has returned.
func (m *Mux) Flush() {
	for _, s := range m.segmenters() {
		s.Flush()
	}
}

// Status returns one status per segmenter.
func (m *Mux) Status() []Status {
	segs := m.segmenters()
	out := make([]Status, len(segs))
	for i, s := range segs {
		out[i] = s.Status()
	}
	return out
}

// Close closes every segmenter's classifier.
func (m *Mux) Close() error {
	var errs []error
	for _, s := range m.segmenters() {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
