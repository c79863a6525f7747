package vad

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// SelectorConfig configures a [Selector].
type SelectorConfig struct {
	// SpeechThreshold is passed to every [Neural] classifier.
	SpeechThreshold float64

	// EnergyThreshold is passed to every [Energy] classifier.
	EnergyThreshold float64

	// OnFallback, if set, is called once when the selector switches to the
	// energy classifier, with the load error that caused it.
	OnFallback func(err error)
}

// Selector vends one [Classifier] per audio source. It tries the neural
// model factory; the first time the factory fails it switches to [Energy]
// for the rest of the process lifetime and never retries the model.
//
// Selector is safe for concurrent use.
type Selector struct {
	factory ModelFactory
	cfg     SelectorConfig

	mu       sync.Mutex
	fallback atomic.Bool
	warnOnce sync.Once
}

// NewSelector returns a Selector loading models from factory. A nil factory
// selects the energy classifier from the start without a warning.
func NewSelector(factory ModelFactory, cfg SelectorConfig) *Selector {
	s := &Selector{factory: factory, cfg: cfg}
	if factory == nil {
		s.fallback.Store(true)
	}
	return s
}

// New returns a fresh classifier for one source.
func (s *Selector) New() Classifier {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fallback.Load() {
		return Energy{Threshold: s.cfg.EnergyThreshold}
	}

	m, err := s.factory()
	if err != nil {
		s.fallback.Store(true)
		s.warnOnce.Do(func() {
			slog.Warn("vad: neural model unavailable, using energy classifier", "err", err)
			if s.cfg.OnFallback != nil {
				s.cfg.OnFallback(err)
			}
		})
		return Energy{Threshold: s.cfg.EnergyThreshold}
	}
	return NewNeural(m, s.cfg.SpeechThreshold)
}

// FallbackActive reports whether the selector has switched to the energy
// classifier.
func (s *Selector) FallbackActive() bool { return s.fallback.Load() }

// Mode returns "energy" once fallback is active and "neural" before.
func (s *Selector) Mode() string {
	if s.fallback.Load() {
		return Energy{}.Name()
	}
	return "neural"
}
