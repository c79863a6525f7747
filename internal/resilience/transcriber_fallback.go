package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/murmur/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Transcriber] with failover across
// several backends, each behind its own circuit breaker.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend. [stt.ErrEmptyAudio] is a caller error and never counts
// against a breaker.
func NewTranscriberFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	inner := cfg.CircuitBreaker.IsFailure
	cfg.CircuitBreaker.IsFailure = func(err error) bool {
		if errors.Is(err, stt.ErrEmptyAudio) {
			return false
		}
		if inner != nil {
			return inner(err)
		}
		return defaultIsFailure(err)
	}
	return &TranscriberFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber tried after the earlier
// ones.
func (f *TranscriberFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe runs the first healthy backend. Empty audio is rejected up front
// so it never reaches a backend.
func (f *TranscriberFallback) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, samples)
	})
}

// Status reports each backend's breaker state in failover order.
func (f *TranscriberFallback) Status() []EntryStatus {
	return f.group.Status()
}

// Close closes every backend that implements io.Closer.
func (f *TranscriberFallback) Close() error {
	var errs []error
	f.group.Each(func(name string, t stt.Transcriber) {
		if err := stt.Close(t); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	})
	return errors.Join(errs...)
}
