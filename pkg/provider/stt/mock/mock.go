// Package mock provides a test double for the stt.Transcriber interface.
//
// Transcriber returns scripted texts in order, optionally sleeping a fixed or
// per-call delay to simulate backend latency, and records every call.
//
// Example:
//
//	tr := &mock.Transcriber{Texts: []string{"hello", "world"}}
//	text, _ := tr.Transcribe(ctx, samples) // "hello"
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/murmur/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is the number of samples passed.
	Samples int
}

// Transcriber is a mock implementation of [stt.Transcriber].
type Transcriber struct {
	mu sync.Mutex

	// Texts are returned by successive calls. Once exhausted, Text is used.
	Texts []string

	// Text is returned when Texts is exhausted.
	Text string

	// Err, if non-nil, is returned by every call.
	Err error

	// Delay is slept before every call returns (respecting ctx).
	Delay time.Duration

	// Delays, if set, overrides Delay per call index.
	Delays []time.Duration

	// Func, if set, handles every call and takes precedence over the scripted
	// fields.
	Func func(ctx context.Context, samples []float32) (string, error)

	// Started, if non-nil, receives one value at the start of every call
	// (non-blocking send).
	Started chan struct{}

	// Calls records every call in order.
	Calls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call and returns the scripted result.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	t.mu.Lock()
	i := len(t.Calls)
	t.Calls = append(t.Calls, TranscribeCall{Samples: len(samples)})
	fn := t.Func
	delay := t.Delay
	if i < len(t.Delays) {
		delay = t.Delays[i]
	}
	text := t.Text
	if i < len(t.Texts) {
		text = t.Texts[i]
	}
	err := t.Err
	started := t.Started
	t.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if fn != nil {
		return fn(ctx, samples)
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// CallCount returns the number of Transcribe calls so far. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// Close records the call.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCallCount++
	return nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
