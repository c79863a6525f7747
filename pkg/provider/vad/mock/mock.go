// Package mock provides test doubles for the vad package interfaces.
//
// Use Model to script per-window probabilities for a [vad.Neural] under test.
// Use Classifier to drive a segmenter with a fixed sequence of decisions
// without any audio analysis.
//
// Example:
//
//	m := &mock.Model{Scores: []float32{0.1, 0.9}}
//	c := vad.NewNeural(m, 0.5)
//	res := c.Classify(chunk) // 1024 samples -> max(0.1, 0.9)
package mock

import (
	"sync"

	"github.com/MrWong99/murmur/pkg/provider/vad"
)

// Model is a mock implementation of [vad.Model].
type Model struct {
	mu sync.Mutex

	// Window is returned by WindowSize. Zero means [vad.DefaultWindowSize].
	Window int

	// Scores are returned by successive Score calls, in order. Once exhausted
	// the last score repeats; an empty list scores 0.
	Scores []float32

	// ScoreErr, if non-nil, is returned by every Score call.
	ScoreErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// ScoreCallCount is the number of times Score was called.
	ScoreCallCount int

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Score records the call and returns the next scripted score.
func (m *Model) Score(window []float32) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.ScoreCallCount
	m.ScoreCallCount++
	if m.ScoreErr != nil {
		return 0, m.ScoreErr
	}
	if len(m.Scores) == 0 {
		return 0, nil
	}
	if i >= len(m.Scores) {
		i = len(m.Scores) - 1
	}
	return m.Scores[i], nil
}

// Reset records the call.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCallCount++
	return m.CloseErr
}

// WindowSize returns Window or [vad.DefaultWindowSize].
func (m *Model) WindowSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Window > 0 {
		return m.Window
	}
	return vad.DefaultWindowSize
}

// Ensure Model implements vad.Model at compile time.
var _ vad.Model = (*Model)(nil)

// Classifier is a mock implementation of [vad.Classifier].
type Classifier struct {
	mu sync.Mutex

	// Func, if set, decides every Classify call and takes precedence over
	// Script.
	Func func(chunk []float32) vad.Result

	// Script holds successive speech decisions. Once exhausted, Classify
	// reports silence.
	Script []bool

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// --- Call records ---

	// ClassifyCallCount is the number of times Classify was called.
	ClassifyCallCount int

	// ChunkLens records the length of every chunk passed to Classify.
	ChunkLens []int

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Classify records the call and returns the scripted decision.
func (c *Classifier) Classify(chunk []float32) vad.Result {
	c.mu.Lock()
	i := c.ClassifyCallCount
	c.ClassifyCallCount++
	c.ChunkLens = append(c.ChunkLens, len(chunk))
	fn := c.Func
	var speech bool
	if i < len(c.Script) {
		speech = c.Script[i]
	}
	c.mu.Unlock()

	if fn != nil {
		return fn(chunk)
	}
	if speech {
		return vad.Result{IsSpeech: true, Score: 1}
	}
	return vad.Result{}
}

// Reset records the call.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetCallCount++
}

// Name returns NameResult or "mock".
func (c *Classifier) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NameResult != "" {
		return c.NameResult
	}
	return "mock"
}

// Close records the call.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	return nil
}

// Resets returns ResetCallCount. Thread-safe.
func (c *Classifier) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ResetCallCount
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
