// Package vad classifies short chunks of mono audio as speech or silence.
//
// A [Classifier] is the per-source detector the segmenter calls on every tick.
// Two classifiers ship with this package:
//
//   - [Neural] wraps a frame-level speech model (see the silero subpackage)
//     and reports the highest speech probability over the chunk.
//   - [Energy] compares the mean squared amplitude to a fixed threshold. It
//     needs no model and serves as the fallback when the neural model cannot
//     be loaded.
//
// A [Selector] hands out one classifier per audio source, falling back from
// neural to energy permanently the first time the model fails to load.
//
// Classifiers carry per-stream state and must not be shared between sources.
// A single Classifier is not safe for concurrent use.
package vad

import "errors"

const (
	// DefaultSpeechThreshold is the model probability above which a chunk is
	// speech.
	DefaultSpeechThreshold = 0.5

	// DefaultEnergyThreshold is the mean squared amplitude above which the
	// energy classifier reports speech.
	DefaultEnergyThreshold = 0.0001

	// DefaultWindowSize is the Silero v5 window at 16 kHz.
	DefaultWindowSize = 512
)

// ErrWindowSize is returned by a [Model] given a window of the wrong length.
var ErrWindowSize = errors.New("vad: window size mismatch")

// Result is the decision for one chunk.
type Result struct {
	// IsSpeech is true when the chunk is classified as speech.
	IsSpeech bool

	// Score is the value compared against the threshold: a probability in
	// [0, 1] for neural classifiers, mean energy for the energy classifier.
	Score float64
}

// Classifier decides whether a chunk of mono float32 samples at the pipeline
// rate contains speech.
type Classifier interface {
	// Classify scores chunk. It never fails; internal errors degrade to a
	// silence decision.
	Classify(chunk []float32) Result

	// Reset clears recurrent state between utterances.
	Reset()

	// Name identifies the classifier kind ("neural" or "energy") for status
	// reporting.
	Name() string

	// Close releases model resources. Safe to call more than once.
	Close() error
}

// Model is a frame-level speech model with recurrent state.
type Model interface {
	// Score returns the speech probability for exactly WindowSize samples.
	Score(window []float32) (float32, error)

	// Reset zeroes the recurrent state.
	Reset()

	// Close releases the model. Safe to call more than once.
	Close() error

	// WindowSize returns the number of samples Score expects.
	WindowSize() int
}

// ModelFactory loads a new [Model] instance.
type ModelFactory func() (Model, error)
