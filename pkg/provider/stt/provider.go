// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber turns one finished utterance (mono float32 samples at
// 16 kHz) into text. Calls are batch, not streaming: the segmenter decides
// where an utterance starts and ends, and the transcription queue feeds
// utterances to the Transcriber one at a time.
//
// Implementations in subpackages:
//
//   - whisper.Native runs whisper.cpp in-process through its CGO bindings.
//   - whisper.Client posts WAV audio to a running whisper-server.
//   - openai.Transcriber calls the OpenAI audio transcription API.
//
// Implementations must be safe for concurrent use, although the queue only
// ever issues one call at a time.
package stt

import (
	"context"
	"errors"
	"io"
)

// SampleRate is the rate every Transcriber expects its input at.
const SampleRate = 16000

// ErrEmptyAudio is returned when Transcribe is called without samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber converts one utterance to text.
type Transcriber interface {
	// Transcribe returns the text spoken in samples (mono float32 at
	// [SampleRate]). An empty string with a nil error means nothing
	// intelligible was recognised. It blocks until the backend responds or
	// ctx is done.
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Func adapts an ordinary function to the [Transcriber] interface.
type Func func(ctx context.Context, samples []float32) (string, error)

// Transcribe calls f.
func (f Func) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return f(ctx, samples)
}

// Close releases t if it holds resources, that is when it implements
// [io.Closer]. Transcribers without a Close method are left alone.
func Close(t Transcriber) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
