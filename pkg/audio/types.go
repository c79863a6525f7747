// Package audio holds the sample-level building blocks of the capture pipeline:
// raw capture blocks and their formats, the [Converter] that normalises them to
// mono float32 at the pipeline rate, and the bounded [CaptureBuffer] that
// accumulates converted samples per audio source.
package audio

import (
	"fmt"
	"time"
)

// DefaultSampleRate is the pipeline target rate in Hz. Both the Silero VAD
// model and whisper.cpp expect 16 kHz mono input.
const DefaultSampleRate = 16000

// Encoding identifies the sample representation of a raw capture block.
type Encoding int

const (
	// EncodingInt16 is signed 16-bit little-endian PCM.
	EncodingInt16 Encoding = iota

	// EncodingFloat32 is IEEE-754 32-bit little-endian float PCM, nominally in
	// [-1.0, 1.0].
	EncodingFloat32
)

// BytesPerSample returns the width of one sample of one channel.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingFloat32:
		return 4
	default:
		return 2
	}
}

// String returns the config spelling of the encoding ("s16le" or "f32le").
func (e Encoding) String() string {
	switch e {
	case EncodingInt16:
		return "s16le"
	case EncodingFloat32:
		return "f32le"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding maps a config value to an [Encoding]. An empty string selects
// [EncodingInt16].
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "s16le", "int16":
		return EncodingInt16, nil
	case "f32le", "float32":
		return EncodingFloat32, nil
	}
	return 0, fmt.Errorf("audio: unknown encoding %q", s)
}

// Format describes the native layout of a capture source.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// FrameBytes returns the size of one interleaved frame (one sample for every
// channel). Returns 0 for an invalid format.
func (f Format) FrameBytes() int {
	if f.Channels <= 0 {
		return 0
	}
	return f.Channels * f.Encoding.BytesPerSample()
}

// String renders the format for logs, e.g. "48000Hz stereo s16le".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels) + " " + f.Encoding.String()
}

// Block is one raw chunk of audio as delivered by a capture source, before
// conversion.
type Block struct {
	// Data is interleaved PCM in the layout described by Format.
	Data []byte

	// Format is the native format of Data.
	Format Format

	// Timestamp marks when the block was captured, relative to source start.
	Timestamp time.Duration
}

// SamplesFor returns the number of samples covering d at rate.
func SamplesFor(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}

// DurationOf returns the playback duration of n mono samples at rate.
func DurationOf(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
