// Package source provides capture sources that feed raw PCM blocks into the
// pipeline.
//
// A [Source] delivers [audio.Block] values in its native format; conversion to
// the pipeline format happens downstream in [audio.Converter]. Two
// implementations ship with this package:
//
//   - [Reader] wraps any io.Reader of interleaved PCM (stdin, a file, a pipe).
//   - [Command] spawns a capture subprocess (arecord on Linux, ffmpeg
//     elsewhere) and reads raw PCM from its stdout.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrWong99/murmur/pkg/audio"
)

// ErrNoDevice is returned when no capture device is configured and none can
// be chosen automatically.
var ErrNoDevice = errors.New("source: no audio input device found")

// DefaultBlockDuration is the amount of audio returned by one Next call when
// no block duration is configured.
const DefaultBlockDuration = 20 * time.Millisecond

// Kind distinguishes what a source captures. It is used to tag utterances and
// select platform capture defaults.
type Kind string

const (
	// KindMicrophone captures a microphone or line input.
	KindMicrophone Kind = "microphone"

	// KindLoopback captures the system output mix (what the machine plays).
	KindLoopback Kind = "loopback"
)

// Source is a stream of raw PCM blocks.
//
// Next blocks until a block is available, ctx is done, or the stream ends.
// At end of stream Next returns io.EOF; any other error is a capture failure.
// Implementations need not be safe for concurrent Next calls; Close may be
// called concurrently with Next to unblock it.
type Source interface {
	// Format reports the native format of every block this source returns.
	Format() audio.Format

	// Next returns the next captured block.
	Next(ctx context.Context) (audio.Block, error)

	// Close releases the capture device or process. Safe to call more than once.
	Close() error
}

// blockBytes returns the byte size of a block holding d of audio in f,
// rounded down to whole frames (at least one frame).
func blockBytes(f audio.Format, d time.Duration) int {
	if d <= 0 {
		d = DefaultBlockDuration
	}
	frames := audio.SamplesFor(d, f.SampleRate)
	if frames < 1 {
		frames = 1
	}
	return frames * f.FrameBytes()
}

// readBlock reads one block of up to len(buf) bytes from r. A short read at
// end of stream yields the partial block; the following call returns io.EOF.
func readBlock(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, nil
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	default:
		return n, fmt.Errorf("source: read: %w", err)
	}
}
