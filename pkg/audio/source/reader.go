package source

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/murmur/pkg/audio"
)

// Reader is a [Source] over an io.Reader of interleaved PCM in a fixed
// format. With pacing enabled it releases blocks no faster than real time,
// which makes a recorded file behave like a live device.
type Reader struct {
	r      io.Reader
	format audio.Format
	buf    []byte
	pace   bool
	block  time.Duration

	started time.Time
	emitted time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// ReaderOption configures a [Reader].
type ReaderOption func(*Reader)

// WithBlockDuration sets how much audio each Next call returns.
func WithBlockDuration(d time.Duration) ReaderOption {
	return func(r *Reader) {
		if d > 0 {
			r.block = d
		}
	}
}

// WithRealtime paces Next so blocks are released at the rate they would be
// captured live.
func WithRealtime() ReaderOption {
	return func(r *Reader) { r.pace = true }
}

// NewReader returns a Reader decoding r as PCM in format f.
func NewReader(r io.Reader, f audio.Format, opts ...ReaderOption) (*Reader, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, errors.New("source: reader: sample rate and channels must be positive")
	}
	s := &Reader{
		r:      r,
		format: f,
		block:  DefaultBlockDuration,
		closed: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.buf = make([]byte, blockBytes(f, s.block))
	return s, nil
}

// Format implements [Source].
func (s *Reader) Format() audio.Format { return s.format }

// Next implements [Source]. The returned block's Data is freshly allocated.
func (s *Reader) Next(ctx context.Context) (audio.Block, error) {
	select {
	case <-ctx.Done():
		return audio.Block{}, ctx.Err()
	case <-s.closed:
		return audio.Block{}, io.EOF
	default:
	}

	if s.pace {
		if s.started.IsZero() {
			s.started = time.Now()
		}
		if wait := time.Until(s.started.Add(s.emitted)); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return audio.Block{}, ctx.Err()
			case <-s.closed:
				t.Stop()
				return audio.Block{}, io.EOF
			case <-t.C:
			}
		}
	}

	n, err := readBlock(s.r, s.buf)
	if err != nil {
		return audio.Block{}, err
	}
	ts := s.emitted
	s.emitted += audio.DurationOf(n/s.format.FrameBytes(), s.format.SampleRate)

	data := make([]byte, n)
	copy(data, s.buf[:n])
	return audio.Block{Data: data, Format: s.format, Timestamp: ts}, nil
}

// Close implements [Source]. If the underlying reader is an io.Closer it is
// closed too.
func (s *Reader) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if c, ok := s.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

var _ Source = (*Reader)(nil)
