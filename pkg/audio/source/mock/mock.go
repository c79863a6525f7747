// Package mock provides a scripted [source.Source] for unit tests.
//
// The mock replays a fixed list of blocks and then reports end of stream (or
// a configured error). It is safe for concurrent use and records call counts.
//
// Typical usage:
//
//	src := &mock.Source{
//	    FormatResult: audio.Format{SampleRate: 16000, Channels: 1},
//	    Blocks:       [][]byte{pcm1, pcm2},
//	}
//	blk, err := src.Next(ctx)
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MrWong99/murmur/pkg/audio"
	"github.com/MrWong99/murmur/pkg/audio/source"
)

// Source is a mock implementation of [source.Source].
type Source struct {
	mu sync.Mutex

	// FormatResult is returned by Format and stamped on every block.
	FormatResult audio.Format

	// Blocks are returned by successive Next calls, in order.
	Blocks [][]byte

	// EndError is returned once Blocks is exhausted. Defaults to io.EOF.
	EndError error

	// Delay, if set, is slept (respecting ctx) before each Next returns.
	Delay time.Duration

	// CloseError is returned by Close.
	CloseError error

	// CallCountNext records how many times Next was called.
	CallCountNext int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	next int
}

// Format implements [source.Source].
func (s *Source) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FormatResult
}

// Next implements [source.Source].
func (s *Source) Next(ctx context.Context) (audio.Block, error) {
	s.mu.Lock()
	s.CallCountNext++
	delay := s.Delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return audio.Block{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return audio.Block{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Blocks) {
		if s.EndError != nil {
			return audio.Block{}, s.EndError
		}
		return audio.Block{}, io.EOF
	}
	data := s.Blocks[s.next]
	s.next++
	return audio.Block{Data: data, Format: s.FormatResult}, nil
}

// Close implements [source.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

var _ source.Source = (*Source)(nil)
