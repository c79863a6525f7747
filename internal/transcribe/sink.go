package transcribe

import (
	"slices"
	"sync"
	"time"
)

// Poller is the draining side of a [Queue].
type Poller interface {
	PollResult() (Result, bool)
}

// Sink keeps the latest result per source for readers that do not drain the
// queue themselves. It is safe for concurrent use.
type Sink struct {
	mu          sync.RWMutex
	latest      map[string]Result
	counts      map[string]int64
	lastLatency time.Duration
	subs        []func(Result)
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{
		latest: make(map[string]Result),
		counts: make(map[string]int64),
	}
}

// Subscribe registers fn to receive every result passed to Put or Drain.
// fn is called without the sink lock held, in result order.
func (s *Sink) Subscribe(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Put records r as the latest result for its source.
func (s *Sink) Put(r Result) {
	s.mu.Lock()
	s.latest[r.Source] = r
	s.counts[r.Source]++
	s.lastLatency = r.Latency
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}
}

// Drain moves every result currently queued in p into the sink and returns
// them, oldest first.
func (s *Sink) Drain(p Poller) []Result {
	var out []Result
	for {
		r, ok := p.PollResult()
		if !ok {
			return out
		}
		s.Put(r)
		out = append(out, r)
	}
}

// Latest returns the most recent result for source.
func (s *Sink) Latest(source string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[source]
	return r, ok
}

// Count returns how many results source has produced.
func (s *Sink) Count(source string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[source]
}

// LastLatency returns the latency of the most recently stored result.
func (s *Sink) LastLatency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLatency
}

// Sources returns every source with at least one result, sorted.
func (s *Sink) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.latest))
	for src := range s.latest {
		out = append(out, src)
	}
	slices.Sort(out)
	return out
}
