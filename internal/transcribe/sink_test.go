package transcribe

import (
	"sync"
	"testing"
	"time"
)

type fakePoller struct {
	results []Result
}

func (p *fakePoller) PollResult() (Result, bool) {
	if len(p.results) == 0 {
		return Result{}, false
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r, true
}

func TestSink_DrainKeepsLatestPerSource(t *testing.T) {
	t.Parallel()
	p := &fakePoller{results: []Result{
		{Source: "mic", Text: "one", Latency: 10 * time.Millisecond},
		{Source: "loopback", Text: "two", Latency: 20 * time.Millisecond},
		{Source: "mic", Text: "three", Latency: 30 * time.Millisecond},
	}}
	s := NewSink()

	got := s.Drain(p)
	if len(got) != 3 || got[0].Text != "one" || got[2].Text != "three" {
		t.Fatalf("Drain = %+v, want three results oldest first", got)
	}
	if r, ok := s.Latest("mic"); !ok || r.Text != "three" {
		t.Errorf("Latest(mic) = %+v, %v, want three", r, ok)
	}
	if r, ok := s.Latest("loopback"); !ok || r.Text != "two" {
		t.Errorf("Latest(loopback) = %+v, %v, want two", r, ok)
	}
	if _, ok := s.Latest("other"); ok {
		t.Error("Latest(other) reported a result")
	}
	if s.Count("mic") != 2 || s.Count("loopback") != 1 {
		t.Errorf("counts = %d/%d, want 2/1", s.Count("mic"), s.Count("loopback"))
	}
	if s.LastLatency() != 30*time.Millisecond {
		t.Errorf("LastLatency = %v, want 30ms", s.LastLatency())
	}
	if srcs := s.Sources(); len(srcs) != 2 || srcs[0] != "loopback" || srcs[1] != "mic" {
		t.Errorf("Sources = %v, want [loopback mic]", srcs)
	}

	// Drained results are gone from the poller.
	if again := s.Drain(p); len(again) != 0 {
		t.Errorf("second Drain = %d results, want 0", len(again))
	}
}

func TestSink_SubscribersSeeEveryResult(t *testing.T) {
	t.Parallel()
	s := NewSink()
	var (
		mu   sync.Mutex
		seen []string
	)
	s.Subscribe(func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Text)
		// Reading the sink from a subscriber must not deadlock.
		_, _ = s.Latest(r.Source)
	})

	s.Put(Result{Source: "mic", Text: "a"})
	s.Drain(&fakePoller{results: []Result{{Source: "mic", Text: "b"}}})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestSink_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	s := NewSink()
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := []string{"mic", "loopback"}[i%2]
			for range 250 {
				s.Put(Result{Source: src, Text: "x"})
				_, _ = s.Latest(src)
			}
		}()
	}
	wg.Wait()
	if got := s.Count("mic") + s.Count("loopback"); got != 1000 {
		t.Errorf("total count = %d, want 1000", got)
	}
}
