// Package transcribe runs finalized utterances through a transcriber on a
// single background worker.
//
// [Queue.Enqueue] never blocks: jobs go onto an unbounded FIFO and a
// capacity-one wake channel nudges the worker. The worker transcribes one job
// at a time in submission order and pushes non-empty text onto a results
// FIFO that callers drain with [Queue.PollResult] or a [Sink].
package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/murmur/internal/observe"
	"github.com/MrWong99/murmur/internal/segment"
	"github.com/MrWong99/murmur/pkg/provider/stt"
)

// idlePoll is how often [Queue.WaitIdle] re-checks the queue.
const idlePoll = 10 * time.Millisecond

// Result is the transcript of one job.
type Result struct {
	Source string
	Text   string

	// Latency is the wall-clock time the transcriber took.
	Latency time.Duration

	// Duration is the audio length of the job.
	Duration time.Duration

	Completed time.Time
}

// Stats is a point-in-time view of a [Queue].
type Stats struct {
	Pending     int
	Processed   int64
	Dropped     int64
	LastLatency time.Duration
	Processing  bool
}

// Option configures a [Queue].
type Option func(*Queue)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithOnResult registers fn to be called from the worker after every stored
// result. fn must not block for long; the next job waits for it.
func WithOnResult(fn func(Result)) Option {
	return func(q *Queue) { q.onResult = fn }
}

// Queue is a single-worker transcription queue. All methods are safe for
// concurrent use.
type Queue struct {
	t        stt.Transcriber
	metrics  *observe.Metrics
	onResult func(Result)

	mu          sync.Mutex
	jobs        []segment.Job
	results     []Result
	processing  bool
	processed   int64
	dropped     int64
	lastLatency time.Duration
	started     bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

var _ segment.Submitter = (*Queue)(nil)

// NewQueue returns a stopped queue that transcribes with t. Call
// [Queue.Start] to launch the worker.
func NewQueue(t stt.Transcriber, opts ...Option) *Queue {
	q := &Queue{
		t:    t,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	if q.metrics == nil {
		q.metrics = observe.DefaultMetrics()
	}
	return q
}

// Start launches the worker goroutine. Calling Start more than once, or after
// Stop, has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	select {
	case <-q.stop:
		return
	default:
	}
	q.started = true
	go q.run()
}

// Enqueue appends j and wakes the worker. It never blocks. Jobs enqueued
// after Stop are accepted and never processed.
func (q *Queue) Enqueue(j segment.Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()
	q.metrics.QueuePending.Add(context.Background(), 1)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PollResult removes and returns the oldest result, if any.
func (q *Queue) PollResult() (Result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.results) == 0 {
		return Result{}, false
	}
	r := q.results[0]
	q.results[0] = Result{}
	q.results = q.results[1:]
	return r, true
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:     len(q.jobs),
		Processed:   q.processed,
		Dropped:     q.dropped,
		LastLatency: q.lastLatency,
		Processing:  q.processing,
	}
}

// Idle reports whether no job is pending or in flight.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) == 0 && !q.processing
}

// WaitIdle blocks until the queue is idle, the queue is stopped, or ctx is
// done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for !q.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.stop:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Stop signals the worker and waits for it to exit. A job already in flight
// completes; pending jobs are abandoned. Stop is idempotent.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })

	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		default:
		}

		job, ok := q.dequeue()
		if !ok {
			select {
			case <-q.stop:
				return
			case <-q.wake:
			}
			continue
		}
		q.process(job)
	}
}

// dequeue pops the oldest job and marks the queue busy.
func (q *Queue) dequeue() (segment.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return segment.Job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = segment.Job{}
	q.jobs = q.jobs[1:]
	q.processing = true
	return j, true
}

func (q *Queue) process(job segment.Job) {
	ctx, span := observe.StartSpan(context.Background(), "transcribe.job",
		trace.WithAttributes(
			attribute.String("source", job.Source),
			attribute.Int("samples", len(job.Samples)),
		),
	)
	q.metrics.QueuePending.Add(ctx, -1)

	start := time.Now()
	text, err := q.t.Transcribe(ctx, job.Samples)
	latency := time.Since(start)
	text = strings.TrimSpace(text)

	status := observe.StatusOK
	switch {
	case err != nil:
		status = observe.StatusError
		observe.Logger(ctx).Warn("transcribe: job failed, dropping",
			"source", job.Source, "audio", job.Duration, "latency", latency, "err", err)
	case text == "":
		status = observe.StatusEmpty
		observe.Logger(ctx).Debug("transcribe: empty transcript, dropping",
			"source", job.Source, "audio", job.Duration)
	}
	q.metrics.RecordTranscription(ctx, status, latency)
	span.SetAttributes(attribute.String("status", status))
	observe.EndSpan(span, err)

	res := Result{
		Source:    job.Source,
		Text:      text,
		Latency:   latency,
		Duration:  job.Duration,
		Completed: time.Now(),
	}

	q.mu.Lock()
	q.processing = false
	q.lastLatency = latency
	if status == observe.StatusOK {
		q.results = append(q.results, res)
		q.processed++
	} else {
		q.dropped++
	}
	q.mu.Unlock()

	if status == observe.StatusOK {
		slog.Debug("transcribe: result ready",
			"source", res.Source, "latency", latency, "chars", len(text))
		if q.onResult != nil {
			q.onResult(res)
		}
	}
}
