// Package app wires the murmur subsystems into a running pipeline.
//
// The App struct owns the full lifecycle: New builds one capture buffer and
// segmenter per audio source plus the shared transcription queue, Run drives
// capture until the sources end or ctx is cancelled, and Shutdown tears
// everything down in order.
//
// Goroutines: one producer per source, one segmenter loop for all sources,
// one transcription worker and one result drainer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/murmur/internal/config"
	"github.com/MrWong99/murmur/internal/health"
	"github.com/MrWong99/murmur/internal/observe"
	"github.com/MrWong99/murmur/internal/resilience"
	"github.com/MrWong99/murmur/internal/segment"
	"github.com/MrWong99/murmur/internal/transcribe"
	"github.com/MrWong99/murmur/pkg/audio"
	"github.com/MrWong99/murmur/pkg/audio/source"
	"github.com/MrWong99/murmur/pkg/provider/stt"
	"github.com/MrWong99/murmur/pkg/provider/vad"
)

// drainInterval is how often finished results are moved from the queue into
// the sink.
const drainInterval = 50 * time.Millisecond

// ErrNoSources is returned by [New] when no audio input is provided.
var ErrNoSources = errors.New("app: no audio sources")

// Input is one opened audio source and the name its results are tagged with.
type Input struct {
	Name   string
	Source source.Source
}

// Providers holds the backends built by main.go via the config registry.
type Providers struct {
	// Transcriber is required. Usually a [resilience.TranscriberFallback].
	Transcriber stt.Transcriber

	// Models loads one neural VAD model per source. Nil selects the energy
	// classifier.
	Models vad.ModelFactory

	// Inputs are the opened audio sources. At least one is required.
	Inputs []Input
}

// SourceStatus is the capture-side view of one source.
type SourceStatus struct {
	segment.Status

	// Running is false once the source has ended or failed.
	Running bool

	// Evicted counts samples dropped from the capture buffer.
	Evicted int64

	// Results counts transcripts produced for this source.
	Results int64
}

// Status is a point-in-time performance snapshot of the pipeline.
type Status struct {
	Sources      []SourceStatus
	Queue        transcribe.Stats
	Classifier   string
	Transcribers []resilience.EntryStatus
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithResultHandler registers fn to receive every transcript in completion
// order.
func WithResultHandler(fn func(transcribe.Result)) Option {
	return func(a *App) { a.handlers = append(a.handlers, fn) }
}

// input is the per-source pipeline state.
type input struct {
	name    string
	src     source.Source
	conv    *audio.Converter
	buf     *audio.CaptureBuffer
	seg     *segment.Segmenter
	running atomic.Bool
}

// App owns all subsystem lifetimes and orchestrates the capture pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	handlers  []func(transcribe.Result)

	selector *vad.Selector
	inputs   []*input
	mux      *segment.Mux
	queue    *transcribe.Queue
	sink     *transcribe.Sink

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires the pipeline for cfg. It takes ownership of every provider; they
// are closed by Shutdown.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Transcriber == nil {
		return nil, errors.New("app: a transcriber is required")
	}
	if len(providers.Inputs) == 0 {
		return nil, ErrNoSources
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		sink:      transcribe.NewSink(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	for _, fn := range a.handlers {
		a.sink.Subscribe(fn)
	}

	rate := cfg.Audio.TargetSampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}

	a.selector = vad.NewSelector(providers.Models, vad.SelectorConfig{
		SpeechThreshold: cfg.VAD.SpeechThreshold,
		EnergyThreshold: cfg.VAD.EnergyFallbackThreshold,
		OnFallback: func(error) {
			a.metrics.VADFallback.Add(context.Background(), 1)
		},
	})

	a.queue = transcribe.NewQueue(providers.Transcriber, transcribe.WithMetrics(a.metrics))
	a.closers = append(a.closers, func() error { return stt.Close(providers.Transcriber) })

	segCfg := segmentConfig(cfg.Segmenter, rate)
	a.mux = segment.NewMux(segCfg.PollInterval)

	capSec := cfg.Audio.CaptureBufferCapSec
	if capSec <= 0 {
		capSec = config.DefaultCaptureBufferCapSec
	}
	seen := make(map[string]bool, len(providers.Inputs))
	for _, in := range providers.Inputs {
		if seen[in.Name] {
			return nil, fmt.Errorf("app: duplicate source name %q", in.Name)
		}
		seen[in.Name] = true

		buf := audio.NewCaptureBuffer(capSec * rate)
		seg := segment.New(in.Name, buf, a.selector.New(), a.queue, segCfg, segment.WithMetrics(a.metrics))
		a.mux.Add(seg)
		a.inputs = append(a.inputs, &input{name: in.Name, src: in.Source, conv: audio.NewConverter(rate), buf: buf, seg: seg})
		a.closers = append(a.closers, in.Source.Close)
		slog.Info("audio source ready", "source", in.Name, "format", in.Source.Format().String(), "classifier", seg.Status().Classifier)
	}
	a.closers = append(a.closers, a.mux.Close)

	return a, nil
}

// segmentConfig converts the segmenter config section.
func segmentConfig(c config.SegmenterConfig, rate int) segment.Config {
	return segment.Config{
		WindowMs:           c.ClassifierWindowMs,
		MinSpeechMs:        c.MinSpeechMs,
		SilenceThresholdMs: c.SilenceThresholdMs,
		MaxUtteranceSec:    c.MaxUtteranceSec,
		PollInterval:       time.Duration(c.PollIntervalMs) * time.Millisecond,
		SampleRate:         rate,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run captures from every source until all of them end or ctx is cancelled.
//
// When every source reaches end of stream, Run flushes the open utterances,
// waits for the queue to finish and returns nil. When ctx is cancelled, Run
// returns ctx.Err() without waiting for pending jobs. A failing source is
// logged and stopped; the others keep running.
func (a *App) Run(ctx context.Context) error {
	a.queue.Start()

	// The segmenter and drainer outlive the producers so that the last
	// captured samples are classified before the flush.
	loopCtx, stopLoops := context.WithCancel(context.WithoutCancel(ctx))
	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		_ = a.mux.Run(loopCtx)
	}()
	go func() {
		defer loops.Done()
		a.drain(loopCtx)
	}()

	var g errgroup.Group
	for _, in := range a.inputs {
		in.running.Store(true)
		g.Go(func() error {
			defer in.running.Store(false)
			return a.capture(ctx, in)
		})
	}
	slog.Info("murmur running", "sources", len(a.inputs), "classifier", a.selector.Mode())
	err := g.Wait()

	stopLoops()
	loops.Wait()

	if ctx.Err() != nil {
		a.sink.Drain(a.queue)
		return ctx.Err()
	}

	slog.Info("all sources ended, flushing")
	a.mux.Flush()
	if werr := a.queue.WaitIdle(ctx); werr != nil {
		err = errors.Join(err, werr)
	}
	a.sink.Drain(a.queue)
	return err
}

// capture is the producer loop of one source: read, convert, append.
func (a *App) capture(ctx context.Context, in *input) error {
	log := slog.With("source", in.name)
	for {
		blk, err := in.src.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF):
				log.Info("audio source ended")
				return nil
			default:
				log.Error("audio source failed", "err", err)
				return nil
			}
		}

		samples := in.conv.Convert(blk.Data, blk.Format)
		if len(samples) == 0 {
			continue
		}
		before := in.buf.Evicted()
		in.buf.Append(samples)
		if n := in.buf.Evicted() - before; n > 0 {
			a.metrics.RecordEvicted(ctx, in.name, n)
		}
	}
}

// drain moves finished results into the sink until ctx is done.
func (a *App) drain(ctx context.Context) {
	t := time.NewTicker(drainInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, r := range a.sink.Drain(a.queue) {
				slog.Debug("transcript", "source", r.Source, "latency", r.Latency, "text", r.Text)
			}
		}
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Sink returns the result sink holding the latest transcript per source.
func (a *App) Sink() *transcribe.Sink { return a.sink }

// Latest returns the most recent transcript for source.
func (a *App) Latest(source string) (transcribe.Result, bool) {
	a.sink.Drain(a.queue)
	return a.sink.Latest(source)
}

// statuser is implemented by transcribers that report per-backend state.
type statuser interface {
	Status() []resilience.EntryStatus
}

// Status returns a point-in-time snapshot of every pipeline stage.
func (a *App) Status() Status {
	segs := a.mux.Status()
	st := Status{
		Sources:    make([]SourceStatus, 0, len(a.inputs)),
		Queue:      a.queue.Stats(),
		Classifier: a.selector.Mode(),
	}
	for i, in := range a.inputs {
		st.Sources = append(st.Sources, SourceStatus{
			Status:  segs[i],
			Running: in.running.Load(),
			Evicted: in.buf.Evicted(),
			Results: a.sink.Count(in.name),
		})
	}
	if s, ok := a.providers.Transcriber.(statuser); ok {
		st.Transcribers = s.Status()
	}
	return st
}

// Checkers returns the readiness checks of the pipeline: at least one source
// must be capturing and at least one transcriber backend must accept calls.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		{Name: "capture", Check: func(context.Context) error {
			for _, in := range a.inputs {
				if in.running.Load() {
					return nil
				}
			}
			return errors.New("no audio source is capturing")
		}},
		{Name: "transcriber", Check: func(context.Context) error {
			s, ok := a.providers.Transcriber.(statuser)
			if !ok {
				return nil
			}
			for _, e := range s.Status() {
				if e.State != resilience.StateOpen {
					return nil
				}
			}
			return resilience.ErrCircuitOpen
		}},
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the transcription worker and closes every provider. An
// in-flight job is allowed to finish; pending jobs are abandoned. It respects
// the context deadline: if ctx expires first, remaining closers are skipped
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "pending", a.queue.Stats().Pending, "closers", len(a.closers))

		stopped := make(chan struct{})
		go func() {
			a.queue.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded waiting for transcription")
			shutdownErr = ctx.Err()
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
