// Package segment turns a stream of classified audio into utterances.
//
// A [Segmenter] owns nothing but its utterance buffer: it polls one source's
// [audio.CaptureBuffer], asks a [vad.Classifier] whether the most recent
// window is speech, and moves samples from the capture buffer into the
// utterance it is assembling. Finished utterances are handed to a [Submitter]
// as immutable [Job] values.
//
// The segmenter never blocks on transcription. Submit is expected to return
// immediately; the transcription queue implements it with a non-blocking
// enqueue.
package segment

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/murmur/internal/observe"
	"github.com/MrWong99/murmur/pkg/audio"
	"github.com/MrWong99/murmur/pkg/provider/vad"
)

// State is the segmenter's speech state.
type State int

const (
	// StateSilence is the initial state: no utterance is being assembled.
	StateSilence State = iota

	// StateSpeaking means an utterance is open and receiving samples.
	StateSpeaking
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Job is one finalized utterance ready for transcription. Samples are mono
// float32 at the segmenter's sample rate and are never modified after the
// job is created.
type Job struct {
	Source   string
	Samples  []float32
	Duration time.Duration
	Created  time.Time
}

// Submitter accepts finalized utterances. Enqueue must not block.
type Submitter interface {
	Enqueue(Job)
}

// SubmitterFunc adapts a plain function to [Submitter].
type SubmitterFunc func(Job)

// Enqueue calls f(j).
func (f SubmitterFunc) Enqueue(j Job) { f(j) }

// Config holds segmenter timing parameters. Zero fields take the values from
// [DefaultConfig].
type Config struct {
	// WindowMs is the classifier window length.
	WindowMs int

	// MinSpeechMs is the shortest voiced span that is transcribed.
	MinSpeechMs int

	// SilenceThresholdMs is the trailing silence that ends an utterance.
	SilenceThresholdMs int

	// MaxUtteranceSec caps an utterance; longer speech is split.
	MaxUtteranceSec int

	// PollInterval is the tick period used by [Segmenter.Run] and [Mux.Run].
	PollInterval time.Duration

	// SampleRate is the rate of the samples in the capture buffer.
	SampleRate int
}

// DefaultConfig returns the default parameters: 32 ms windows, 300 ms
// minimum speech, 300 ms trailing silence, 30 s cap, 10 ms polling at 16 kHz.
func DefaultConfig() Config {
	return Config{
		WindowMs:           32,
		MinSpeechMs:        300,
		SilenceThresholdMs: 300,
		MaxUtteranceSec:    30,
		PollInterval:       10 * time.Millisecond,
		SampleRate:         audio.DefaultSampleRate,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowMs <= 0 {
		c.WindowMs = d.WindowMs
	}
	if c.MinSpeechMs <= 0 {
		c.MinSpeechMs = d.MinSpeechMs
	}
	if c.SilenceThresholdMs <= 0 {
		c.SilenceThresholdMs = d.SilenceThresholdMs
	}
	if c.MaxUtteranceSec <= 0 {
		c.MaxUtteranceSec = d.MaxUtteranceSec
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	return c
}

func msToSamples(ms, rate int) int { return ms * rate / 1000 }

// EventKind distinguishes [Event] values.
type EventKind int

const (
	// EventOnset fires when the segmenter enters [StateSpeaking].
	EventOnset EventKind = iota

	// EventFinalize fires for every closed utterance, kept or discarded.
	EventFinalize
)

// Event describes a segmenter transition.
type Event struct {
	Kind   EventKind
	Source string

	// Outcome is set for EventFinalize: one of observe.OutcomeQueued,
	// observe.OutcomeTooShort or observe.OutcomeMaxLength.
	Outcome string

	// Samples is the utterance length for EventFinalize.
	Samples int

	// Voiced is the voiced span length the minimum-speech check used.
	Voiced int
}

// Observer receives segmenter events. It is called from the ticking
// goroutine with no segmenter lock held.
type Observer func(Event)

// Option configures a [Segmenter].
type Option func(*Segmenter)

// WithObserver registers fn for state-transition events.
func WithObserver(fn Observer) Option {
	return func(s *Segmenter) { s.observer = fn }
}

// WithMetrics records utterance outcomes on m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = m }
}

// WithClock overrides the clock used to stamp [Job.Created].
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// Status is a point-in-time view of a segmenter.
type Status struct {
	Source       string
	State        State
	BufferLen    int
	UtteranceLen int
	LastSpeech   bool
	LastScore    float64
	Classifier   string
}

// Segmenter is the speech/silence state machine for one audio source.
//
// Tick, Flush and Run must be driven from a single goroutine. Status and
// UtteranceLen may be called from any goroutine.
type Segmenter struct {
	source   string
	buf      *audio.CaptureBuffer
	cls      vad.Classifier
	sub      Submitter
	cfg      Config
	observer Observer
	metrics  *observe.Metrics
	now      func() time.Time

	window       int
	minSpeech    int
	silenceLimit int
	maxSamples   int
	preRoll      int // leading context kept before the onset window

	mu         sync.Mutex
	state      State
	utterance  []float32
	silence    int // trailing silent samples since the last speech snapshot
	onset      int // utterance index where the voiced span starts
	voicedEnd  int // utterance length at the end of the last speech snapshot
	lastResult vad.Result
}

// New creates a segmenter for source reading from buf.
func New(source string, buf *audio.CaptureBuffer, cls vad.Classifier, sub Submitter, cfg Config, opts ...Option) *Segmenter {
	cfg = cfg.withDefaults()
	s := &Segmenter{
		source:       source,
		buf:          buf,
		cls:          cls,
		sub:          sub,
		cfg:          cfg,
		now:          time.Now,
		window:       max(1, msToSamples(cfg.WindowMs, cfg.SampleRate)),
		minSpeech:    msToSamples(cfg.MinSpeechMs, cfg.SampleRate),
		silenceLimit: msToSamples(cfg.SilenceThresholdMs, cfg.SampleRate),
		maxSamples:   cfg.MaxUtteranceSec * cfg.SampleRate,
	}
	s.preRoll = min(s.silenceLimit, s.maxSamples/2)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Source returns the source name.
func (s *Segmenter) Source() string { return s.source }

// finalized is an utterance closed during one tick, submitted after the
// lock is released.
type finalized struct {
	samples []float32
	outcome string
	voiced  int
}

// Tick runs one evaluation step.
func (s *Segmenter) Tick() {
	snap, cur := s.buf.Peek()
	if len(snap) < s.window {
		return
	}
	res := s.cls.Classify(snap[len(snap)-s.window:])

	s.mu.Lock()
	s.lastResult = res
	if s.state == StateSilence && !res.IsSpeech {
		// Keep the buffer as leading context for the next onset.
		s.mu.Unlock()
		return
	}
	s.buf.Release(cur)

	var (
		done       []finalized
		onset      bool
		resetModel bool
	)
	switch {
	case s.state == StateSilence:
		s.state = StateSpeaking
		if excess := len(snap) - s.window - s.preRoll; excess > 0 {
			snap = snap[excess:]
		}
		s.utterance = snap
		s.onset = len(snap) - s.window
		s.voicedEnd = len(snap)
		s.silence = 0
		onset = true
		done, resetModel = s.splitLocked()

	case res.IsSpeech:
		s.silence = 0
		s.utterance = append(s.utterance, snap...)
		s.voicedEnd = len(s.utterance)
		done, resetModel = s.splitLocked()

	default:
		s.silence += len(snap)
		s.utterance = append(s.utterance, snap...)
		done, resetModel = s.splitLocked()
		if s.state == StateSpeaking && s.silence >= s.silenceLimit {
			done = append(done, s.finalizeLocked())
			resetModel = true
		}
	}
	s.mu.Unlock()

	if onset {
		s.emit(Event{Kind: EventOnset, Source: s.source})
	}
	if resetModel {
		s.cls.Reset()
	}
	s.submit(done)
}

// splitLocked closes utterances at exactly the maximum length while the open
// utterance is at or beyond it. The remainder stays open. When nothing
// remains the segmenter returns to silence and resetModel is true.
func (s *Segmenter) splitLocked() (done []finalized, resetModel bool) {
	for s.maxSamples > 0 && len(s.utterance) >= s.maxSamples {
		head := s.utterance[:s.maxSamples:s.maxSamples]
		rest := slices.Clone(s.utterance[s.maxSamples:])
		done = append(done, finalized{
			samples: head,
			outcome: observe.OutcomeMaxLength,
			voiced:  max(0, min(s.voicedEnd, s.maxSamples)-s.onset),
		})
		s.utterance = rest
		s.onset = 0
		s.voicedEnd = max(0, s.voicedEnd-s.maxSamples)
	}
	if len(done) > 0 && len(s.utterance) == 0 {
		s.resetLocked()
		resetModel = true
	}
	return done, resetModel
}

// finalizeLocked closes the open utterance and returns to silence.
func (s *Segmenter) finalizeLocked() finalized {
	voiced := max(0, s.voicedEnd-s.onset)
	f := finalized{samples: s.utterance, outcome: observe.OutcomeQueued, voiced: voiced}
	if voiced < s.minSpeech {
		f.outcome = observe.OutcomeTooShort
	}
	s.resetLocked()
	return f
}

func (s *Segmenter) resetLocked() {
	s.state = StateSilence
	s.utterance = nil
	s.silence = 0
	s.onset = 0
	s.voicedEnd = 0
}

func (s *Segmenter) submit(done []finalized) {
	ctx := context.Background()
	for _, f := range done {
		length := audio.DurationOf(len(f.samples), s.cfg.SampleRate)
		s.metrics.RecordUtterance(ctx, s.source, f.outcome, length)
		s.emit(Event{
			Kind:    EventFinalize,
			Source:  s.source,
			Outcome: f.outcome,
			Samples: len(f.samples),
			Voiced:  f.voiced,
		})
		if f.outcome == observe.OutcomeTooShort {
			slog.Debug("segment: utterance too short, discarded",
				"source", s.source,
				"voiced", audio.DurationOf(f.voiced, s.cfg.SampleRate),
				"length", length,
			)
			continue
		}
		slog.Debug("segment: utterance finalized",
			"source", s.source, "length", length, "outcome", f.outcome)
		s.sub.Enqueue(Job{
			Source:   s.source,
			Samples:  f.samples,
			Duration: length,
			Created:  s.now(),
		})
	}
}

func (s *Segmenter) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}

// Flush evaluates whatever is left in the capture buffer and closes the open
// utterance, if any. Audio past the maximum length is split off as usual and
// the remainder gets the minimum-speech check. It is used at end of input.
func (s *Segmenter) Flush() {
	s.Tick()

	s.mu.Lock()
	if s.state != StateSpeaking {
		s.mu.Unlock()
		return
	}
	if snap, cur := s.buf.Peek(); len(snap) > 0 {
		s.buf.Release(cur)
		s.utterance = append(s.utterance, snap...)
	}
	done, _ := s.splitLocked()
	if s.state == StateSpeaking {
		done = append(done, s.finalizeLocked())
	}
	s.mu.Unlock()

	s.cls.Reset()
	s.submit(done)
}

// Run ticks every PollInterval until ctx is done.
func (s *Segmenter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// State returns the current speech state.
func (s *Segmenter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UtteranceLen returns the number of samples in the open utterance.
func (s *Segmenter) UtteranceLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.utterance)
}

// Status returns a snapshot of the segmenter and its buffer.
func (s *Segmenter) Status() Status {
	s.mu.Lock()
	st := Status{
		Source:       s.source,
		State:        s.state,
		UtteranceLen: len(s.utterance),
		LastSpeech:   s.lastResult.IsSpeech,
		LastScore:    s.lastResult.Score,
	}
	s.mu.Unlock()
	st.BufferLen = s.buf.Len()
	st.Classifier = s.cls.Name()
	return st
}

// Close releases the classifier.
func (s *Segmenter) Close() error {
	return s.cls.Close()
}
