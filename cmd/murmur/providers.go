package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/murmur/internal/app"
	"github.com/MrWong99/murmur/internal/config"
	"github.com/MrWong99/murmur/internal/observe"
	"github.com/MrWong99/murmur/internal/resilience"
	"github.com/MrWong99/murmur/pkg/audio"
	"github.com/MrWong99/murmur/pkg/audio/source"
	"github.com/MrWong99/murmur/pkg/provider/stt"
	oaistt "github.com/MrWong99/murmur/pkg/provider/stt/openai"
	"github.com/MrWong99/murmur/pkg/provider/stt/whisper"
	"github.com/MrWong99/murmur/pkg/provider/vad"
	"github.com/MrWong99/murmur/pkg/provider/vad/silero"
)

// registerBuiltins wires every built-in factory into reg.
func registerBuiltins(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterTranscriber("whisper", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if e.Language != "" {
			opts = append(opts, whisper.WithLanguage(e.Language))
		}
		return whisper.New(e.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(e config.ProviderEntry) (stt.Transcriber, error) {
		opts := []whisper.NativeOption{
			whisper.WithNativeThreads(config.OptionInt(e.Options, "threads", 0)),
		}
		if e.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(e.Language))
		}
		return whisper.NewNative(e.Model, opts...)
	})

	reg.RegisterTranscriber("openai", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if e.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(e.BaseURL))
		}
		if e.Language != "" {
			opts = append(opts, oaistt.WithLanguage(e.Language))
		}
		if p := config.OptionString(e.Options, "prompt", ""); p != "" {
			opts = append(opts, oaistt.WithPrompt(p))
		}
		if s := config.OptionInt(e.Options, "timeout_sec", 0); s > 0 {
			opts = append(opts, oaistt.WithTimeout(time.Duration(s)*time.Second))
		}
		return oaistt.New(e.APIKey, e.Model, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD("energy", func(config.VADConfig) (vad.ModelFactory, error) {
		return nil, nil
	})
	reg.RegisterVAD("silero", func(c config.VADConfig) (vad.ModelFactory, error) {
		return silero.Factory(silero.Config{
			ModelPath:   c.ModelPath,
			LibraryPath: config.OptionString(c.Options, "library_path", ""),
			Threads:     config.OptionInt(c.Options, "threads", 0),
		}), nil
	})

	// ── Sources ───────────────────────────────────────────────────────────────
	command := func(ctx context.Context, c config.SourceConfig) (source.Source, error) {
		return source.NewCommand(ctx, source.CommandConfig{
			Kind:          source.Kind(c.Type),
			Device:        c.Device,
			FFmpegPath:    c.FFmpegPath,
			BlockDuration: time.Duration(c.BlockMs) * time.Millisecond,
		})
	}
	reg.RegisterSource(config.SourceMicrophone, command)
	reg.RegisterSource(config.SourceLoopback, command)

	reg.RegisterSource(config.SourceStdin, func(_ context.Context, c config.SourceConfig) (source.Source, error) {
		f, opts, err := readerParams(c)
		if err != nil {
			return nil, err
		}
		return source.NewReader(os.Stdin, f, opts...)
	})
	reg.RegisterSource(config.SourceFile, func(_ context.Context, c config.SourceConfig) (source.Source, error) {
		f, opts, err := readerParams(c)
		if err != nil {
			return nil, err
		}
		fh, err := os.Open(c.Path)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", c.Name, err)
		}
		r, err := source.NewReader(fh, f, opts...)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return r, nil
	})
}

// readerParams derives the PCM format and reader options of a stream source.
// Unset format fields default to 16 kHz mono s16le.
func readerParams(c config.SourceConfig) (audio.Format, []source.ReaderOption, error) {
	enc, err := audio.ParseEncoding(c.Format.Encoding)
	if err != nil {
		return audio.Format{}, nil, err
	}
	f := audio.Format{SampleRate: c.Format.SampleRate, Channels: c.Format.Channels, Encoding: enc}
	if f.SampleRate == 0 {
		f.SampleRate = audio.DefaultSampleRate
	}
	if f.Channels == 0 {
		f.Channels = 1
	}

	var opts []source.ReaderOption
	if c.BlockMs > 0 {
		opts = append(opts, source.WithBlockDuration(time.Duration(c.BlockMs)*time.Millisecond))
	}
	if c.Realtime {
		opts = append(opts, source.WithRealtime())
	}
	return f, opts, nil
}

// buildProviders instantiates the transcriber chain, the VAD model factory
// and every audio source. On error everything already opened is closed.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, m *observe.Metrics) (_ *app.Providers, err error) {
	p := &app.Providers{}
	defer func() {
		if err != nil {
			closeProviders(p)
		}
	}()

	p.Transcriber, err = buildTranscriber(cfg.Transcriber, reg, m)
	if err != nil {
		return nil, err
	}

	if name := cfg.VAD.Name; name != "" {
		p.Models, err = reg.CreateVAD(cfg.VAD)
		if err != nil {
			return nil, fmt.Errorf("vad %q: %w", name, err)
		}
	}

	for _, sc := range cfg.Audio.Sources {
		src, err := reg.CreateSource(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		p.Inputs = append(p.Inputs, app.Input{Name: sc.Name, Source: src})
		slog.Info("opened audio source", "source", sc.Name, "type", sc.Type)
	}
	return p, nil
}

// buildTranscriber creates the primary and fallback transcribers behind a
// circuit-breaking failover chain.
func buildTranscriber(tc config.TranscriberConfig, reg *config.Registry, m *observe.Metrics) (stt.Transcriber, error) {
	primary, err := reg.CreateTranscriber(tc.Primary)
	if err != nil {
		return nil, fmt.Errorf("transcriber %q: %w", tc.Primary.Name, err)
	}

	fb := resilience.NewTranscriberFallback(primary, tc.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  tc.CircuitBreaker.MaxFailures,
			ResetTimeout: tc.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  tc.CircuitBreaker.HalfOpenMax,
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	})
	for _, e := range tc.Fallbacks {
		t, err := reg.CreateTranscriber(e)
		if err != nil {
			_ = fb.Close()
			return nil, fmt.Errorf("fallback transcriber %q: %w", e.Name, err)
		}
		fb.AddFallback(e.Name, t)
	}
	slog.Info("transcriber ready", "primary", tc.Primary.Name, "fallbacks", len(tc.Fallbacks))
	return fb, nil
}

// closeProviders releases providers that never reached an [app.App].
func closeProviders(p *app.Providers) {
	var errs []error
	if p.Transcriber != nil {
		errs = append(errs, stt.Close(p.Transcriber))
	}
	for _, in := range p.Inputs {
		errs = append(errs, in.Source.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("failed to close providers", "err", err)
	}
}
