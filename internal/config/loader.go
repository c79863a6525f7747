package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/murmur/pkg/provider/stt"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":    {"whisper", "whisper-native", "openai"},
	"vad":    {"energy", "silero"},
	"source": {SourceMicrophone, SourceLoopback, SourceStdin, SourceFile},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultTargetSampleRate        = stt.SampleRate
	DefaultCaptureBufferCapSec     = 30
	DefaultClassifierWindowMs      = 32
	DefaultMinSpeechMs             = 300
	DefaultSilenceThresholdMs      = 300
	DefaultMaxUtteranceSec         = 30
	DefaultPollIntervalMs          = 10
	DefaultSpeechThreshold         = 0.5
	DefaultEnergyFallbackThreshold = 0.0001
)

// sileroWindow is the only window size the Silero model accepts.
const sileroWindow = 512

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report YAML key names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued tunable with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	a := &cfg.Audio
	if a.TargetSampleRate == 0 {
		a.TargetSampleRate = DefaultTargetSampleRate
	}
	if a.CaptureBufferCapSec == 0 {
		a.CaptureBufferCapSec = DefaultCaptureBufferCapSec
	}

	s := &cfg.Segmenter
	if s.ClassifierWindowMs == 0 {
		s.ClassifierWindowMs = DefaultClassifierWindowMs
	}
	if s.MinSpeechMs == 0 {
		s.MinSpeechMs = DefaultMinSpeechMs
	}
	if s.SilenceThresholdMs == 0 {
		s.SilenceThresholdMs = DefaultSilenceThresholdMs
	}
	if s.MaxUtteranceSec == 0 {
		s.MaxUtteranceSec = DefaultMaxUtteranceSec
	}
	if s.PollIntervalMs == 0 {
		s.PollIntervalMs = DefaultPollIntervalMs
	}

	v := &cfg.VAD
	if v.SpeechThreshold == 0 {
		v.SpeechThreshold = DefaultSpeechThreshold
	}
	if v.EnergyFallbackThreshold == 0 {
		v.EnergyFallbackThreshold = DefaultEnergyFallbackThreshold
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				errs = append(errs, fmt.Errorf("%s %s", fieldPath(e), formatValidationMessage(e)))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if r := cfg.Audio.TargetSampleRate; r != stt.SampleRate {
		errs = append(errs, fmt.Errorf("audio.target_sample_rate must be %d, the rate transcribers take (got %d)", stt.SampleRate, r))
	}

	// Sources
	if len(cfg.Audio.Sources) == 0 {
		errs = append(errs, errors.New("audio.sources must list at least one source"))
	}
	seen := make(map[string]int, len(cfg.Audio.Sources))
	for i, src := range cfg.Audio.Sources {
		prefix := fmt.Sprintf("audio.sources[%d]", i)
		if src.Name != "" {
			if prev, ok := seen[src.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of audio.sources[%d]", prefix, src.Name, prev))
			}
			seen[src.Name] = i
		}
		validateProviderName("source", src.Type)
		if src.Type == SourceFile && src.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required when type is file", prefix))
		}
	}

	// Segmenter
	seg := cfg.Segmenter
	if seg.MaxUtteranceSec*1000 <= seg.MinSpeechMs {
		errs = append(errs, fmt.Errorf("segmenter.max_utterance_sec (%ds) must exceed segmenter.min_speech_ms (%dms)", seg.MaxUtteranceSec, seg.MinSpeechMs))
	}
	if seg.MaxUtteranceSec > cfg.Audio.CaptureBufferCapSec {
		slog.Warn("segmenter.max_utterance_sec exceeds audio.capture_buffer_cap_sec; leading context may be truncated",
			"max_utterance_sec", seg.MaxUtteranceSec,
			"capture_buffer_cap_sec", cfg.Audio.CaptureBufferCapSec,
		)
	}
	if seg.PollIntervalMs > seg.ClassifierWindowMs {
		slog.Warn("segmenter.poll_interval_ms is longer than the classifier window; speech onsets will be detected late",
			"poll_interval_ms", seg.PollIntervalMs,
			"classifier_window_ms", seg.ClassifierWindowMs,
		)
	}

	// VAD
	validateProviderName("vad", cfg.VAD.Name)
	if cfg.VAD.Name == "silero" {
		if cfg.VAD.ModelPath == "" {
			errs = append(errs, errors.New("vad.model_path is required when vad.name is silero"))
		}
		if w := seg.ClassifierWindowMs * cfg.Audio.TargetSampleRate / 1000; w != sileroWindow {
			errs = append(errs, fmt.Errorf("vad: silero needs %d-sample windows, got %d (segmenter.classifier_window_ms=%d at %d Hz)",
				sileroWindow, w, seg.ClassifierWindowMs, cfg.Audio.TargetSampleRate))
		}
	}

	// Transcriber
	validateProviderName("stt", cfg.Transcriber.Primary.Name)
	names := map[string]bool{cfg.Transcriber.Primary.Name: true}
	for i, fb := range cfg.Transcriber.Fallbacks {
		validateProviderName("stt", fb.Name)
		if fb.Name != "" && names[fb.Name] && fb.Model == cfg.Transcriber.Primary.Model {
			slog.Warn("transcriber fallback duplicates an earlier backend", "index", i, "name", fb.Name)
		}
		names[fb.Name] = true
	}

	return errors.Join(errs...)
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// formatValidationMessage creates a human-readable message from a validator
// error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be a host:port address"
	default:
		return fmt.Sprintf("failed %q validation", e.Tag())
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
