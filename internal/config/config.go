// Package config provides the configuration schema, loader, and provider
// registry for murmur.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Source types understood by the default registry.
const (
	SourceMicrophone = "microphone"
	SourceLoopback   = "loopback"
	SourceStdin      = "stdin"
	SourceFile       = "file"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	VAD         VADConfig         `yaml:"vad"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
}

// ServerConfig holds the metrics/health listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics and /healthz
	// (e.g., ":9464"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes capture.
type AudioConfig struct {
	// TargetSampleRate is the rate every source is resampled to. Every
	// transcriber takes 16 kHz input, so no other value is accepted.
	// Default: 16000.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// CaptureBufferCapSec bounds each source's capture buffer. Default: 30.
	CaptureBufferCapSec int `yaml:"capture_buffer_cap_sec" validate:"gte=1,lte=600"`

	// Sources lists the audio inputs. At least one is required.
	Sources []SourceConfig `yaml:"sources" validate:"dive"`
}

// SourceConfig describes one audio input.
type SourceConfig struct {
	// Name tags results from this source (e.g., "mic", "system").
	Name string `yaml:"name" validate:"required,max=64"`

	// Type selects the registered source factory: microphone, loopback,
	// stdin or file.
	Type string `yaml:"type" validate:"required"`

	// Device is the OS capture device. Empty selects the platform default.
	Device string `yaml:"device"`

	// FFmpegPath overrides the ffmpeg binary for command sources.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// Path is the raw PCM file read by file sources.
	Path string `yaml:"path"`

	// Format describes raw PCM read by stdin and file sources.
	Format PCMFormat `yaml:"format"`

	// Realtime paces stdin and file sources at the audio rate.
	Realtime bool `yaml:"realtime"`

	// BlockMs is the read block length. Default: 20.
	BlockMs int `yaml:"block_ms" validate:"omitempty,gte=5,lte=1000"`
}

// PCMFormat describes raw interleaved PCM.
type PCMFormat struct {
	SampleRate int    `yaml:"sample_rate" validate:"omitempty,gte=8000,lte=192000"`
	Channels   int    `yaml:"channels" validate:"omitempty,gte=1,lte=8"`
	Encoding   string `yaml:"encoding" validate:"omitempty,oneof=s16le f32le"`
}

// SegmenterConfig holds the speech segmentation timing.
type SegmenterConfig struct {
	ClassifierWindowMs int `yaml:"classifier_window_ms" validate:"gte=10,lte=100"`
	MinSpeechMs        int `yaml:"min_speech_ms" validate:"gte=1,lte=10000"` // 0 selects the default
	SilenceThresholdMs int `yaml:"silence_threshold_ms" validate:"gte=50,lte=10000"`
	MaxUtteranceSec    int `yaml:"max_utterance_sec" validate:"gte=1,lte=600"`
	PollIntervalMs     int `yaml:"poll_interval_ms" validate:"gte=1,lte=1000"`
}

// VADConfig selects the speech classifier.
type VADConfig struct {
	// Name selects the registered neural model (e.g., "silero"). Empty or
	// "energy" uses the energy classifier only.
	Name string `yaml:"name"`

	// ModelPath is the neural model file.
	ModelPath string `yaml:"model_path"`

	// SpeechThreshold is the neural probability above which a window is
	// speech. Default: 0.5.
	SpeechThreshold float64 `yaml:"speech_threshold" validate:"gt=0,lt=1"`

	// EnergyFallbackThreshold is the mean-square energy above which a window
	// is speech for the energy classifier. Default: 0.0001.
	EnergyFallbackThreshold float64 `yaml:"energy_fallback_threshold" validate:"gt=0,lt=1"`

	// Options holds model-specific values (e.g., library_path, threads).
	Options map[string]any `yaml:"options"`
}

// TranscriberConfig selects the transcription backends.
type TranscriberConfig struct {
	// Primary is tried first.
	Primary ProviderEntry `yaml:"primary"`

	// Fallbacks are tried in order when the primary fails or its circuit is
	// open.
	Fallbacks []ProviderEntry `yaml:"fallbacks" validate:"dive"`

	// CircuitBreaker tunes the per-backend breakers.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderEntry is the configuration block of one transcription backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "whisper",
	// "whisper-native", "openai").
	Name string `yaml:"name" validate:"required"`

	// APIKey is the authentication key for cloud backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// Model selects a model within the backend. For whisper-native this is
	// the model file path.
	Model string `yaml:"model"`

	// Language is a BCP-47 language hint. Empty lets the backend detect it.
	Language string `yaml:"language" validate:"omitempty,max=16"`

	// Options holds backend-specific values.
	Options map[string]any `yaml:"options"`
}

// CircuitBreakerConfig tunes the transcriber circuit breakers. Zero fields
// take the resilience package defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" validate:"gte=0,lte=1000"`
	ResetTimeout time.Duration `yaml:"reset_timeout" validate:"gte=0"`
	HalfOpenMax  int           `yaml:"half_open_max" validate:"gte=0,lte=100"`
}
