package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/MrWong99/murmur/pkg/audio/source"
	"github.com/MrWong99/murmur/pkg/provider/stt"
	"github.com/MrWong99/murmur/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TranscriberFactory builds a transcriber from its config entry.
type TranscriberFactory func(ProviderEntry) (stt.Transcriber, error)

// VADFactory returns a model factory for the neural classifier. The returned
// [vad.ModelFactory] is called once per audio source.
type VADFactory func(VADConfig) (vad.ModelFactory, error)

// SourceFactory opens an audio source. ctx bounds the source's lifetime.
type SourceFactory func(ctx context.Context, cfg SourceConfig) (source.Source, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	transcribers map[string]TranscriberFactory
	vad          map[string]VADFactory
	sources      map[string]SourceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcribers: make(map[string]TranscriberFactory),
		vad:          make(map[string]VADFactory),
		sources:      make(map[string]SourceFactory),
	}
}

// RegisterTranscriber registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribers[name] = factory
}

// RegisterVAD registers a neural VAD model factory under name.
func (r *Registry) RegisterVAD(name string, factory VADFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSource registers an audio source factory under a source type.
func (r *Registry) RegisterSource(typ string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[typ] = factory
}

// CreateTranscriber instantiates the transcriber registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcribers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD returns the model factory registered under cfg.Name.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.ModelFactory, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSource opens the source registered under cfg.Type.
func (r *Registry) CreateSource(ctx context.Context, cfg SourceConfig) (source.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source/%q", ErrProviderNotRegistered, cfg.Type)
	}
	return factory(ctx, cfg)
}

// Transcribers returns the registered transcriber names, sorted.
func (r *Registry) Transcribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transcribers))
	for name := range r.transcribers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// OptionString returns opts[key] as a string, or def when absent.
func OptionString(opts map[string]any, key, def string) string {
	v, ok := opts[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// OptionInt returns opts[key] as an int, or def when absent or not numeric.
func OptionInt(opts map[string]any, key string, def int) int {
	v, ok := opts[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}
