package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often [Watcher.Run] polls the file.
const DefaultWatchInterval = 5 * time.Second

// Reload describes one accepted config change.
type Reload struct {
	Old, New *Config
	Diff     ConfigDiff
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval of [Watcher.Run].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithOnReload registers fn to run after every accepted change, outside the
// watcher lock.
func WithOnReload(fn func(Reload)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// fileState identifies one version of the watched file.
type fileState struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher tracks a config file. An edit that fails to parse or validate is
// logged and skipped; [Watcher.Current] keeps returning the last valid config.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(Reload)

	mu      sync.Mutex
	current *Config
	state   fileState
}

// NewWatcher loads path and returns a watcher for it. Polling starts with
// [Watcher.Run].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval}
	for _, o := range opts {
		o(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.state = cfg, st
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done. It always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config: reload rejected, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// Check compares the file with the last accepted version. It reports whether
// a new config was accepted; a changed file that does not load returns the
// load error.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.state.mtime)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	cfg, st, err := w.read()

	w.mu.Lock()
	if err != nil {
		// Remember the mtime so a broken file is reported once per edit.
		w.state.mtime = info.ModTime()
		w.mu.Unlock()
		return false, err
	}
	if st.sum == w.state.sum {
		w.state = st
		w.mu.Unlock()
		return false, nil
	}
	r := Reload{Old: w.current, New: cfg, Diff: Diff(w.current, cfg)}
	w.current, w.state = cfg, st
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path, "restart_required", r.Diff.RestartRequired)
	if w.onReload != nil {
		w.onReload(r)
	}
	return true, nil
}

// read loads and validates the file and fingerprints its content.
func (w *Watcher) read() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
