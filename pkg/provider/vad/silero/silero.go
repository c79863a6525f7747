// Package silero runs the Silero VAD v5 ONNX model through ONNX Runtime.
//
// The model takes one 512-sample window of 16 kHz mono float audio plus the
// recurrent state from the previous call and returns a speech probability.
// Each [Model] owns its own state, so create one per audio source.
//
// ONNX Runtime is loaded as a shared library on first use. Set
// Config.LibraryPath (or the ONNXRUNTIME_LIB environment variable) when the
// library is not on the default search path.
package silero

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MrWong99/murmur/pkg/provider/vad"
)

const (
	windowSize = vad.DefaultWindowSize
	sampleRate = 16000
)

// stateShape is the (layers, batch, hidden) shape of the recurrent state.
var stateShape = ort.NewShape(2, 1, 128)

var (
	envOnce sync.Once
	envErr  error
)

// Config configures a [Model].
type Config struct {
	// ModelPath is the path to silero_vad.onnx (v5). Required.
	ModelPath string

	// LibraryPath is the onnxruntime shared library. Empty falls back to
	// ONNXRUNTIME_LIB, then to the platform default name.
	LibraryPath string

	// Threads bounds intra-op parallelism. Zero means 1.
	Threads int
}

// Model is a [vad.Model] backed by an ONNX Runtime session.
type Model struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	state   *ort.Tensor[float32]
	sr      *ort.Tensor[int64]
	output  *ort.Tensor[float32]
	stateN  *ort.Tensor[float32]
	closed  bool
}

// initEnvironment loads the shared library once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv("ONNXRUNTIME_LIB")
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("silero: initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// New loads the model described by cfg.
func New(cfg Config) (*Model, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("silero: model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("silero: model file: %w", err)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	m := &Model{}
	var err error
	if m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, windowSize)); err != nil {
		return nil, fmt.Errorf("silero: input tensor: %w", err)
	}
	if m.state, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: state tensor: %w", err)
	}
	if m.sr, err = ort.NewTensor(ort.NewShape(1), []int64{sampleRate}); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: sr tensor: %w", err)
	}
	if m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: output tensor: %w", err)
	}
	if m.stateN, err = ort.NewEmptyTensor[float32](stateShape); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: stateN tensor: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: session options: %w", err)
	}
	defer opts.Destroy()
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	if err := opts.SetIntraOpNumThreads(threads); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: set threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: set threads: %w", err)
	}

	m.session, err = ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{m.input, m.state, m.sr},
		[]ort.Value{m.output, m.stateN},
		opts,
	)
	if err != nil {
		m.destroy()
		return nil, fmt.Errorf("silero: load model %q: %w", cfg.ModelPath, err)
	}
	return m, nil
}

// Factory returns a [vad.ModelFactory] loading a fresh model from cfg on
// every call.
func Factory(cfg Config) vad.ModelFactory {
	return func() (vad.Model, error) {
		return New(cfg)
	}
}

// Score implements [vad.Model]. The recurrent state is carried to the next
// call.
func (m *Model) Score(window []float32) (float32, error) {
	if len(window) != windowSize {
		return 0, fmt.Errorf("%w: got %d samples, want %d", vad.ErrWindowSize, len(window), windowSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("silero: model closed")
	}

	copy(m.input.GetData(), window)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("silero: run: %w", err)
	}
	copy(m.state.GetData(), m.stateN.GetData())
	return m.output.GetData()[0], nil
}

// Reset implements [vad.Model]. It zeroes the recurrent state.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	clear(m.state.GetData())
}

// WindowSize implements [vad.Model].
func (m *Model) WindowSize() int { return windowSize }

// Close implements [vad.Model].
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.destroy()
}

// destroy frees every allocated native object.
func (m *Model) destroy() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
	}
	errs = append(errs,
		destroyTensor(m.input),
		destroyTensor(m.state),
		destroyTensor(m.sr),
		destroyTensor(m.output),
		destroyTensor(m.stateN),
	)
	return errors.Join(errs...)
}

func destroyTensor[T ort.TensorData](t *ort.Tensor[T]) error {
	if t == nil {
		return nil
	}
	return t.Destroy()
}

var _ vad.Model = (*Model)(nil)
