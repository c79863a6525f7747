package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/murmur/pkg/provider/stt"
	"github.com/MrWong99/murmur/pkg/provider/stt/whisper"
)

// modelFromEnv skips the test unless WHISPER_MODEL_PATH names a ggml model.
func modelFromEnv(t *testing.T) *whisper.Native {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	n, err := whisper.NewNative(p, whisper.WithNativeLanguage("en"), whisper.WithNativeThreads(2))
	if err != nil {
		t.Fatalf("NewNative(%q): %v", p, err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNewNative_BadModelPath(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/ggml-base.en.bin"} {
		if _, err := whisper.NewNative(path); err == nil {
			t.Errorf("NewNative(%q) succeeded, want error", path)
		}
	}
}

func TestNative_Transcribe(t *testing.T) {
	n := modelFromEnv(t)

	// One second of silence usually yields no text; it must not fail.
	if _, err := n.Transcribe(context.Background(), make([]float32, 16000)); err != nil {
		t.Fatalf("Transcribe(silence): %v", err)
	}
	if _, err := n.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("Transcribe(nil) err = %v, want ErrEmptyAudio", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Transcribe(ctx, make([]float32, 160)); !errors.Is(err, context.Canceled) {
		t.Errorf("Transcribe(cancelled) err = %v, want context.Canceled", err)
	}
}
