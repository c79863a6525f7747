package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/murmur/pkg/provider/stt"
	"github.com/MrWong99/murmur/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. It increments *callCount on
// every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// makeSpeech generates a 440 Hz sine of n samples at 16 kHz.
func makeSpeech(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

// ---- construction ----------------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

// ---- Client -----------------------------------------------------------------

func TestClient_Transcribe_ReturnsText(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, " hello world \n", &calls)

	c, err := whisper.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := c.Transcribe(context.Background(), makeSpeech(16000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestClient_Transcribe_SendsWAVAndFields(t *testing.T) {
	type upload struct {
		header   string
		language string
		model    string
		filename string
	}
	got := make(chan upload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		head := make([]byte, 4)
		_, _ = io.ReadFull(f, head)
		got <- upload{
			header:   string(head),
			language: r.FormValue("language"),
			model:    r.FormValue("model"),
			filename: fh.Filename,
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	c, err := whisper.New(srv.URL, whisper.WithLanguage("de"), whisper.WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Transcribe(context.Background(), makeSpeech(1600)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	u := <-got
	if u.header != "RIFF" {
		t.Errorf("upload header = %q, want RIFF", u.header)
	}
	if u.filename != "audio.wav" {
		t.Errorf("filename = %q, want audio.wav", u.filename)
	}
	if u.language != "de" || u.model != "small" {
		t.Errorf("fields = (%q, %q), want (de, small)", u.language, u.model)
	}
}

func TestClient_Transcribe_EmptyAudio(t *testing.T) {
	c, err := whisper.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestClient_Transcribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := whisper.New(srv.URL)
	if _, err := c.Transcribe(context.Background(), makeSpeech(160)); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestClient_Transcribe_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, _ := whisper.New(srv.URL)
	if _, err := c.Transcribe(context.Background(), makeSpeech(160)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestClient_Transcribe_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Transcribe(ctx, makeSpeech(160)); err == nil {
		t.Fatal("expected error on context timeout")
	}
}

// ---- helpers under test -----------------------------------------------------

func TestJoinSegments(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"  "}, ""},
		{[]string{" Hello.", "  How are you? "}, "Hello. How are you?"},
		{[]string{"a", "", "b"}, "a b"},
	}
	for _, tt := range tests {
		if got := whisper.JoinSegments(tt.in); got != tt.want {
			t.Errorf("JoinSegments(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
