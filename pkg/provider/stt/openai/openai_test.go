package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/murmur/pkg/provider/stt"
	"github.com/MrWong99/murmur/pkg/provider/stt/openai"
)

// newTranscriptionServer serves POST /v1/audio/transcriptions and records the
// multipart fields of the last request.
func newTranscriptionServer(t *testing.T, status int, text string, fields chan<- map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/audio/transcriptions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if fields != nil {
			_, fh, _ := r.FormFile("file")
			name := ""
			if fh != nil {
				name = fh.Filename
			}
			fields <- map[string]string{
				"model":    r.FormValue("model"),
				"language": r.FormValue("language"),
				"file":     name,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	tr, err := openai.New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Model() != openai.DefaultModel {
		t.Errorf("model = %q, want %q", tr.Model(), openai.DefaultModel)
	}
}

func TestTranscribe_ReturnsTrimmedText(t *testing.T) {
	fields := make(chan map[string]string, 1)
	srv := newTranscriptionServer(t, http.StatusOK, "  good evening  ", fields)

	tr, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := tr.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "good evening" {
		t.Errorf("text = %q, want %q", text, "good evening")
	}

	f := <-fields
	if f["model"] != "whisper-1" || f["language"] != "en" || f["file"] != "audio.wav" {
		t.Errorf("unexpected fields: %v", f)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusInternalServerError, "", nil)
	tr, _ := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"))
	if _, err := tr.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	tr, _ := openai.New("sk-test", "")
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}
