package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/stt/whisper"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

type inferenceRequest struct {
	language string
	model    string
	wav      []byte
}

// newMockServer answers POST /inference with responseText and records the
// last request's form fields.
func newMockServer(t *testing.T, responseText string, got *inferenceRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got != nil {
			got.language = r.FormValue("language")
			got.model = r.FormValue("model")
			f, _, err := r.FormFile("file")
			if err == nil {
				got.wav, _ = io.ReadAll(f)
				f.Close()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func speechBuffer(n int) audio.Buffer {
	s := make([]float32, n)
	for i := range s {
		s[i] = 0.3
	}
	return audio.Buffer{Samples: s, SampleRate: 16000}
}

// ─── tests ───────────────────────────────────────────────────────────────────

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestTranscribe_SendsWAVAndFields(t *testing.T) {
	t.Parallel()

	var got inferenceRequest
	srv := newMockServer(t, "  Gravity pulls things down.  ", &got)
	p, err := whisper.New(srv.URL+"/", whisper.WithLanguage("en"), whisper.WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Transcribe(context.Background(), speechBuffer(1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Gravity pulls things down." {
		t.Errorf("text: got %q, want trimmed transcript", text)
	}
	if got.language != "en" || got.model != "base.en" {
		t.Errorf("fields: got language=%q model=%q", got.language, got.model)
	}
	pcm, f, err := audio.WAVPCM(got.wav)
	if err != nil {
		t.Fatalf("uploaded file is not a WAV: %v", err)
	}
	if f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("wav format: got %s, want 16000Hz/1ch", f)
	}
	if len(pcm) != 3200 {
		t.Errorf("wav payload: got %d bytes, want 3200", len(pcm))
	}
}

func TestTranscribe_EmptyBufferSkipsServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be called for an empty buffer")
	}))
	defer srv.Close()
	p, _ := whisper.New(srv.URL)

	text, err := p.Transcribe(context.Background(), audio.Buffer{SampleRate: 16000})
	if err != nil || text != "" {
		t.Errorf("got (%q, %v), want (\"\", nil)", text, err)
	}
}

func TestTranscribe_BlankMarkersBecomeEmpty(t *testing.T) {
	t.Parallel()

	for _, marker := range []string{"[BLANK_AUDIO]", " (silence) ", "[Music]"} {
		srv := newMockServer(t, marker, nil)
		p, _ := whisper.New(srv.URL)
		text, err := p.Transcribe(context.Background(), speechBuffer(160))
		if err != nil {
			t.Fatalf("%q: %v", marker, err)
		}
		if text != "" {
			t.Errorf("%q: got %q, want empty", marker, text)
		}
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	p, _ := whisper.New(srv.URL)

	_, err := p.Transcribe(context.Background(), speechBuffer(160))
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("got %v, want HTTP 500 error", err)
	}
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, "hello", nil)
	p, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, speechBuffer(160)); err == nil {
		t.Error("expected error for cancelled context")
	}
}
