package coqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

// ---- test helpers ----

// drainAudio concatenates every PCM chunk and returns the first error seen.
func drainAudio(ch <-chan tts.Chunk) ([]byte, error) {
	var (
		out []byte
		err error
	)
	for c := range ch {
		if c.Err != nil && err == nil {
			err = c.Err
		}
		out = append(out, c.PCM...)
	}
	return out, err
}

func mustNew(t *testing.T, serverURL string, opts ...Option) *Provider {
	t.Helper()
	p, err := New(serverURL, opts...)
	if err != nil {
		t.Fatalf("New(%q): unexpected error: %v", serverURL, err)
	}
	return p
}

// ---- Provider creation ----

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := mustNew(t, "http://localhost:5002/")
		if p.serverURL != "http://localhost:5002" {
			t.Errorf("serverURL = %q, want trailing slash stripped", p.serverURL)
		}
		if p.language != defaultLanguage || p.apiMode != APIModeStandard {
			t.Errorf("got language=%q mode=%q, want defaults", p.language, p.apiMode)
		}
		if p.httpClient.Timeout != defaultTimeout {
			t.Errorf("timeout = %v, want %v", p.httpClient.Timeout, defaultTimeout)
		}
	})

	t.Run("options", func(t *testing.T) {
		p := mustNew(t, "http://x", WithLanguage("de"), WithTimeout(time.Second), WithAPIMode(APIModeXTTS), WithOutputSampleRate(48000))
		if p.language != "de" || p.httpClient.Timeout != time.Second || p.apiMode != APIModeXTTS || p.outputRate != 48000 {
			t.Errorf("options not applied: %+v", p)
		}
	})

	t.Run("empty url", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})
}

// ---- synthesis ----

func TestSynthesizeStream_Standard(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiTTSEndpoint || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		texts = append(texts, r.URL.Query().Get("text"))
		mu.Unlock()
		if got := r.URL.Query().Get("language_id"); got != "en" {
			t.Errorf("language_id = %q, want en", got)
		}
		_, _ = w.Write(audio.EncodeWAV(make([]byte, 200), 16000, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL)
	ch, err := p.SynthesizeStream(context.Background(), tts.Text("Hello there. How are you?"), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm, err := drainAudio(ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(pcm) != 400 {
		t.Errorf("pcm bytes = %d, want 400", len(pcm))
	}
	if len(texts) != 2 {
		t.Errorf("requests = %d, want one per sentence (%q)", len(texts), texts)
	}
}

func TestSynthesizeStream_XTTSResamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text       string `json:"text"`
			SpeakerWav string `json:"speaker_wav"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.SpeakerWav != "tutor" {
			t.Errorf("speaker_wav = %q, want tutor", body.SpeakerWav)
		}
		_, _ = w.Write(audio.EncodeWAV(make([]byte, 2400), 24000, 1))
	}))
	defer srv.Close()

	p := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS), WithOutputSampleRate(48000))
	ch, err := p.SynthesizeStream(context.Background(), tts.Text("Hi."), tts.VoiceProfile{ID: "tutor"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm, err := drainAudio(ch)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(pcm) != 4800 {
		t.Errorf("pcm bytes = %d, want 4800 after 2x upsample", len(pcm))
	}
}

func TestSynthesizeStream_XTTSRequiresVoice(t *testing.T) {
	p := mustNew(t, "http://x", WithAPIMode(APIModeXTTS))
	if _, err := p.SynthesizeStream(context.Background(), tts.Text("x"), tts.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty voice in XTTS mode")
	}
}

func TestSynthesizeStream_ServerErrorIsInBand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch, err := mustNew(t, srv.URL).SynthesizeStream(context.Background(), tts.Text("Hello."), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if _, err := drainAudio(ch); err == nil {
		t.Fatal("expected in-band error chunk")
	}
}

// ---- voices ----

func TestListVoices_Standard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"model_name": "vits", "speakers": []string{"p2", "p1"}})
	}))
	defer srv.Close()

	voices, err := mustNew(t, srv.URL).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].ID != "p1" || voices[1].ID != "p2" {
		t.Errorf("voices = %+v, want sorted p1,p2", voices)
	}
}

func TestListVoices_SingleSpeaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"model_name": "tacotron"})
	}))
	defer srv.Close()

	voices, err := mustNew(t, srv.URL).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "tacotron" {
		t.Errorf("voices = %+v, want single tacotron voice", voices)
	}
}

func TestListVoices_XTTS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != studioSpeakersEndpoint {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Zoe": map[string]any{}, "Ana": map[string]any{}})
	}))
	defer srv.Close()

	voices, err := mustNew(t, srv.URL, WithAPIMode(APIModeXTTS)).ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 || voices[0].Name != "Ana" {
		t.Errorf("voices = %+v, want sorted Ana,Zoe", voices)
	}
}
