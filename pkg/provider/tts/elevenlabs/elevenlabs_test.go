package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

// ---- helpers ----

// fakeServer accepts one stream-input connection, records the text messages,
// and answers the flush with two audio frames and isFinal.
func fakeServer(t *testing.T, got *[]textMessage, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/voices" {
			if r.Header.Get("xi-api-key") != "key" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"}}]}`))
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg textMessage
			_ = json.Unmarshal(data, &msg)
			*got = append(*got, msg)
			if fail && len(*got) == 2 {
				_ = conn.Write(ctx, websocket.MessageText, []byte(`{"error":"quota_exceeded","message":"out of credits"}`))
				return
			}
			if msg.Text == "" {
				for _, pcm := range [][]byte{{1, 2}, {3, 4}} {
					b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm)})
					_ = conn.Write(ctx, websocket.MessageText, b)
				}
				_ = conn.Write(ctx, websocket.MessageText, []byte(`{"isFinal":true}`))
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := New("key", WithBaseURLs(wsBase, srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// ---- tests ----

func TestNew_Validation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
}

func TestStreamURL(t *testing.T) {
	p, _ := New("key", WithModel("eleven_turbo_v2"))
	u := p.streamURL("abc")
	if !strings.Contains(u, "/v1/text-to-speech/abc/stream-input") {
		t.Errorf("path missing from %q", u)
	}
	if !strings.Contains(u, "model_id=eleven_turbo_v2") || !strings.Contains(u, "output_format=pcm_22050") {
		t.Errorf("query missing from %q", u)
	}
}

func TestSynthesizeStream(t *testing.T) {
	var got []textMessage
	p := newTestProvider(t, fakeServer(t, &got, false))

	ch, err := p.SynthesizeStream(context.Background(), tts.Text("Great job!"), tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var pcm []byte
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("stream error: %v", c.Err)
		}
		pcm = append(pcm, c.PCM...)
	}
	if string(pcm) != "\x01\x02\x03\x04" {
		t.Errorf("pcm: got %v, want [1 2 3 4]", pcm)
	}
	if len(got) != 3 {
		t.Fatalf("messages: got %d, want 3 (BOI, text, flush)", len(got))
	}
	if got[0].XiAPIKey != "key" || got[0].VoiceSettings == nil {
		t.Errorf("BOI: got %+v", got[0])
	}
	if got[1].Text != "Great job! " {
		t.Errorf("text: got %q", got[1].Text)
	}
	if got[2].Text != "" {
		t.Errorf("flush: got %q, want empty", got[2].Text)
	}
}

func TestSynthesizeStream_ServerError(t *testing.T) {
	var got []textMessage
	p := newTestProvider(t, fakeServer(t, &got, true))

	ch, err := p.SynthesizeStream(context.Background(), tts.Text("Hello."), tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var streamErr error
	for c := range ch {
		if c.Err != nil {
			streamErr = c.Err
		}
	}
	if streamErr == nil || !strings.Contains(streamErr.Error(), "quota_exceeded") {
		t.Errorf("got %v, want quota error", streamErr)
	}
}

func TestSynthesizeStream_RequiresVoice(t *testing.T) {
	p, _ := New("key")
	if _, err := p.SynthesizeStream(context.Background(), tts.Text("x"), tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
}

func TestListVoices(t *testing.T) {
	var got []textMessage
	p := newTestProvider(t, fakeServer(t, &got, false))

	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" || voices[0].Metadata["accent"] != "american" || voices[0].Metadata["category"] != "premade" {
		t.Errorf("voices: got %+v", voices)
	}
}
