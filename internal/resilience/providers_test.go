package resilience

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	llmmock "github.com/MrWong99/voicetutor/pkg/provider/llm/mock"
	sttmock "github.com/MrWong99/voicetutor/pkg/provider/stt/mock"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voicetutor/pkg/provider/tts/mock"
)

func TestLLM_Failover(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errBackend, ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000}}
	backup := &llmmock.Provider{Responses: []string{"correct"}}
	f := NewLLM("ollama", primary, GroupConfig{})
	f.Add("openai", backup)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.User("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "correct" {
		t.Errorf("content = %q, want %q", resp.Content, "correct")
	}
	if primary.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), backup.CallCount())
	}
	if got := f.Capabilities().ContextWindow; got != 128000 {
		t.Errorf("ContextWindow = %d, want primary's 128000", got)
	}
}

func TestSTT_Failover(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Errs: []error{errBackend}}
	backup := &sttmock.Provider{Transcripts: []string{"gravity"}}
	f := NewSTT("whisper", primary, GroupConfig{})
	f.Add("deepgram", backup)

	got, err := f.Transcribe(context.Background(), audio.Buffer{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "gravity" {
		t.Errorf("transcript = %q, want %q", got, "gravity")
	}
}

func collectPCM(t *testing.T, ch <-chan tts.Chunk) []byte {
	t.Helper()
	var out []byte
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("stream error: %v", c.Err)
		}
		out = append(out, c.PCM...)
	}
	return out
}

func TestTTS_FailoverOnSetupError(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{SynthesizeErr: errBackend}
	backup := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 2}, {3, 4}}}
	f := NewTTS("piper", primary, GroupConfig{})
	f.Add("coqui", backup)

	text := make(chan string, 2)
	text <- "Great job! "
	text <- "That's correct."
	close(text)

	ch, err := f.SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if got := collectPCM(t, ch); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("pcm = %v, want [1 2 3 4]", got)
	}
	if spoken := backup.Spoken(); len(spoken) != 1 || spoken[0] != "Great job! That's correct." {
		t.Errorf("backup spoke %q, want the whole line", spoken)
	}
	if spoken := primary.Spoken(); len(spoken) != 1 || spoken[0] != "Great job! That's correct." {
		t.Errorf("primary got %q, want the whole line", spoken)
	}
}

func TestTTS_FailoverOnFirstChunkError(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{StreamErr: errBackend}
	backup := &ttsmock.Provider{SynthesizeChunks: [][]byte{{9}}}
	f := NewTTS("elevenlabs", primary, GroupConfig{})
	f.Add("piper", backup)

	ch, err := f.SynthesizeStream(context.Background(), tts.Text("Hello"), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if got := collectPCM(t, ch); !bytes.Equal(got, []byte{9}) {
		t.Errorf("pcm = %v, want [9]", got)
	}
}

func TestTTS_LateErrorPassesThrough(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1}}, StreamErr: errBackend}
	backup := &ttsmock.Provider{SynthesizeChunks: [][]byte{{9}}}
	f := NewTTS("piper", primary, GroupConfig{})
	f.Add("coqui", backup)

	ch, err := f.SynthesizeStream(context.Background(), tts.Text("Hello"), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var gotErr error
	for c := range ch {
		if c.Err != nil {
			gotErr = c.Err
		}
	}
	if !errors.Is(gotErr, errBackend) {
		t.Errorf("stream err = %v, want %v", gotErr, errBackend)
	}
	if len(backup.Spoken()) != 0 {
		t.Error("backup was used after the primary produced audio")
	}
}

func TestTTS_AllFailed(t *testing.T) {
	t.Parallel()

	f := NewTTS("piper", &ttsmock.Provider{SynthesizeErr: errBackend}, GroupConfig{})
	_, err := f.SynthesizeStream(context.Background(), tts.Text("Hi"), tts.VoiceProfile{})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}
