package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

// LLM is an llm.Provider that fails over across a Group.
type LLM struct {
	*Group[llm.Provider]
}

var _ llm.Provider = (*LLM)(nil)

// NewLLM returns an LLM failover wrapper around primary.
func NewLLM(name string, primary llm.Provider, cfg GroupConfig) *LLM {
	return &LLM{NewGroup(name, primary, cfg)}
}

// Complete implements llm.Provider.
func (f *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(ctx, f.Group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's capabilities.
func (f *LLM) Capabilities() llm.ModelCapabilities {
	return f.Primary().Capabilities()
}

// STT is an stt.Provider that fails over across a Group.
type STT struct {
	*Group[stt.Provider]
}

var _ stt.Provider = (*STT)(nil)

// NewSTT returns an STT failover wrapper around primary.
func NewSTT(name string, primary stt.Provider, cfg GroupConfig) *STT {
	return &STT{NewGroup(name, primary, cfg)}
}

// Transcribe implements stt.Provider.
func (f *STT) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	return Do(ctx, f.Group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, buf)
	})
}

// TTS is a tts.Provider that fails over across a Group.
//
// The input text is collected before the first attempt so every member can
// be given the whole line. A member also counts as failed when its stream
// reports an error before producing any audio; errors after the first chunk
// are passed through, since the learner has already heard part of the line.
type TTS struct {
	*Group[tts.Provider]
}

var _ tts.Provider = (*TTS)(nil)

// NewTTS returns a TTS failover wrapper around primary.
func NewTTS(name string, primary tts.Provider, cfg GroupConfig) *TTS {
	return &TTS{NewGroup(name, primary, cfg)}
}

// SynthesizeStream implements tts.Provider.
func (f *TTS) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan tts.Chunk, error) {
	var sb strings.Builder
	for done := false; !done; {
		select {
		case s, ok := <-text:
			if !ok {
				done = true
				break
			}
			sb.WriteString(s)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	line := sb.String()

	return Do(ctx, f.Group, func(p tts.Provider) (<-chan tts.Chunk, error) {
		ch, err := p.SynthesizeStream(ctx, tts.Text(line), voice)
		if err != nil {
			return nil, err
		}
		first, ok := <-ch
		if !ok {
			return ch, nil
		}
		if first.Err != nil {
			audio.Drain(ch)
			return nil, first.Err
		}
		out := make(chan tts.Chunk, 16)
		go func() {
			defer close(out)
			out <- first
			for c := range ch {
				select {
				case out <- c:
				case <-ctx.Done():
					audio.Drain(ch)
					return
				}
			}
		}()
		return out, nil
	})
}

// ListVoices returns the voices of the first member that answers.
func (f *TTS) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return Do(ctx, f.Group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
