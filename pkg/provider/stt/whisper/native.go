// This file contains the NativeProvider backed by the whisper.cpp cgo
// bindings. libwhisper.a and whisper.h must be reachable at link time via
// LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// whisper.cpp only accepts 16 kHz input.
const nativeSampleRate = 16000

// NativeProvider implements stt.Provider using the whisper.cpp Go bindings.
// The model is loaded once; each Transcribe call gets its own context.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// whisper contexts are heavy; serialise inference on small devices.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the ggml model at modelPath. The caller must Close the
// provider when done.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. Buffers at other rates are resampled to
// 16 kHz first.
func (p *NativeProvider) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if buf.Empty() {
		return "", nil
	}
	samples := audio.ResampleFloat32(buf.Samples, buf.SampleRate, nativeSampleRate)

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: new context: %w", err)
	}
	if p.language != "" {
		if err := wctx.SetLanguage(p.language); err != nil {
			return "", fmt.Errorf("whisper: set language %q: %w", p.language, err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: next segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return cleanTranscript(strings.Join(parts, " ")), nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}
