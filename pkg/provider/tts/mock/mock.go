// Package mock provides a test double for tts.Provider.
//
// Provider drains the text channel, records the joined text of each call, and
// replies with SynthesizeChunks. Tests that only care about what was said can
// read Spoken():
//
//	p := &mock.Provider{SynthesizeChunks: [][]byte{make([]byte, 320)}}
//	...
//	if got := p.Spoken(); got[0] != "Hello!" { ... }
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	Ctx   context.Context
	Text  string
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeChunks are emitted, in order, for every call.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned immediately from SynthesizeStream.
	SynthesizeErr error

	// StreamErr, if non-nil, is emitted as a final in-band error chunk.
	StreamErr error

	// ListVoicesResult and ListVoicesErr are returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile
	ListVoicesErr    error

	// SynthesizeStreamCalls records every call in order.
	SynthesizeStreamCalls []SynthesizeStreamCall
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan tts.Chunk, error) {
	var parts []string
	for s := range text {
		parts = append(parts, s)
	}

	p.mu.Lock()
	p.SynthesizeStreamCalls = append(p.SynthesizeStreamCalls, SynthesizeStreamCall{
		Ctx: ctx, Text: strings.Join(parts, ""), Voice: voice,
	})
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := append([][]byte(nil), p.SynthesizeChunks...)
	streamErr := p.StreamErr
	p.mu.Unlock()

	ch := make(chan tts.Chunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- tts.Chunk{PCM: c}
	}
	if streamErr != nil {
		ch <- tts.Chunk{Err: streamErr}
	}
	close(ch)
	return ch, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ListVoicesResult, p.ListVoicesErr
}

// Spoken returns the text of every SynthesizeStream call in order.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeStreamCalls))
	for i, c := range p.SynthesizeStreamCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeStreamCalls = nil
}

var _ tts.Provider = (*Provider)(nil)
