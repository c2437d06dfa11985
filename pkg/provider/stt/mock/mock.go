// Package mock provides a test double for stt.Provider.
//
// Provider returns scripted transcripts in order, which lets dialogue tests
// describe a learner as a list of utterances:
//
//	p := &mock.Provider{Transcripts: []string{"I don't know", "gravity pulls stuff"}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	Ctx context.Context
	Buf audio.Buffer
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcripts are returned by successive Transcribe calls. Once exhausted,
	// Transcribe returns "".
	Transcripts []string

	// Errs, if set, supplies an error per call index; a nil entry means success.
	Errs []error

	// Calls records every Transcribe call in order.
	Calls []TranscribeCall
}

// Transcribe returns the next scripted transcript or error.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.Calls)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Buf: buf})
	if i < len(p.Errs) && p.Errs[i] != nil {
		return "", p.Errs[i]
	}
	// Errored calls consume no transcript.
	idx := i
	for j := 0; j < i && j < len(p.Errs); j++ {
		if p.Errs[j] != nil {
			idx--
		}
	}
	if idx < len(p.Transcripts) {
		return p.Transcripts[idx], nil
	}
	return "", nil
}

// CallCount returns the number of Transcribe calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

var _ stt.Provider = (*Provider)(nil)
