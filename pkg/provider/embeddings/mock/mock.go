// Package mock provides a test double for embeddings.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
)

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
//
// Vectors maps an input text to its vector. Texts without an entry get
// Default, which may be nil.
type Provider struct {
	mu sync.Mutex

	Vectors map[string][]float32
	Default []float32

	// EmbedBatchErr, if non-nil, is returned from EmbedBatch.
	EmbedBatchErr error

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedBatchCalls records every invocation of EmbedBatch in order.
	EmbedBatchCalls []EmbedBatchCall
}

// EmbedBatch records the call and looks each text up in Vectors.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := p.Vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = p.Default
		}
	}
	return out, nil
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedBatchCalls = nil
}

var _ embeddings.Provider = (*Provider)(nil)
