package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
	"github.com/MrWong99/voicetutor/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is a name → constructor table for one provider kind.
type factories[T any] map[string]func(ProviderEntry) (T, error)

func (f factories[T]) create(mu *sync.RWMutex, kind string, entry ProviderEntry) (T, error) {
	mu.RLock()
	factory, ok := f[entry.Name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func (f factories[T]) names(mu *sync.RWMutex) []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        factories[llm.Provider]
	stt        factories[stt.Provider]
	tts        factories[tts.Provider]
	embeddings factories[embeddings.Provider]
	vad        factories[vad.Engine]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(factories[llm.Provider]),
		stt:        make(factories[stt.Provider]),
		tts:        make(factories[tts.Provider]),
		embeddings: make(factories[embeddings.Provider]),
		vad:        make(factories[vad.Engine]),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return r.llm.create(&r.mu, "llm", entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return r.stt.create(&r.mu, "stt", entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return r.tts.create(&r.mu, "tts", entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	return r.embeddings.create(&r.mu, "embeddings", entry)
}

// CreateVAD instantiates a VAD engine using the factory registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	return r.vad.create(&r.mu, "vad", entry)
}

// LLMNames returns the registered LLM provider names in sorted order.
func (r *Registry) LLMNames() []string { return r.llm.names(&r.mu) }

// STTNames returns the registered STT provider names in sorted order.
func (r *Registry) STTNames() []string { return r.stt.names(&r.mu) }

// TTSNames returns the registered TTS provider names in sorted order.
func (r *Registry) TTSNames() []string { return r.tts.names(&r.mu) }
