// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider consumes text fragments from a channel and emits mono int16 PCM
// on a returned channel. Errors that happen after the stream has started are
// delivered in-band as a [Chunk] with Err set, after which the channel closes.
// This lets a caller that plays audio as it arrives tell "finished" apart from
// "failed halfway through a sentence".
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream reads text until the channel is closed and returns a
	// channel of PCM chunks in spoken order. The returned channel is closed when
	// synthesis completes, fails, or ctx is cancelled; callers must drain it.
	//
	// Returns an error immediately only when the stream cannot be started
	// (bad voice, unreachable endpoint for connection-oriented providers).
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan Chunk, error)

	// ListVoices returns the voices the backend offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// Text returns a closed channel carrying the single fragment s. Convenient
// for callers that already have the full utterance.
func Text(s string) <-chan string {
	ch := make(chan string, 1)
	ch <- s
	close(ch)
	return ch
}
