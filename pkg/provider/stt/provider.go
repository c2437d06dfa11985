// Package stt defines the Provider interface for speech-to-text backends.
//
// Transcription here is batch: the segmenter collects a whole utterance before
// anything is sent, so a provider receives one mono float buffer and returns one
// transcript. The transcript may be empty when nothing intelligible was said;
// that is a successful result, not an error.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/voicetutor/pkg/audio"
)

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the best-effort transcript of buf, trimmed of
	// surrounding whitespace. buf.Samples are mono float32 in [-1, 1].
	//
	// Returns an error only when the backend could not be reached or failed;
	// silence yields ("", nil).
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
}
