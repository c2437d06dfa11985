// Package vad defines the Engine interface for voice activity detection.
//
// An engine classifies fixed-size PCM frames as speech or silence and surfaces
// that as a stateful per-stream session. The segmenter consumes the per-frame
// classification; endpointing (how much silence ends an utterance) is its job,
// not the engine's.
//
// ProcessFrame is synchronous and must not block.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz of the frames passed to
	// ProcessFrame.
	SampleRate int

	// Channels is the interleaved channel count of each frame.
	Channels int

	// Threshold is the engine-specific decision boundary. For the energy engine
	// it is an RMS level in int16 sample units; frames below it are silence.
	Threshold float64
}

// SessionHandle is an active VAD session for a single audio stream.
// It should not be shared between goroutines.
type SessionHandle interface {
	// ProcessFrame classifies one frame of little-endian int16 PCM in the
	// session's format.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears detection state without closing the session. Call it between
	// utterances so a previous segment cannot influence the next.
	Reset()

	// Close releases the session. Calling Close more than once returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. Implementations must be safe for
// concurrent NewSession calls.
type Engine interface {
	// NewSession creates a session ready to accept frames, or returns an error if
	// cfg is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
