package tts

// VoiceProfile identifies a voice on a specific provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (ElevenLabs voice ID, Coqui
	// speaker, piper voice model name).
	ID string

	// Name is a human-readable label.
	Name string

	// Provider names the backend the voice belongs to.
	Provider string

	// SpeedFactor scales speaking rate where supported; 1.0 or 0 is normal.
	SpeedFactor float64

	// Metadata carries provider-specific attributes (language, gender, type).
	Metadata map[string]string
}

// Chunk is one piece of synthesized audio, or a terminal error.
type Chunk struct {
	// PCM is little-endian int16 mono audio at the provider's output rate.
	PCM []byte

	// Err is set on the last chunk of a stream that failed.
	Err error
}
