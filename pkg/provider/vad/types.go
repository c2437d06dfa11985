package vad

// VADEvent is the detection result for a single frame.
type VADEvent struct {
	// Type is the detection result.
	Type VADEventType

	// Energy is the frame's measured level in the engine's native scale.
	Energy float64
}

// Silent reports whether the frame was classified as non-speech.
func (e VADEvent) Silent() bool {
	return e.Type == VADSilence || e.Type == VADSpeechEnd
}

// VADEventType enumerates VAD detection states.
type VADEventType int

const (
	// VADSpeechStart indicates speech has just begun.
	VADSpeechStart VADEventType = iota

	// VADSpeechContinue indicates ongoing speech.
	VADSpeechContinue

	// VADSpeechEnd indicates the first silent frame after speech.
	VADSpeechEnd

	// VADSilence indicates no speech detected.
	VADSilence
)

// String returns a lower-case name for the event type.
func (t VADEventType) String() string {
	switch t {
	case VADSpeechStart:
		return "speech_start"
	case VADSpeechContinue:
		return "speech_continue"
	case VADSpeechEnd:
		return "speech_end"
	case VADSilence:
		return "silence"
	default:
		return "unknown"
	}
}
