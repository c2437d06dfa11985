// Package energy is an RMS-threshold [vad.Engine].
//
// Each frame's root-mean-square level is compared against Config.Threshold.
// There is no smoothing or hangover: a frame is speech if and only if its
// energy reaches the threshold, which is exactly what an endpointer that counts
// consecutive silent frames needs.
package energy

import (
	"errors"
	"fmt"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/vad"
)

// Engine creates energy VAD sessions.
type Engine struct{}

// New returns an energy [vad.Engine].
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine].
func (*Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("energy vad: threshold must be >= 0, got %f", cfg.Threshold)
	}
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("energy vad: channels must be >= 1, got %d", cfg.Channels)
	}
	return &session{threshold: cfg.Threshold, frameBytes: cfg.Channels * 2}, nil
}

type session struct {
	threshold  float64
	frameBytes int
	speaking   bool
	closed     bool
}

var errClosed = errors.New("energy vad: session closed")

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	if s.closed {
		return vad.VADEvent{}, errClosed
	}
	if len(frame)%s.frameBytes != 0 {
		return vad.VADEvent{}, fmt.Errorf("energy vad: frame of %d bytes is not a whole number of %d-byte sample frames", len(frame), s.frameBytes)
	}

	rms := audio.RMS16(frame)
	ev := vad.VADEvent{Energy: rms}
	switch {
	case rms >= s.threshold && !s.speaking:
		ev.Type = vad.VADSpeechStart
		s.speaking = true
	case rms >= s.threshold:
		ev.Type = vad.VADSpeechContinue
	case s.speaking:
		ev.Type = vad.VADSpeechEnd
		s.speaking = false
	default:
		ev.Type = vad.VADSilence
	}
	return ev, nil
}

func (s *session) Reset() { s.speaking = false }

func (s *session) Close() error {
	s.closed = true
	return nil
}

var _ vad.Engine = (*Engine)(nil)
