// Package mock provides test doubles for the vad package interfaces.
//
// Session replays a scripted sequence of events, which lets segmenter tests
// describe a capture as "three speech frames then silence" without crafting PCM.
//
//	sess := &mock.Session{
//	    Events:  []vad.VADEvent{{Type: vad.VADSpeechStart}, {Type: vad.VADSpeechContinue}},
//	    Default: vad.VADEvent{Type: vad.VADSilence},
//	}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/MrWong99/voicetutor/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil a fresh Session is returned.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned from NewSession.
	NewSessionErr error

	// Configs records the Config of every NewSession call.
	Configs []vad.Config
}

// NewSession records cfg and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Configs = append(e.Configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Events are returned by successive ProcessFrame calls.
	Events []vad.VADEvent

	// Default is returned once Events is exhausted.
	Default vad.VADEvent

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// Frames counts ProcessFrame calls.
	Frames int

	// ResetCount and CloseCount count Reset and Close calls.
	ResetCount int
	CloseCount int
}

// ProcessFrame returns the next scripted event.
func (s *Session) ProcessFrame(_ []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProcessFrameErr != nil {
		return vad.VADEvent{}, s.ProcessFrameErr
	}
	ev := s.Default
	if s.Frames < len(s.Events) {
		ev = s.Events[s.Frames]
	}
	s.Frames++
	return ev, nil
}

// Reset records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCount++
}

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return nil
}

var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)
