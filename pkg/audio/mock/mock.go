// Package mock provides in-memory implementations of [audio.Source] and
// [audio.Sink] for unit tests.
//
// Both mocks are safe for concurrent use and record every call so tests can
// assert on what was captured or played.
//
// Typical usage:
//
//	src := &mock.Source{
//	    AudioFormat: audio.Format{SampleRate: 16000, Channels: 1},
//	    Frames:      [][]int16{loud, loud, quiet},
//	    Repeat:      quiet,
//	}
//	seg := segment.New(src, cfg)
package mock

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/MrWong99/voicetutor/pkg/audio"
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock [audio.Source] that serves scripted frames.
//
// Each ReadFrame call fills the destination with the next entry of Frames,
// repeating the samples cyclically to fill the buffer. Once Frames is exhausted
// the Repeat samples are used; if Repeat is nil the buffer is zero-filled.
type Source struct {
	mu sync.Mutex

	// AudioFormat is returned by Format.
	AudioFormat audio.Format

	// Frames is the scripted capture, one sample pattern per ReadFrame.
	Frames [][]int16

	// Repeat is used for every read after Frames has been consumed.
	Repeat []int16

	// ReadErr, if non-nil, is returned by ReadFrame instead of data.
	ReadErr error

	// Reads counts completed ReadFrame calls.
	Reads int
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioFormat
}

// ReadFrame implements [audio.Source].
func (s *Source) ReadFrame(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return s.ReadErr
	}

	pattern := s.Repeat
	if s.Reads < len(s.Frames) {
		pattern = s.Frames[s.Reads]
	}
	s.Reads++

	n := len(buf) / 2
	for i := range n {
		var v int16
		if len(pattern) > 0 {
			v = pattern[i%len(pattern)]
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return nil
}

// ─── Sink ────────────────────────────────────────────────────────────────────

// Sink is a mock [audio.Sink] that reads the stream to EOF and stores it.
type Sink struct {
	mu sync.Mutex

	// AudioFormat is returned by Format.
	AudioFormat audio.Format

	// PlayErr, if non-nil, is returned by Play after the stream is consumed.
	PlayErr error

	// Played holds the bytes received by each Play call, in order.
	Played [][]byte
}

// Format implements [audio.Sink].
func (s *Sink) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioFormat
}

// Play implements [audio.Sink].
func (s *Sink) Play(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Played = append(s.Played, data)
	return s.PlayErr
}

// PlayCount returns the number of completed Play calls.
func (s *Sink) PlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Played)
}

var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Sink)(nil)
)
