// Package segment captures one spoken utterance from a blocking audio source.
//
// A [Segmenter] reads fixed-size frames, classifies each one through a VAD
// session, and stops once the learner has been quiet for the silence limit or
// the capture has hit its maximum duration. The frames are then downmixed,
// normalised to float, and resampled for the transcriber.
//
// An utterance that is silent from the first frame is returned as a short,
// quiet buffer. That is not an error: the transcriber yields an empty string
// and the caller treats it as "nothing heard".
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/provider/vad"
)

// Config holds the endpointing parameters.
type Config struct {
	// FrameSize is the number of sample frames (per channel) read at a time.
	FrameSize int

	// SilenceThreshold is the RMS level, in int16 units, below which a frame
	// counts as silent.
	SilenceThreshold float64

	// SilenceLimit is how long the learner must stay quiet to end the utterance.
	SilenceLimit time.Duration

	// MaxDuration caps the total capture length.
	MaxDuration time.Duration

	// TargetRate is the sample rate of the returned buffer.
	TargetRate int
}

// DefaultConfig returns the parameters used for a Raspberry Pi USB microphone.
func DefaultConfig() Config {
	return Config{
		FrameSize:        1024,
		SilenceThreshold: 5.0,
		SilenceLimit:     2 * time.Second,
		MaxDuration:      10 * time.Second,
		TargetRate:       16000,
	}
}

// StopReason says why a capture ended.
type StopReason string

const (
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
)

// Result is a captured utterance plus capture statistics.
type Result struct {
	Buffer audio.Buffer

	// Frames is the number of frames read from the source.
	Frames int

	// Captured is the audio duration read from the source.
	Captured time.Duration

	// Reason is why capture stopped.
	Reason StopReason
}

// Segmenter turns a continuous [audio.Source] into discrete utterances.
// It is not safe for concurrent use; a session listens for one answer at a time.
type Segmenter struct {
	src  audio.Source
	sess vad.SessionHandle
	cfg  Config

	format   audio.Format
	frameDur time.Duration
}

// New validates cfg, opens a VAD session on engine, and returns a Segmenter
// reading from src.
func New(src audio.Source, engine vad.Engine, cfg Config) (*Segmenter, error) {
	format := src.Format()
	var errs []error
	if format.SampleRate <= 0 || format.Channels <= 0 {
		errs = append(errs, fmt.Errorf("invalid source format %s", format))
	}
	if cfg.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be > 0, got %d", cfg.FrameSize))
	}
	if cfg.SilenceLimit <= 0 {
		errs = append(errs, fmt.Errorf("silence limit must be > 0, got %s", cfg.SilenceLimit))
	}
	if cfg.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("max duration must be > 0, got %s", cfg.MaxDuration))
	}
	if cfg.TargetRate <= 0 {
		errs = append(errs, fmt.Errorf("target rate must be > 0, got %d", cfg.TargetRate))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	sess, err := engine.NewSession(vad.Config{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Threshold:  cfg.SilenceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("segment: open vad session: %w", err)
	}
	return &Segmenter{
		src:      src,
		sess:     sess,
		cfg:      cfg,
		format:   format,
		frameDur: format.Duration(cfg.FrameSize),
	}, nil
}

// FrameDuration is the playback length of one frame.
func (s *Segmenter) FrameDuration() time.Duration { return s.frameDur }

// Capture records one utterance. It blocks on the source for every frame and
// returns once an endpoint is reached, the source fails, or ctx is cancelled.
func (s *Segmenter) Capture(ctx context.Context) (Result, error) {
	if f, ok := s.src.(audio.Flusher); ok {
		f.Flush()
	}
	s.sess.Reset()

	frameBytes := s.cfg.FrameSize * s.format.BytesPerFrame()
	maxFrames := int(s.cfg.MaxDuration/s.frameDur) + 1
	pcm := make([]byte, 0, min(maxFrames, 1024)*frameBytes)

	var (
		frames, silent int
		reason         StopReason
	)
	for {
		frame := make([]byte, frameBytes)
		if err := s.src.ReadFrame(ctx, frame); err != nil {
			return Result{}, fmt.Errorf("segment: read frame: %w", err)
		}
		ev, err := s.sess.ProcessFrame(frame)
		if err != nil {
			return Result{}, fmt.Errorf("segment: classify frame: %w", err)
		}
		pcm = append(pcm, frame...)
		frames++
		if ev.Silent() {
			silent++
		} else {
			silent = 0
		}

		if s.elapsed(silent) >= s.cfg.SilenceLimit {
			reason = StopSilence
			break
		}
		if s.elapsed(frames) >= s.cfg.MaxDuration {
			reason = StopMaxDuration
			break
		}
	}

	mono := audio.ToMonoFloat32(pcm, s.format.Channels)
	res := Result{
		Buffer: audio.Buffer{
			Samples:    audio.ResampleFloat32(mono, s.format.SampleRate, s.cfg.TargetRate),
			SampleRate: s.cfg.TargetRate,
		},
		Frames:   frames,
		Captured: s.elapsed(frames),
		Reason:   reason,
	}
	slog.Debug("utterance captured",
		"frames", frames,
		"duration", res.Captured,
		"reason", reason,
	)
	return res, nil
}

// Close releases the VAD session.
func (s *Segmenter) Close() error {
	return s.sess.Close()
}

func (s *Segmenter) elapsed(frames int) time.Duration {
	return s.format.Duration(frames * s.cfg.FrameSize)
}
