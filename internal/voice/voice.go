// Package voice connects the dialogue to the learner's ears and mouth. A
// [Speaker] synthesizes a line and plays it to completion; a [Listener]
// captures one utterance and transcribes it.
package voice

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/audio/segment"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

// Speaker plays synthesized speech on a sink.
type Speaker struct {
	tts   tts.Provider
	sink  audio.Sink
	voice tts.VoiceProfile

	// rate is the sample rate of the provider's mono output.
	rate    int
	metrics *observe.Metrics
}

// NewSpeaker returns a Speaker. rate is the sample rate the TTS provider
// emits; output is resampled and upmixed to the sink's format as needed.
// A nil metrics uses [observe.DefaultMetrics].
func NewSpeaker(p tts.Provider, sink audio.Sink, voice tts.VoiceProfile, rate int, metrics *observe.Metrics) *Speaker {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Speaker{tts: p, sink: sink, voice: voice, rate: rate, metrics: metrics}
}

// Say speaks text and returns once playback has finished.
func (s *Speaker) Say(ctx context.Context, text string) error {
	start := time.Now()
	observe.Logger(ctx).Info("tutor", "text", text)

	chunks, err := s.tts.SynthesizeStream(ctx, tts.Text(text), s.voice)
	if err != nil {
		return fmt.Errorf("voice: synthesize: %w", err)
	}

	format := s.sink.Format()
	pr, pw := io.Pipe()

	var (
		wg        sync.WaitGroup
		streamErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer audio.Drain(chunks)
		for c := range chunks {
			if c.Err != nil {
				streamErr = c.Err
				pw.CloseWithError(c.Err)
				return
			}
			pcm := audio.ResampleMono16(c.PCM, s.rate, format.SampleRate)
			if format.Channels == 2 {
				pcm = audio.MonoToStereo(pcm)
			}
			if _, err := pw.Write(pcm); err != nil {
				return
			}
		}
		pw.Close()
	}()

	playErr := s.sink.Play(ctx, pr)
	// Unblock the writer if playback stopped early.
	pr.CloseWithError(io.ErrClosedPipe)
	wg.Wait()

	observe.ObserveDuration(ctx, s.metrics.TTSDuration, start)
	if streamErr != nil {
		return fmt.Errorf("voice: synthesize: %w", streamErr)
	}
	if playErr != nil {
		return fmt.Errorf("voice: play: %w", playErr)
	}
	return nil
}

// Capturer records one utterance. [segment.Segmenter] implements it.
type Capturer interface {
	Capture(ctx context.Context) (segment.Result, error)
}

// Listener turns the learner's next utterance into text.
type Listener struct {
	capturer Capturer
	stt      stt.Provider
	metrics  *observe.Metrics
}

// NewListener returns a Listener. A nil metrics uses [observe.DefaultMetrics].
func NewListener(c Capturer, p stt.Provider, metrics *observe.Metrics) *Listener {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Listener{capturer: c, stt: p, metrics: metrics}
}

// Listen captures an utterance and returns its trimmed transcript. Silence
// yields ("", nil).
func (l *Listener) Listen(ctx context.Context) (string, error) {
	start := time.Now()
	res, err := l.capturer.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("voice: capture: %w", err)
	}
	observe.ObserveDuration(ctx, l.metrics.CaptureDuration, start, observe.Attr("reason", string(res.Reason)))
	if res.Buffer.Empty() {
		return "", nil
	}

	start = time.Now()
	text, err := l.stt.Transcribe(ctx, res.Buffer)
	observe.ObserveDuration(ctx, l.metrics.STTDuration, start)
	if err != nil {
		return "", fmt.Errorf("voice: transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text != "" {
		observe.Logger(ctx).Info("learner", "text", text)
	}
	return text, nil
}
