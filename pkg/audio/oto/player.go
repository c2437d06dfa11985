// Package oto implements [audio.Sink] with github.com/ebitengine/oto/v3.
//
// oto permits a single context per process, so a [Player] should be created
// once at startup and shared.
package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/voicetutor/pkg/audio"
)

// pollInterval is how often Play checks whether the device has drained.
const pollInterval = 10 * time.Millisecond

// Player plays int16 PCM through the default output device.
type Player struct {
	ctx    *oto.Context
	format audio.Format
}

// New opens the output device. bufferSize is the device buffer length; zero
// lets oto pick a default.
func New(format audio.Format, bufferSize time.Duration) (*Player, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("oto: invalid playback format %s", format)
	}
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: new context: %w", err)
	}
	<-ready
	return &Player{ctx: octx, format: format}, nil
}

// Format implements [audio.Sink].
func (p *Player) Format() audio.Format { return p.format }

// Play implements [audio.Sink]. It blocks until r is exhausted and the device
// has finished playing, or ctx is cancelled.
func (p *Player) Play(ctx context.Context, r io.Reader) error {
	player := p.ctx.NewPlayer(r)
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("oto: play: %w", err)
	}
	return nil
}

// Close suspends the output device.
func (p *Player) Close() error {
	return p.ctx.Suspend()
}

var _ audio.Sink = (*Player)(nil)
