// Package audio holds the PCM primitives shared by capture, transcription,
// synthesis, and playback.
//
// Raw device audio is little-endian int16 PCM, interleaved when multi-channel,
// and described by a [Format]. Once an utterance has been segmented it becomes a
// [Buffer]: mono float32 samples in [-1, 1] at the transcriber's rate.
package audio

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Format describes the sample rate and channel count of an int16 PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a compact representation such as "44100Hz/2ch".
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// BytesPerFrame is the size of one interleaved sample frame (all channels).
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// Duration reports how long n sample frames last at this format's rate.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.SampleRate))
}

// Buffer is one captured utterance: mono float32 samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	return Format{SampleRate: b.SampleRate, Channels: 1}.Duration(len(b.Samples))
}

// Empty reports whether the buffer holds no samples.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// Source is a blocking capture device.
//
// ReadFrame fills buf completely with PCM in the device's [Format] and blocks
// until it has done so, the device fails, or ctx is cancelled. len(buf) must be
// a multiple of Format().BytesPerFrame().
type Source interface {
	Format() Format
	ReadFrame(ctx context.Context, buf []byte) error
}

// Sink is a playback device.
//
// Play consumes PCM in the sink's [Format] from r until io.EOF and returns only
// after the audio has drained to the output. It returns early with ctx.Err() if
// ctx is cancelled.
type Sink interface {
	Format() Format
	Play(ctx context.Context, r io.Reader) error
}

// Flusher is implemented by sources that keep buffering between reads.
// Flush discards everything captured so far so the next read starts fresh.
type Flusher interface {
	Flush()
}
