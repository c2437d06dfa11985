package tts

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/MrWong99/voicetutor/pkg/audio"
)

const (
	// sentenceLookahead bounds the synthesis requests in flight at once.
	sentenceLookahead = 4

	// pcmChunkSize is the size of each PCM chunk emitted downstream.
	pcmChunkSize = 4096
)

// SynthFunc synthesizes one sentence into mono int16 PCM.
type SynthFunc func(ctx context.Context, sentence string) ([]byte, error)

// StreamSentences drives a request-per-sentence backend as a stream.
//
// Fragments from text are accumulated and split at sentence boundaries. Each
// sentence is synthesized by synth with up to four requests in flight, and
// the PCM is emitted in original sentence order. The first failure is sent as
// a Chunk with Err set and ends the stream.
func StreamSentences(ctx context.Context, text <-chan string, synth SynthFunc) <-chan Chunk {
	out := make(chan Chunk, 64)

	type result struct {
		pcm []byte
		err error
	}

	go func() {
		defer close(out)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sentences := make(chan string, sentenceLookahead)
		pending := make(chan chan result, sentenceLookahead)

		go func() {
			defer close(sentences)
			splitSentences(ctx, text, sentences)
		}()

		go func() {
			defer close(pending)
			for s := range sentences {
				ch := make(chan result, 1)
				select {
				case pending <- ch:
				case <-ctx.Done():
					return
				}
				go func() {
					pcm, err := synth(ctx, s)
					ch <- result{pcm: pcm, err: err}
				}()
			}
		}()

		for ch := range pending {
			var r result
			select {
			case r = <-ch:
			case <-ctx.Done():
				return
			}
			if r.err != nil {
				out <- Chunk{Err: r.err}
				return
			}
			for pcm := r.pcm; len(pcm) > 0; {
				end := min(pcmChunkSize, len(pcm))
				select {
				case out <- Chunk{PCM: pcm[:end]}:
				case <-ctx.Done():
					return
				}
				pcm = pcm[end:]
			}
		}
	}()
	return out
}

// splitSentences reads fragments and emits trimmed sentences, flushing any
// unterminated remainder when text closes.
func splitSentences(ctx context.Context, text <-chan string, out chan<- string) {
	var buf strings.Builder
	emit := func(s string) bool {
		if s = strings.TrimSpace(s); s == "" {
			return true
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				emit(buf.String())
				return
			}
			buf.WriteString(fragment)
			for {
				s := buf.String()
				idx := findSentenceBoundary(s)
				if idx < 0 {
					break
				}
				buf.Reset()
				buf.WriteString(s[idx+1:])
				if !emit(s[:idx+1]) {
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// findSentenceBoundary returns the index of the first '.', '!' or '?' that
// ends s or is followed by whitespace, so "3.14" and "Dr.X" are not split.
// Returns -1 if there is none.
func findSentenceBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 >= len(s) || unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}

// DecodeWAV extracts mono int16 PCM at outputRate from a WAV response.
// Stereo input is downmixed; outputRate 0 keeps the native rate.
func DecodeWAV(wav []byte, outputRate int) ([]byte, int, error) {
	pcm, f, err := audio.WAVPCM(wav)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: %w", err)
	}
	if f.Channels > 1 {
		pcm = audio.Float32ToPCM16(audio.ToMonoFloat32(pcm, f.Channels))
	}
	rate := f.SampleRate
	if outputRate > 0 && rate != outputRate {
		pcm = audio.ResampleMono16(pcm, rate, outputRate)
		rate = outputRate
	}
	return pcm, rate, nil
}
