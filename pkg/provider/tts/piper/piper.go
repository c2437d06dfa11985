// Package piper provides a TTS provider for the piper HTTP server
// (`python -m piper.http_server`), the engine the tutor uses on-device.
//
// Each sentence is sent as POST / with a JSON body and the server answers with
// a WAV file. Voices are listed from GET /voices.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a piper Provider.
type Option func(*Provider)

// WithOutputSampleRate resamples output to rate. Zero keeps the voice's rate
// (22050 Hz for most medium-quality piper voices).
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider against a piper HTTP server.
type Provider struct {
	serverURL  string
	outputRate int
	httpClient *http.Client
}

// New creates a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("piper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type synthRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"voice,omitempty"`
	LengthScale float64 `json:"length_scale,omitempty"`
}

// SynthesizeStream implements tts.Provider. An empty voice ID uses the
// server's default voice. VoiceProfile.SpeedFactor maps to piper's
// length_scale (its inverse).
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan tts.Chunk, error) {
	req := synthRequest{Voice: voice.ID}
	if voice.SpeedFactor > 0 && voice.SpeedFactor != 1 {
		req.LengthScale = 1 / voice.SpeedFactor
	}
	return tts.StreamSentences(ctx, text, func(ctx context.Context, sentence string) ([]byte, error) {
		r := req
		r.Text = sentence
		return p.synthesize(ctx, r)
	}), nil
}

func (p *Provider) synthesize(ctx context.Context, body synthRequest) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("piper: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("piper: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper: http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("piper: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("piper: read response: %w", err)
	}
	pcm, _, err := tts.DecodeWAV(wav, p.outputRate)
	if err != nil {
		return nil, fmt.Errorf("piper: %w", err)
	}
	return pcm, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("piper: create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piper: list voices: HTTP %d", resp.StatusCode)
	}

	var raw map[string]struct {
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Audio struct {
			SampleRate int    `json:"sample_rate"`
			Quality    string `json:"quality"`
		} `json:"audio"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("piper: decode voices: %w", err)
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]tts.VoiceProfile, 0, len(names))
	for _, name := range names {
		v := raw[name]
		meta := map[string]string{}
		if v.Language.Code != "" {
			meta["language"] = v.Language.Code
		}
		if v.Audio.Quality != "" {
			meta["quality"] = v.Audio.Quality
		}
		if v.Audio.SampleRate > 0 {
			meta["sample_rate"] = fmt.Sprint(v.Audio.SampleRate)
		}
		profiles = append(profiles, tts.VoiceProfile{ID: name, Name: name, Provider: "piper", Metadata: meta})
	}
	return profiles, nil
}
