// Package coqui provides a Coqui TTS-backed provider that talks to either a
// standard Coqui TTS server or an XTTS v2 API server over REST.
//
//   - APIModeStandard (default): GET /api/tts with query parameters; voices
//     come from GET /details.
//   - APIModeXTTS: POST /tts_to_audio/ with a JSON body; voices come from
//     GET /studio_speakers.
//
// Both servers are batch, so SynthesizeStream splits text into sentences and
// pipelines one request per sentence.
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithOutputSampleRate(22050),
//	)
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage        = "en"
	defaultTimeout         = 30 * time.Second
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeXTTS targets the XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode selects the server API. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// WithOutputSampleRate resamples synthesized PCM to rate. Zero keeps the
// model's native rate.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) { p.outputRate = rate }
}

// Provider implements tts.Provider backed by a Coqui TTS server.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
	apiMode    APIMode
	outputRate int
}

// New creates a Provider targeting serverURL (e.g. "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan tts.Chunk, error) {
	if voice.ID == "" && p.apiMode == APIModeXTTS {
		return nil, errors.New("coqui: voice.ID must not be empty (required for XTTS mode)")
	}
	return tts.StreamSentences(ctx, text, func(ctx context.Context, sentence string) ([]byte, error) {
		return p.synthesize(ctx, sentence, voice)
	}), nil
}

func (p *Provider) synthesize(ctx context.Context, sentence string, voice tts.VoiceProfile) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if p.apiMode == APIModeXTTS {
		body, merr := json.Marshal(struct {
			Text       string `json:"text"`
			SpeakerWav string `json:"speaker_wav"`
			Language   string `json:"language"`
		}{sentence, voice.ID, p.language})
		if merr != nil {
			return nil, fmt.Errorf("coqui: marshal tts request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		params := url.Values{}
		params.Set("text", sentence)
		if voice.ID != "" {
			params.Set("speaker_id", voice.ID)
		}
		if p.language != "" {
			params.Set("language_id", p.language)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	pcm, _, err := tts.DecodeWAV(wav, p.outputRate)
	if err != nil {
		return nil, fmt.Errorf("coqui: %w", err)
	}
	return pcm, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if p.apiMode == APIModeXTTS {
		var raw map[string]json.RawMessage
		if err := p.getJSON(ctx, studioSpeakersEndpoint, &raw); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		profiles := make([]tts.VoiceProfile, 0, len(names))
		for _, name := range names {
			profiles = append(profiles, tts.VoiceProfile{
				ID: name, Name: name, Provider: "coqui",
				Metadata: map[string]string{"type": "studio"},
			})
		}
		return profiles, nil
	}

	var details struct {
		ModelName string   `json:"model_name"`
		Speakers  []string `json:"speakers"`
	}
	if err := p.getJSON(ctx, detailsEndpoint, &details); err != nil {
		return nil, err
	}
	if len(details.Speakers) == 0 {
		name := details.ModelName
		if name == "" {
			name = "default"
		}
		return []tts.VoiceProfile{{
			ID: name, Name: name, Provider: "coqui",
			Metadata: map[string]string{"type": "single-speaker", "model_name": name},
		}}, nil
	}
	speakers := append([]string(nil), details.Speakers...)
	sort.Strings(speakers)
	profiles := make([]tts.VoiceProfile, 0, len(speakers))
	for _, spk := range speakers {
		profiles = append(profiles, tts.VoiceProfile{
			ID: spk, Name: spk, Provider: "coqui",
			Metadata: map[string]string{"type": "speaker", "model_name": details.ModelName},
		})
	}
	return profiles, nil
}

func (p *Provider) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: GET %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("coqui: decode %s: %w", path, err)
	}
	return nil
}
