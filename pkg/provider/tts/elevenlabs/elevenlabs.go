// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// streaming WebSocket input API. It implements tts.Provider.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicetutor/pkg/provider/tts"
)

const (
	defaultWSBase    = "wss://api.elevenlabs.io"
	defaultAPIBase   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_22050"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the audio output format. Only raw "pcm_<rate>"
// formats are playable by the tutor.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithBaseURLs overrides the WebSocket and REST base URLs.
func WithBaseURLs(wsBase, apiBase string) Option {
	return func(p *Provider) {
		p.wsBase = strings.TrimRight(wsBase, "/")
		p.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	wsBase       string
	apiBase      string
	httpClient   *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		wsBase:       defaultWSBase,
		apiBase:      defaultAPIBase,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if !strings.HasPrefix(p.outputFormat, "pcm_") {
		return nil, fmt.Errorf("elevenlabs: output format %q is not raw PCM", p.outputFormat)
	}
	return p, nil
}

// ---- WebSocket message types ----

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// textMessage is sent for each fragment; an empty Text flushes and ends input.
type textMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey             string         `json:"xi_api_key,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.wsBase, url.PathEscape(voiceID), q.Encode())
}

// SynthesizeStream opens a WebSocket, forwards text fragments, and emits the
// decoded PCM. A server-side error message ends the stream with an error chunk.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan tts.Chunk, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if voice.SpeedFactor > 0 {
		vs.Speed = voice.SpeedFactor
	}
	// ElevenLabs requires a single space as the opening text.
	if err := writeJSON(ctx, conn, textMessage{Text: " ", VoiceSettings: vs, XiAPIKey: p.apiKey}); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	out := make(chan tts.Chunk, 64)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		writeErr := make(chan error, 1)
		go func() { writeErr <- p.pump(ctx, conn, text) }()

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return
				}
				out <- tts.Chunk{Err: fmt.Errorf("elevenlabs: read: %w", err)}
				return
			}
			var resp audioResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.Error != "" {
				out <- tts.Chunk{Err: fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)}
				return
			}
			if resp.Audio != "" {
				pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					out <- tts.Chunk{Err: fmt.Errorf("elevenlabs: decode audio: %w", err)}
					return
				}
				select {
				case out <- tts.Chunk{PCM: pcm}:
				case <-ctx.Done():
					return
				}
			}
			if resp.IsFinal {
				if err := <-writeErr; err != nil {
					out <- tts.Chunk{Err: err}
				}
				return
			}
		}
	}()
	return out, nil
}

// pump forwards text fragments until the channel closes, then sends the flush
// message that tells ElevenLabs input is complete.
func (p *Provider) pump(ctx context.Context, conn *websocket.Conn, text <-chan string) error {
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				return writeJSON(ctx, conn, textMessage{Text: ""})
			}
			if strings.TrimSpace(fragment) == "" {
				continue
			}
			// Trailing space lets the server detect word boundaries across fragments.
			if err := writeJSON(ctx, conn, textMessage{Text: fragment + " ", TryTriggerGeneration: true}); err != nil {
				return fmt.Errorf("elevenlabs: send text: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// ---- ListVoices ----

type voicesResponse struct {
	Voices []struct {
		VoiceID  string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
	} `json:"voices"`
}

// ListVoices returns all voices available for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID: v.VoiceID, Name: v.Name, Provider: "elevenlabs", Metadata: meta,
		})
	}
	return profiles, nil
}
