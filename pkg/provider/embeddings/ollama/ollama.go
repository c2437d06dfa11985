// Package ollama provides an embeddings provider backed by a local Ollama server.
//
// It talks to Ollama's native /api/embed endpoint, which accepts a batch of
// inputs and returns one vector per input:
//
//	p, err := ollama.New("", "nomic-embed-text") // http://localhost:11434
//	vecs, err := p.EmbedBatch(ctx, []string{answer, reference})
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// DefaultModel is used when New receives an empty model name.
const DefaultModel = "nomic-embed-text"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using a local Ollama server.
type Provider struct {
	baseURL    string
	model      string
	keepAlive  string
	httpClient *http.Client
}

type config struct {
	timeout   time.Duration
	keepAlive string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithKeepAlive controls how long Ollama keeps the model loaded after a
// request, using Ollama's duration syntax ("5m", "-1").
func WithKeepAlive(v string) Option {
	return func(c *config) {
		c.keepAlive = v
	}
}

// New constructs an Ollama embeddings Provider. An empty baseURL selects
// DefaultBaseURL and an empty model selects DefaultModel.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("ollama embeddings: base URL %q must be http(s)", baseURL)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		keepAlive:  cfg.keepAlive,
		httpClient: &http.Client{Timeout: cfg.timeout},
	}, nil
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch implements embeddings.Provider. An empty texts slice returns
// (nil, nil) without a request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts, KeepAlive: p.keepAlive})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama embeddings: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}
