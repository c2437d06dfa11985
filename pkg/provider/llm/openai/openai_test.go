package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicetutor/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	for _, role := range []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant} {
		param, err := convertMessage(llm.Message{Role: role, Content: "hello"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", role, err)
		}
		switch role {
		case llm.RoleSystem:
			if param.OfSystem == nil {
				t.Error("expected OfSystem to be set")
			}
		case llm.RoleUser:
			if param.OfUser == nil {
				t.Error("expected OfUser to be set")
			}
		case llm.RoleAssistant:
			if param.OfAssistant == nil {
				t.Error("expected OfAssistant to be set")
			}
		}
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestBuildParams_NoMessages(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	if _, err := p.buildParams(llm.CompletionRequest{SystemPrompt: "x"}); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestBuildParams_SystemPrompt(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a tutor.",
		Messages:     []llm.Message{llm.User("hi")},
		MaxTokens:    100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 100 {
		t.Errorf("got max tokens %+v, want 100", params.MaxCompletionTokens)
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model   string
		wantCtx int
	}{
		{"gpt-4o-mini", 128_000},
		{"gpt-4", 8_192},
		{"gpt-3.5-turbo", 16_385},
		{"o3-mini", 200_000},
		{"my-custom-model", 128_000},
	}
	for _, tt := range tests {
		if got := modelCapabilities(tt.model).ContextWindow; got != tt.wantCtx {
			t.Errorf("%s: got context window %d, want %d", tt.model, got, tt.wantCtx)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key without base URL")
	}
	if _, err := New("", "llama-3.2-1b", WithBaseURL("http://localhost:8000/v1/")); err != nil {
		t.Errorf("keyless local server: unexpected error: %v", err)
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

func TestComplete_RoundTrip(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "correct"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 1, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Judge the answer.",
		Messages:     []llm.Message{llm.User("Gravity pulls things down.")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "correct" {
		t.Errorf("got content %q, want correct", resp.Content)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("got total tokens %d, want 13", resp.Usage.TotalTokens)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("got model %v, want gpt-4o-mini", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("got %d messages on the wire, want 2", len(msgs))
	}
}

func TestComplete_JSONModeLocalServer(t *testing.T) {
	t.Parallel()

	var (
		gotBody map[string]any
		gotAuth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama-3.2-1b",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"evaluation\": \"correct\"}"}}]
		}`))
	}))
	defer srv.Close()

	p, err := New("", "llama-3.2-1b", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.User("Evaluate: hello")},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"evaluation": "correct"}` {
		t.Errorf("got content %q", resp.Content)
	}
	if gotAuth != "Bearer "+localKey {
		t.Errorf("got Authorization %q, want Bearer %s", gotAuth, localKey)
	}
	rf, _ := gotBody["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("got response_format %v, want type json_object", gotBody["response_format"])
	}
}

func TestComplete_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.User("hi")},
	}); err == nil {
		t.Fatal("expected error from failing server")
	}
}
