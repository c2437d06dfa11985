package llm_test

import (
	"testing"

	"github.com/MrWong99/voicetutor/pkg/provider/llm"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"Sure! Here it is:\n```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"no json here", "", false},
		{"} backwards {", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := llm.ExtractJSON(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExtractJSON(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestUser(t *testing.T) {
	t.Parallel()

	m := llm.User("hi")
	if m.Role != llm.RoleUser || m.Content != "hi" {
		t.Errorf("got %+v, want user/hi", m)
	}
}
