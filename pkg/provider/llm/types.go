package llm

import "strings"

// Conversation roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text content of the message.
	Content string
}

// User is shorthand for a user-role message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}

// ExtractJSON returns the substring from the first '{' to the last '}' of s,
// which recovers an object wrapped in prose or code fences. ok is false when
// no such block exists.
func ExtractJSON(s string) (obj string, ok bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
