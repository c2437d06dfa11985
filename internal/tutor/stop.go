package tutor

import "strings"

var stopWords = []string{"stop", "chat", "please"}

// IsStopPhrase reports whether the learner asked to end the session. The
// words stop, chat and please must all appear as whitespace-separated
// tokens, in any order. Case and periods around the whole phrase are
// ignored. Punctuation attached to a word makes it a different token.
func IsStopPhrase(text string) bool {
	fields := strings.Fields(strings.Trim(strings.ToLower(strings.TrimSpace(text)), "."))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f] = true
	}
	for _, w := range stopWords {
		if !seen[w] {
			return false
		}
	}
	return true
}
