package oracle

import (
	"context"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Default score thresholds shared by the similarity oracles.
const (
	DefaultCorrectThreshold = 0.8
	DefaultPartialThreshold = 0.5
)

// tokenMatchThreshold is the Jaro-Winkler score at which two words are
// considered the same word. Phonetically equal words need only
// phoneticMatchThreshold, which absorbs transcription misspellings.
const (
	tokenMatchThreshold    = 0.9
	phoneticMatchThreshold = 0.75
)

// Words ignored when measuring how much of a reference answer was covered.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "that": {}, "this": {}, "is": {}, "are": {},
	"was": {}, "to": {}, "of": {}, "and": {}, "or": {}, "it": {}, "its": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "each": {}, "other": {},
	"by": {}, "as": {}, "be": {}, "at": {},
}

// Lexical scores answers offline by word coverage. Each content word of the
// reference counts as covered when some answer word equals it, is within
// Jaro-Winkler distance, or shares a Double Metaphone code with it. The
// score blends coverage with whole-string similarity.
type Lexical struct {
	correctAt float64
	partialAt float64
}

var _ Oracle = (*Lexical)(nil)

// LexicalOption configures a Lexical oracle.
type LexicalOption func(*Lexical)

// WithLexicalThresholds sets the score at or above which an answer is
// correct, and the score at or above which it is partially correct.
func WithLexicalThresholds(correct, partial float64) LexicalOption {
	return func(l *Lexical) {
		l.correctAt = correct
		l.partialAt = partial
	}
}

// NewLexical returns a Lexical oracle.
func NewLexical(opts ...LexicalOption) *Lexical {
	l := &Lexical{correctAt: DefaultCorrectThreshold, partialAt: DefaultPartialThreshold}
	for _, o := range opts {
		o(l)
	}
	return l
}

// EvaluateAnswer implements Oracle. It never fails.
func (l *Lexical) EvaluateAnswer(_ context.Context, answer, correct, _ string) (Verdict, error) {
	return classify(Score(answer, correct), l.correctAt, l.partialAt), nil
}

// EvaluateResponse implements Oracle. The response is scored against the
// closest expected response. With no expected responses any non-empty
// response is partially correct.
func (l *Lexical) EvaluateResponse(_ context.Context, response string, expected, _ []string) Result {
	v := Incorrect
	if len(expected) == 0 {
		if strings.TrimSpace(response) != "" {
			v = PartiallyCorrect
		}
	} else {
		best := 0.0
		for _, e := range expected {
			best = max(best, Score(response, e))
		}
		v = classify(best, l.correctAt, l.partialAt)
	}
	return OkResult(LanguageAssessment{Verdict: v, Interests: []string{}})
}

// Score returns the lexical similarity of answer to reference in [0, 1].
func Score(answer, reference string) float64 {
	ansTokens := tokenize(answer)
	refTokens := tokenize(reference)
	if len(ansTokens) == 0 || len(refTokens) == 0 {
		return 0
	}
	ansFull := strings.Join(ansTokens, " ")
	refFull := strings.Join(refTokens, " ")
	if ansFull == refFull {
		return 1
	}

	content := contentTokens(refTokens)
	ansCodes := make([]map[string]struct{}, len(ansTokens))
	for i, t := range ansTokens {
		ansCodes[i] = codesForToken(t)
	}

	covered := 0
	for _, rt := range content {
		rc := codesForToken(rt)
		for i, at := range ansTokens {
			if tokenMatches(at, rt, ansCodes[i], rc) {
				covered++
				break
			}
		}
	}
	coverage := float64(covered) / float64(len(content))
	whole := matchr.JaroWinkler(ansFull, refFull, false)
	return 0.8*coverage + 0.2*whole
}

func tokenMatches(a, b string, ac, bc map[string]struct{}) bool {
	if a == b {
		return true
	}
	jw := matchr.JaroWinkler(a, b, false)
	if jw >= tokenMatchThreshold {
		return true
	}
	return jw >= phoneticMatchThreshold && codesOverlap(ac, bc)
}

// tokenize lowercases s and splits it into words, dropping punctuation.
// Apostrophes are removed so "what's" and "whats" agree.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "'", "")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentTokens drops stopwords, keeping all tokens if nothing is left.
func contentTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return tokens
	}
	return out
}

func codesForToken(t string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(t)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
