// Package oracle judges learner answers.
//
// Lecture answers get a [Verdict] against a reference answer. Chat responses
// get a [Result] that also carries personalization signals for the student
// profile. Three evaluators are provided: [LLM] (the default, prompt based),
// [Lexical] (offline fuzzy and phonetic matching) and [Semantic] (embedding
// similarity).
package oracle

import (
	"context"
	"strings"
)

// Verdict is the outcome of judging one answer.
type Verdict string

const (
	Correct          Verdict = "correct"
	PartiallyCorrect Verdict = "partially_correct"
	Incorrect        Verdict = "incorrect"

	// Error marks an evaluation whose output could not be understood. Callers
	// treat it like Incorrect.
	Error Verdict = "error"
)

// IsValid reports whether v is one of the four verdicts.
func (v Verdict) IsValid() bool {
	switch v {
	case Correct, PartiallyCorrect, Incorrect, Error:
		return true
	}
	return false
}

// Assessment defaults used when an evaluation degrades.
const (
	DefaultLanguageLevel = "beginner"
	DefaultFeedbackFocus = "vocabulary"
)

// LanguageAssessment is the chat-mode evaluation of one response.
type LanguageAssessment struct {
	Verdict Verdict

	// LanguageLevel is one of beginner, elementary, intermediate. Empty means
	// the evaluator offered no opinion.
	LanguageLevel string

	// Interests are topics the learner showed interest in.
	Interests []string

	// FeedbackFocus is one of vocabulary, grammar, pronunciation, confidence.
	// Empty means no opinion.
	FeedbackFocus string
}

// DefaultAssessment is the assessment a degraded evaluation carries.
func DefaultAssessment() LanguageAssessment {
	return LanguageAssessment{
		Verdict:       Error,
		LanguageLevel: DefaultLanguageLevel,
		Interests:     []string{},
		FeedbackFocus: DefaultFeedbackFocus,
	}
}

// Kind tags a Result.
type Kind int

const (
	// Ok means the evaluator produced a well-formed assessment.
	Ok Kind = iota
	// Degraded means the evaluator answered but the answer was malformed;
	// Assessment holds DefaultAssessment and Err the parse problem.
	Degraded
	// Failed means the evaluator could not be reached; Err is set and
	// Assessment is meaningless.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the tagged outcome of a chat-mode evaluation.
type Result struct {
	Kind       Kind
	Assessment LanguageAssessment
	Err        error
}

// OkResult wraps a successful assessment.
func OkResult(a LanguageAssessment) Result { return Result{Kind: Ok, Assessment: a} }

// DegradedResult returns a Degraded result carrying the default assessment.
func DegradedResult(err error) Result {
	return Result{Kind: Degraded, Assessment: DefaultAssessment(), Err: err}
}

// FailedResult returns a Failed result.
func FailedResult(err error) Result { return Result{Kind: Failed, Err: err} }

// Oracle evaluates learner input. Implementations must be safe for
// concurrent use.
type Oracle interface {
	// EvaluateAnswer judges a lecture answer against the reference answer.
	// A non-nil error means the evaluator could not be reached.
	EvaluateAnswer(ctx context.Context, answer, correct, question string) (Verdict, error)

	// EvaluateResponse judges a chat response against the expected responses,
	// given everything the learner said before (including response).
	EvaluateResponse(ctx context.Context, response string, expected, previous []string) Result
}

// ParseVerdict classifies free text from an evaluator. Any mention of
// "partial" is PartiallyCorrect, then "incorrect" is Incorrect, then
// "correct" is Correct. Everything else is Incorrect.
func ParseVerdict(text string) Verdict {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "partial"):
		return PartiallyCorrect
	case strings.Contains(t, "incorrect"):
		return Incorrect
	case strings.Contains(t, "correct"):
		return Correct
	}
	return Incorrect
}

// classify maps a similarity score to a verdict.
func classify(score, correctAt, partialAt float64) Verdict {
	switch {
	case score >= correctAt:
		return Correct
	case score >= partialAt:
		return PartiallyCorrect
	}
	return Incorrect
}
