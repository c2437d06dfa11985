// Package mock provides a scripted test double for oracle.Oracle.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicetutor/internal/oracle"
)

// AnswerCall records one EvaluateAnswer invocation.
type AnswerCall struct {
	Answer, Correct, Question string
}

// ResponseCall records one EvaluateResponse invocation.
type ResponseCall struct {
	Response string
	Expected []string
	Previous []string
}

// Oracle returns scripted evaluations in order. When a script is exhausted
// the last entry repeats; an empty script yields Incorrect.
type Oracle struct {
	mu sync.Mutex

	// Verdicts are returned by successive EvaluateAnswer calls.
	Verdicts []oracle.Verdict

	// AnswerErrs, when the entry at the call index is non-nil, makes that
	// EvaluateAnswer call fail.
	AnswerErrs []error

	// Results are returned by successive EvaluateResponse calls.
	Results []oracle.Result

	AnswerCalls   []AnswerCall
	ResponseCalls []ResponseCall
}

var _ oracle.Oracle = (*Oracle)(nil)

// EvaluateAnswer implements oracle.Oracle.
func (o *Oracle) EvaluateAnswer(_ context.Context, answer, correct, question string) (oracle.Verdict, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := len(o.AnswerCalls)
	o.AnswerCalls = append(o.AnswerCalls, AnswerCall{Answer: answer, Correct: correct, Question: question})
	if i < len(o.AnswerErrs) && o.AnswerErrs[i] != nil {
		return oracle.Error, o.AnswerErrs[i]
	}
	if len(o.Verdicts) == 0 {
		return oracle.Incorrect, nil
	}
	return o.Verdicts[min(i, len(o.Verdicts)-1)], nil
}

// EvaluateResponse implements oracle.Oracle.
func (o *Oracle) EvaluateResponse(_ context.Context, response string, expected, previous []string) oracle.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := len(o.ResponseCalls)
	o.ResponseCalls = append(o.ResponseCalls, ResponseCall{
		Response: response,
		Expected: append([]string(nil), expected...),
		Previous: append([]string(nil), previous...),
	})
	if len(o.Results) == 0 {
		return oracle.OkResult(oracle.LanguageAssessment{Verdict: oracle.Incorrect})
	}
	return o.Results[min(i, len(o.Results)-1)]
}

// AnswerCallCount returns the number of EvaluateAnswer calls so far.
func (o *Oracle) AnswerCallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.AnswerCalls)
}

// ResponseCallCount returns the number of EvaluateResponse calls so far.
func (o *Oracle) ResponseCallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ResponseCalls)
}
