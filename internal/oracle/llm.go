package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/MrWong99/voicetutor/pkg/provider/llm"
)

// ErrMalformed is wrapped by the error of a Degraded result when the
// evaluator's output could not be parsed.
var ErrMalformed = errors.New("oracle: malformed evaluation")

// assessmentSchema constrains the chat-mode evaluation object.
const assessmentSchema = `{
	"type": "object",
	"required": ["evaluation"],
	"properties": {
		"evaluation": {"enum": ["correct", "partially_correct", "incorrect", "error"]},
		"language_level": {"enum": ["beginner", "elementary", "intermediate"]},
		"interests": {"type": "array", "items": {"type": "string"}},
		"feedback_focus": {"enum": ["vocabulary", "grammar", "pronunciation", "confidence"]}
	}
}`

const assessmentSchemaURL = "schema://language-assessment.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledAssessmentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(assessmentSchema), &def); err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(assessmentSchemaURL, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		schemaCompiled, schemaErr = c.Compile(assessmentSchemaURL)
	})
	return schemaCompiled, schemaErr
}

// LLM evaluates answers by prompting a language model.
type LLM struct {
	LLM llm.Provider

	// Temperature for evaluation calls. Zero leaves the provider default.
	Temperature float64
}

var _ Oracle = (*LLM)(nil)

// NewLLM returns an LLM oracle backed by p.
func NewLLM(p llm.Provider) *LLM {
	return &LLM{LLM: p}
}

// EvaluateAnswer implements Oracle.
func (o *LLM) EvaluateAnswer(ctx context.Context, answer, correct, question string) (Verdict, error) {
	prompt := "You are an educational assessment assistant. Your task is to evaluate if a student's answer is correct, " +
		"partially correct, or incorrect compared to the expected answer. " +
		"Return 'correct', 'partially_correct', or 'incorrect'.\n\n" +
		fmt.Sprintf("Question: %s\nExpected answer: %s\nStudent answer: %s\n\n", question, correct, answer) +
		"Evaluate if the student's answer is correct, partially correct, or incorrect."

	text, err := o.complete(ctx, prompt, false)
	if err != nil {
		return Error, fmt.Errorf("oracle: evaluate answer: %w", err)
	}
	return ParseVerdict(text), nil
}

// EvaluateResponse implements Oracle.
func (o *LLM) EvaluateResponse(ctx context.Context, response string, expected, previous []string) Result {
	prev := "None"
	if len(previous) > 0 {
		prev = strings.Join(previous, "; ")
	}
	prompt := "You are an English language assessment assistant for children.\n" +
		"Your task is to evaluate if a child's response shows understanding of the question and contains appropriate vocabulary,\n" +
		"even if it doesn't exactly match expected phrases. Consider their language development level.\n" +
		"Return a JSON with:\n" +
		"{\n" +
		`  "evaluation": "correct" or "partially_correct" or "incorrect",` + "\n" +
		`  "language_level": "beginner" or "elementary" or "intermediate",` + "\n" +
		`  "interests": ["topic1", "topic2"],` + "\n" +
		`  "feedback_focus": "vocabulary" or "grammar" or "pronunciation" or "confidence"` + "\n" +
		"}\n\n" +
		fmt.Sprintf("Expected content: %s\nStudent response: %s\nPrevious responses: %s\n\n", strings.Join(expected, ", "), response, prev) +
		"Evaluate if the student's response shows understanding and provide language assessment details."

	text, err := o.complete(ctx, prompt, true)
	if err != nil {
		return FailedResult(fmt.Errorf("oracle: evaluate response: %w", err))
	}
	a, err := parseAssessment(text)
	if err != nil {
		return DegradedResult(err)
	}
	return OkResult(a)
}

func (o *LLM) complete(ctx context.Context, prompt string, jsonOut bool) (string, error) {
	if o.LLM == nil {
		return "", errors.New("no llm provider configured")
	}
	resp, err := o.LLM.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.User(prompt)},
		Temperature: o.Temperature,
		JSON:        jsonOut,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

type assessmentJSON struct {
	Evaluation    string   `json:"evaluation"`
	LanguageLevel string   `json:"language_level"`
	Interests     []string `json:"interests"`
	FeedbackFocus string   `json:"feedback_focus"`
}

// parseAssessment extracts and validates the evaluation object from model
// output. Enum fields are compared case-insensitively.
func parseAssessment(text string) (LanguageAssessment, error) {
	obj, ok := llm.ExtractJSON(text)
	if !ok {
		return LanguageAssessment{}, fmt.Errorf("%w: no JSON object in output", ErrMalformed)
	}

	var parsed any
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return LanguageAssessment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m, ok := parsed.(map[string]any)
	if !ok {
		return LanguageAssessment{}, fmt.Errorf("%w: output is not an object", ErrMalformed)
	}
	for _, k := range []string{"evaluation", "language_level", "feedback_focus"} {
		if s, ok := m[k].(string); ok {
			m[k] = strings.ToLower(strings.TrimSpace(s))
		}
	}

	schema, err := compiledAssessmentSchema()
	if err != nil {
		return LanguageAssessment{}, fmt.Errorf("oracle: compile assessment schema: %w", err)
	}
	if err := schema.Validate(m); err != nil {
		return LanguageAssessment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Re-encode the normalized map so typed decoding sees the lowercased values.
	norm, err := json.Marshal(m)
	if err != nil {
		return LanguageAssessment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var raw assessmentJSON
	if err := json.Unmarshal(norm, &raw); err != nil {
		return LanguageAssessment{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	interests := make([]string, 0, len(raw.Interests))
	for _, in := range raw.Interests {
		if in = strings.TrimSpace(in); in != "" {
			interests = append(interests, in)
		}
	}
	return LanguageAssessment{
		Verdict:       Verdict(raw.Evaluation),
		LanguageLevel: raw.LanguageLevel,
		Interests:     interests,
		FeedbackFocus: raw.FeedbackFocus,
	}, nil
}
