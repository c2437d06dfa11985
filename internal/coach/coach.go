// Package coach generates the tutor's spoken teaching text: explanations and
// hints for lecture lessons, and personalized prompts and feedback for chat
// lessons.
//
// Every method returns text to speak. A failed or empty generation returns a
// canned fallback instead of an error, so a flaky model degrades the lesson
// rather than interrupting it.
package coach

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"text/template"

	"github.com/MrWong99/voicetutor/pkg/provider/llm"
)

// Fallback lines spoken when generation fails.
const (
	ExplainFallback  = "I'm having trouble explaining this concept. Let's try again later."
	FeedbackFallback = "I'm having trouble providing feedback. Let's try again."
)

// NewStudent stands in for an empty student profile in prompts.
const NewStudent = "New student"

const languageTutorSystem = `You are an English language tutor for children who are learning English as a second language.
Your goal is to help them practice speaking English through natural, adaptive conversation.
Adapt your language complexity, pace, and teaching style based on how the child responds:
- If they use simple words and short sentences, match that level and gradually introduce new vocabulary.
- If they make grammar mistakes, gently model the correct form without explicitly correcting them.
- If they show confidence, introduce slightly more complex language constructs.
Notice their interests based on their responses and incorporate those topics when possible.
Always be encouraging, patient, and responsive to their unique communication style.
Remember that learning should be fun and engaging for children.`

var (
	educatorSystemTmpl = template.Must(template.New("educator").Parse(`You are an educational assistant for children. You're teaching concepts from textbooks.
Your goal is to help kids learn and understand new concepts.
Keep explanations simple, engaging, and at a level appropriate for a 7-10 year old child.
The following is the context from the textbook that you should use as reference:
{{.Context}}`))

	explainTmpl = template.Must(template.New("explain").Parse(`You are an educational assistant for children. Your task is to explain a concept from a textbook before asking a question. Make the explanation engaging, interactive, and appropriate for a 7-10 year old.

Context from textbook: {{.Context}}

I'm about to ask this question: {{.Question}}

Provide a very brief, engaging explanation (2-3 sentences max) that will help a child understand just the key concept needed to answer this question. Keep it simple, conversational, and interactive - like you're talking directly to the child. End your explanation with the question.`))

	hintTmpl = template.Must(template.New("hint").Parse(`You are an educational assistant for children. Your task is to provide a short, helpful hint when a student gives an incorrect answer. Make the explanation engaging, interactive, and appropriate for a 7-10 year old.

Context from textbook: {{.Context}}

Question: {{.Question}}
Correct answer: {{.Answer}}
Student's answer: {{.StudentAnswer}}

Provide a very brief hint (1-2 sentences) to guide the student toward the correct answer. Be encouraging and interactive. End your hint by asking the question again.`))

	presentTmpl = template.Must(template.New("present").Parse(`You are an English language tutor for children. Present a conversational prompt in a way that's friendly and matches the child's current language level.

Present this prompt to the student: {{.Prompt}}

Student profile (if available): {{.Profile}}`))

	feedbackTmpl = template.Must(template.New("feedback").Funcs(template.FuncMap{"join": strings.Join}).Parse(`You are an English language tutor for children. Provide personalized feedback that:
1. Adapts to their language level (simpler explanations for beginners)
2. Incorporates their interests when possible
3. Focuses on the specific area they need help with (vocabulary, grammar, etc.)
4. Uses encouragement and positive reinforcement
5. Models correct language naturally rather than just correcting
Be warm, engaging, and make learning fun!

Prompt given: {{.Prompt}}
Expected responses: {{join .Expected ", "}}
Student's response: {{.Response}}

Student profile: {{.Profile}}

Provide personalized, adaptive feedback that helps them improve while maintaining their confidence.`))
)

// Option configures a Coach.
type Option func(*Coach)

// WithTemperature sets the sampling temperature for generations.
func WithTemperature(t float64) Option {
	return func(c *Coach) { c.temperature = t }
}

// WithMaxTokens caps the length of generations.
func WithMaxTokens(n int) Option {
	return func(c *Coach) { c.maxTokens = n }
}

// Coach generates teaching text with an LLM.
type Coach struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// New returns a Coach backed by p.
func New(p llm.Provider, opts ...Option) *Coach {
	c := &Coach{llm: p}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Explain introduces a lecture question with a short explanation of the
// lesson context. The text ends with the question.
func (c *Coach) Explain(ctx context.Context, lessonContext, question string) string {
	return c.generate(ctx, "explain", educatorSystem(lessonContext), explainTmpl, map[string]any{
		"Context":  lessonContext,
		"Question": question,
	}, ExplainFallback)
}

// Hint nudges the learner toward answer after a wrong studentAnswer. The
// text ends by asking the question again.
func (c *Coach) Hint(ctx context.Context, lessonContext, question, answer, studentAnswer string) string {
	return c.generate(ctx, "hint", educatorSystem(lessonContext), hintTmpl, map[string]any{
		"Context":       lessonContext,
		"Question":      question,
		"Answer":        answer,
		"StudentAnswer": studentAnswer,
	}, ExplainFallback)
}

// Present rephrases a chat prompt for the learner described by profile.
func (c *Coach) Present(ctx context.Context, prompt, profile string) string {
	return c.generate(ctx, "present", languageTutorSystem, presentTmpl, map[string]any{
		"Prompt":  prompt,
		"Profile": profileOrNew(profile),
	}, FeedbackFallback)
}

// Feedback responds to a chat response. prompt is the turn's prompt for
// corrective feedback, or its follow-up text for a closing reply.
func (c *Coach) Feedback(ctx context.Context, prompt string, expected []string, response, profile string) string {
	return c.generate(ctx, "feedback", languageTutorSystem, feedbackTmpl, map[string]any{
		"Prompt":   prompt,
		"Expected": expected,
		"Response": response,
		"Profile":  profileOrNew(profile),
	}, FeedbackFallback)
}

func (c *Coach) generate(ctx context.Context, kind, system string, tmpl *template.Template, data any, fallback string) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("coach: render prompt", "kind", kind, "err", err)
		return fallback
	}
	if c.llm == nil {
		return fallback
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{llm.User(buf.String())},
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		slog.Warn("coach: generation failed, using fallback", "kind", kind, "err", err)
		return fallback
	}
	if resp == nil {
		return fallback
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		slog.Warn("coach: empty generation, using fallback", "kind", kind)
		return fallback
	}
	return text
}

func educatorSystem(lessonContext string) string {
	var buf bytes.Buffer
	if err := educatorSystemTmpl.Execute(&buf, map[string]string{"Context": lessonContext}); err != nil {
		return ""
	}
	return buf.String()
}

func profileOrNew(profile string) string {
	if strings.TrimSpace(profile) == "" {
		return NewStudent
	}
	return profile
}
