package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
)

// GeneratorLevels are the learner levels a generated lesson targets.
var GeneratorLevels = []string{"Beginner", "Elementary"}

// DefaultTopic is used when the generator is given no topic.
const DefaultTopic = "everyday conversation"

// Generator asks an LLM to design a conversation lesson. Any failure to get a
// usable lesson falls back to [FallbackChatLesson].
type Generator struct {
	LLM llm.Provider

	// Topic is used by Load. Generate takes the topic as an argument.
	Topic string

	// Pick returns a random index in [0, n). Nil uses math/rand/v2.
	Pick func(n int) int
}

var _ Source = (*Generator)(nil)

// Load implements Source. Only chat mode can be generated.
func (g *Generator) Load(ctx context.Context, mode config.Mode) (*Lesson, error) {
	if mode != "" && mode != config.ModeChat {
		return nil, &config.ConfigurationError{Field: "lesson.source", Reason: fmt.Sprintf("cannot generate %s lessons", mode)}
	}
	chat, err := g.Generate(ctx, g.Topic)
	if err != nil {
		return nil, err
	}
	l := NewChat(chat)
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Generate returns a chat lesson on topic. It only fails when ctx is done.
func (g *Generator) Generate(ctx context.Context, topic string) (*ChatLesson, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	pick := g.Pick
	if pick == nil {
		pick = rand.IntN
	}
	level := GeneratorLevels[pick(len(GeneratorLevels))]

	if g.LLM == nil {
		return FallbackChatLesson(), nil
	}

	resp, err := g.LLM.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf("You are an expert English language curriculum designer. Create an engaging conversational English lesson appropriate for a non-English speaker on the topic of %s.", topic),
		Messages:     []llm.Message{llm.User(curriculumPrompt(level))},
		JSON:         true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("lesson generation failed, using fallback lesson", "topic", topic, "err", err)
		return FallbackChatLesson(), nil
	}

	if resp == nil {
		slog.Warn("lesson generation returned no response, using fallback lesson", "topic", topic)
		return FallbackChatLesson(), nil
	}

	chat, err := parseChatLesson(resp.Content)
	if err != nil {
		slog.Warn("generated lesson unusable, using fallback lesson", "topic", topic, "err", err)
		return FallbackChatLesson(), nil
	}
	if chat.Level == "" {
		chat.Level = level
	}
	return chat, nil
}

func curriculumPrompt(level string) string {
	return fmt.Sprintf("Create a short English conversation practice lesson for %[1]s level students. "+
		"The lesson should focus on practical, everyday English conversation skills. "+
		"Format the response as a JSON object with the following structure:\n\n"+
		`{"title": "Lesson title", "level": "%[1]s", "conversations": [{"prompt": "Question or instruction for student", `+
		`"expected_responses": ["possible response 1", "possible response 2"], "follow_up": "Encouraging feedback and additional information"}]}`,
		level)
}

func parseChatLesson(text string) (*ChatLesson, error) {
	obj, ok := llm.ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var chat ChatLesson
	if err := json.Unmarshal([]byte(obj), &chat); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	turns := chat.Turns[:0]
	for _, t := range chat.Turns {
		if strings.TrimSpace(t.Prompt) != "" {
			turns = append(turns, t)
		}
	}
	chat.Turns = turns
	if len(chat.Turns) == 0 {
		return nil, ErrNoContent
	}
	return &chat, nil
}

// FallbackChatLesson returns the built-in greetings lesson. Each call returns
// a fresh copy.
func FallbackChatLesson() *ChatLesson {
	return &ChatLesson{
		Title: "Basic English Greetings",
		Level: "Beginner",
		Turns: []ChatTurn{
			{
				Prompt:            "Let's practice saying hello. How would you greet someone in the morning?",
				ExpectedResponses: []string{"Good morning", "Hello", "Hi"},
				FollowUp:          "Great! 'Good morning' is a perfect greeting for the morning. Can you also say 'Hello' or 'Hi'?",
			},
			{
				Prompt:            "Now let's practice introducing yourself. Say: 'My name is...' and add your name.",
				ExpectedResponses: []string{"My name is", "I am", "I'm"},
				FollowUp:          "Excellent! That's how we introduce ourselves in English.",
			},
			{
				Prompt:            "How would you ask someone their name?",
				ExpectedResponses: []string{"What is your name", "What's your name"},
				FollowUp:          "Perfect! 'What is your name?' or 'What's your name?' is how we ask someone's name.",
			},
			{
				Prompt:            "Let's practice saying goodbye. How would you say goodbye to someone?",
				ExpectedResponses: []string{"Goodbye", "Bye", "See you later", "See you soon"},
				FollowUp:          "Excellent! Those are all great ways to say goodbye in English.",
			},
		},
	}
}
