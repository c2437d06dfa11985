// Package lesson loads the content a tutoring session walks through.
//
// A [Lesson] carries exactly one of two variants: a lecture (textbook context
// plus question/answer pairs) or a chat lesson (conversation prompts with
// expected responses). Lessons are immutable once loaded.
//
// Content comes from one of three [Source] implementations: the content
// backend ([Backend]), a local YAML or JSON document ([File]), or the LLM
// curriculum generator ([Generator]).
package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/voicetutor/internal/config"
)

// ErrNoContent is wrapped by every error for missing or empty lesson content.
var ErrNoContent = errors.New("lesson: no content")

// Source loads a lesson for a mode. An empty mode lets the source decide,
// when it can.
type Source interface {
	Load(ctx context.Context, mode config.Mode) (*Lesson, error)
}

// Lesson is the loaded content for one session.
type Lesson struct {
	Mode    config.Mode
	Lecture *LectureLesson
	Chat    *ChatLesson
}

// LectureLesson is a textbook section with questions about it.
type LectureLesson struct {
	Title   string        `json:"title" yaml:"title"`
	Context string        `json:"context" yaml:"context"`
	Turns   []LectureTurn `json:"dialogs" yaml:"dialogs"`
}

// LectureTurn is one question with its reference answer.
type LectureTurn struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// ChatLesson is a conversation practice lesson.
type ChatLesson struct {
	Title string     `json:"title" yaml:"title"`
	Level string     `json:"level" yaml:"level"`
	Turns []ChatTurn `json:"conversations" yaml:"conversations"`
}

// ChatTurn is one conversation prompt.
type ChatTurn struct {
	Prompt            string   `json:"prompt" yaml:"prompt"`
	ExpectedResponses []string `json:"expected_responses" yaml:"expected_responses"`
	FollowUp          string   `json:"follow_up" yaml:"follow_up"`
}

// NewLecture wraps l as a lecture-mode Lesson.
func NewLecture(l *LectureLesson) *Lesson {
	return &Lesson{Mode: config.ModeLecture, Lecture: l}
}

// NewChat wraps c as a chat-mode Lesson.
func NewChat(c *ChatLesson) *Lesson {
	return &Lesson{Mode: config.ModeChat, Chat: c}
}

// Title returns the title of whichever variant is set.
func (l *Lesson) Title() string {
	switch {
	case l.Lecture != nil:
		return l.Lecture.Title
	case l.Chat != nil:
		return l.Chat.Title
	}
	return ""
}

// Len returns the number of turns in the lesson.
func (l *Lesson) Len() int {
	switch {
	case l.Lecture != nil:
		return len(l.Lecture.Turns)
	case l.Chat != nil:
		return len(l.Chat.Turns)
	}
	return 0
}

// Validate reports a *config.ConfigurationError when the lesson cannot drive
// a session: unknown mode, the variant for the mode missing, or no usable turns.
func (l *Lesson) Validate() error {
	if l == nil {
		return contentError("lesson", "no lesson loaded")
	}
	switch l.Mode {
	case config.ModeLecture:
		if l.Lecture == nil {
			return contentError("lesson.lecture", "missing lecture content")
		}
		for i, t := range l.Lecture.Turns {
			if strings.TrimSpace(t.Question) == "" {
				return contentError(fmt.Sprintf("lesson.lecture.dialogs[%d]", i), "empty question")
			}
		}
	case config.ModeChat:
		if l.Chat == nil {
			return contentError("lesson.chat", "missing chat content")
		}
		for i, t := range l.Chat.Turns {
			if strings.TrimSpace(t.Prompt) == "" {
				return contentError(fmt.Sprintf("lesson.chat.conversations[%d]", i), "empty prompt")
			}
		}
	default:
		return &config.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", l.Mode)}
	}
	if l.Len() == 0 {
		return contentError("lesson", "no turns")
	}
	return nil
}

func contentError(field, reason string) error {
	return &config.ConfigurationError{Field: field, Reason: reason, Err: ErrNoContent}
}

// resolveMode picks the requested mode, falling back to the source's own.
func resolveMode(requested, fromSource config.Mode) (config.Mode, error) {
	mode := requested
	if mode == "" {
		mode = fromSource
	}
	if !mode.IsValid() {
		return "", &config.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown or missing mode %q", mode)}
	}
	return mode, nil
}
