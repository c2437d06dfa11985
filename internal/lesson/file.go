package lesson

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicetutor/internal/config"
)

// File loads a lesson from a local YAML or JSON document:
//
//	mode: lecture
//	lecture:
//	  title: Forces
//	  context: Gravity is a force that pulls objects toward each other...
//	  dialogs:
//	    - question: What is gravity?
//	      answer: A force that pulls objects toward each other.
//	chat:
//	  title: Greetings
//	  level: Beginner
//	  conversations:
//	    - prompt: How do you greet someone in the morning?
//	      expected_responses: [Good morning, Hello]
//	      follow_up: Great! Good morning is perfect.
//
// A document may carry both variants; the requested mode picks one.
type File struct {
	Path string
}

var _ Source = (*File)(nil)

type fileDocument struct {
	Mode    config.Mode    `yaml:"mode"`
	Lecture *LectureLesson `yaml:"lecture"`
	Chat    *ChatLesson    `yaml:"chat"`
}

// Load implements Source.
func (f *File) Load(_ context.Context, mode config.Mode) (*Lesson, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &config.ConfigurationError{Field: "lesson.path", Reason: fmt.Sprintf("%q does not exist", f.Path), Err: ErrNoContent}
		}
		return nil, fmt.Errorf("lesson: read %q: %w", f.Path, err)
	}
	return Parse(bytes.NewReader(data), mode)
}

// Parse decodes a lesson document from r and selects the variant for mode.
// JSON documents parse as well since JSON is valid YAML.
func Parse(r io.Reader, mode config.Mode) (*Lesson, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, contentError("lesson", "document is empty")
		}
		return nil, fmt.Errorf("lesson: decode document: %w", err)
	}

	if doc.Mode == "" {
		switch {
		case doc.Lecture != nil && doc.Chat == nil:
			doc.Mode = config.ModeLecture
		case doc.Chat != nil && doc.Lecture == nil:
			doc.Mode = config.ModeChat
		}
	}
	mode, err := resolveMode(mode, doc.Mode)
	if err != nil {
		return nil, err
	}

	l := &Lesson{Mode: mode}
	switch mode {
	case config.ModeLecture:
		l.Lecture = doc.Lecture
	case config.ModeChat:
		l.Chat = doc.Chat
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}
