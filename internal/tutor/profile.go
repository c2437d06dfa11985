package tutor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/voicetutor/internal/oracle"
)

// Profile is what the chat dialogue has learned about the learner. It only
// grows: interests are never removed and previous responses are append-only.
type Profile struct {
	LanguageLevel string
	// Interests keeps first-seen order without duplicates.
	Interests         []string
	FeedbackFocus     string
	PreviousResponses []string
}

// NewProfile returns a profile for a learner at the given level. The level
// is lower-cased; an empty level starts as beginner.
func NewProfile(level string) *Profile {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = oracle.DefaultLanguageLevel
	}
	return &Profile{
		LanguageLevel:     level,
		Interests:         []string{},
		FeedbackFocus:     oracle.DefaultFeedbackFocus,
		PreviousResponses: []string{},
	}
}

// AddResponse appends a learner response.
func (p *Profile) AddResponse(text string) {
	p.PreviousResponses = append(p.PreviousResponses, text)
}

// Merge folds an assessment into the profile. Level and focus are replaced
// only when the assessment carries them. Interests are unioned; merging the
// same interest twice is a no-op.
func (p *Profile) Merge(a oracle.LanguageAssessment) {
	if a.LanguageLevel != "" {
		p.LanguageLevel = a.LanguageLevel
	}
	if a.FeedbackFocus != "" {
		p.FeedbackFocus = a.FeedbackFocus
	}
	for _, in := range a.Interests {
		if in != "" && !slices.Contains(p.Interests, in) {
			p.Interests = append(p.Interests, in)
		}
	}
}

// String renders the profile for coaching prompts.
func (p *Profile) String() string {
	if p == nil {
		return ""
	}
	interests := "unknown"
	if len(p.Interests) > 0 {
		interests = strings.Join(p.Interests, ", ")
	}
	previous := "none"
	if len(p.PreviousResponses) > 0 {
		previous = strings.Join(p.PreviousResponses, "; ")
	}
	return fmt.Sprintf("language level: %s, interests: %s, feedback focus: %s, previous responses: %s",
		p.LanguageLevel, interests, p.FeedbackFocus, previous)
}
