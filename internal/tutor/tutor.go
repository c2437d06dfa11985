// Package tutor runs a spoken lesson. [Lecture] walks the learner through
// textbook questions; [Chat] holds short English conversations and adapts
// to the learner as it goes.
//
// Each turn presents, listens, checks for the stop phrase and for silence,
// evaluates, and then retries or advances. An adapter error during a turn
// is apologized for and the turn restarts; after
// [Config.MaxConsecutiveFailures] failures in a row the session gives up
// with [ErrTooManyFailures].
package tutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/observe"
)

// ErrTooManyFailures ends a session whose turns keep failing.
var ErrTooManyFailures = errors.New("tutor: too many consecutive turn failures")

// DefaultMaxConsecutiveFailures is used when Config leaves the bound unset.
const DefaultMaxConsecutiveFailures = 3

// Per-turn attempt limits.
const (
	LectureMaxAttempts = 2
	ChatMaxAttempts    = 3
)

// Speaker says one line and returns after it has been played.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Listener returns the learner's next utterance, or "" for silence.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Coach produces teaching text. Methods never fail; they fall back to a
// canned line instead.
type Coach interface {
	Explain(ctx context.Context, lessonContext, question string) string
	Hint(ctx context.Context, lessonContext, question, answer, studentAnswer string) string
	Present(ctx context.Context, prompt, profile string) string
	Feedback(ctx context.Context, prompt string, expected []string, response, profile string) string
}

// Config tunes a session.
type Config struct {
	// SessionID tags history entries and log lines.
	SessionID string

	// Subject is named in the lecture welcome and completion lines.
	Subject string

	// MaxConsecutiveFailures bounds failed turns in a row. Zero means
	// DefaultMaxConsecutiveFailures.
	MaxConsecutiveFailures int

	TurnPause    time.Duration
	FailurePause time.Duration

	// Recorder, if set, receives every spoken and heard line.
	Recorder history.Recorder

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Outcome summarizes a finished session.
type Outcome struct {
	// Stopped is true when the learner said the stop phrase.
	Stopped bool

	// Completed counts turns that advanced.
	Completed int

	// Answered counts lecture turns answered correctly or partly.
	Answered int

	// Profile is the chat learner profile at the end of the session.
	Profile *Profile
}

// step is how a turn ended.
type step int

const (
	stepAdvance step = iota
	stepStop
)

// session holds the state shared by both dialogue modes.
type session struct {
	cfg      Config
	mode     string
	speaker  Speaker
	listener Listener
	metrics  *observe.Metrics

	turn     int
	attempt  int
	failures int
}

func newSession(mode string, speaker Speaker, listener Listener, cfg Config) *session {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &session{cfg: cfg, mode: mode, speaker: speaker, listener: listener, metrics: m, turn: -1}
}

func (s *session) withSession(ctx context.Context) context.Context {
	if s.cfg.SessionID == "" {
		return ctx
	}
	return observe.WithSessionID(ctx, s.cfg.SessionID)
}

// say speaks text and records it.
func (s *session) say(ctx context.Context, text string) error {
	if err := s.speaker.Say(ctx, text); err != nil {
		return err
	}
	s.record(ctx, history.RoleTutor, text, "")
	return nil
}

// sayBestEffort speaks a line whose failure must not restart the turn.
func (s *session) sayBestEffort(ctx context.Context, text string) {
	if err := s.say(ctx, text); err != nil && ctx.Err() == nil {
		observe.Logger(ctx).Warn("tutor: line not spoken", "text", text, "err", err)
	}
}

// listen returns the learner's trimmed utterance.
func (s *session) listen(ctx context.Context) (string, error) {
	return s.listener.Listen(ctx)
}

func (s *session) record(ctx context.Context, role history.Role, text, verdict string) {
	if s.cfg.Recorder == nil {
		return
	}
	err := s.cfg.Recorder.Record(ctx, history.Entry{
		SessionID: s.cfg.SessionID,
		Mode:      s.mode,
		Turn:      s.turn,
		Attempt:   s.attempt,
		Role:      role,
		Text:      text,
		Verdict:   verdict,
		At:        time.Now(),
	})
	if err != nil {
		observe.Logger(ctx).Warn("tutor: record history", "err", err)
	}
}

// fail handles a turn that returned err. It returns nil when the turn
// should restart, or the error that ends the session.
func (s *session) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.failures++
	s.metrics.RecordTurnFailure(ctx, s.mode)
	log := observe.Logger(ctx)
	log.Error("tutor: turn failed", "turn", s.turn, "attempt", s.attempt, "failures", s.failures, "err", err)

	if s.failures >= s.cfg.MaxConsecutiveFailures {
		return fmt.Errorf("%w (%d): %w", ErrTooManyFailures, s.failures, err)
	}
	if err := s.speaker.Say(ctx, Apology); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("tutor: apology failed", "err", err)
	}
	return pause(ctx, s.cfg.FailurePause)
}

// advance ends the current turn.
func (s *session) advance(ctx context.Context) {
	s.failures = 0
	s.metrics.RecordTurn(ctx, s.mode)
}

// between speaks the transition or completion line after turn i of n.
func (s *session) between(ctx context.Context, i, n int, transition, completion string) error {
	if i == n-1 {
		s.sayBestEffort(ctx, completion)
		return ctx.Err()
	}
	s.sayBestEffort(ctx, transition)
	return pause(ctx, s.cfg.TurnPause)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
