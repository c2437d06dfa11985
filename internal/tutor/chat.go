package tutor

import (
	"context"

	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/lesson"
	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/internal/oracle"
)

// Chat holds a conversation lesson. Each answer updates the learner
// profile, and the coach tailors later prompts and feedback to it.
type Chat struct {
	*session
	lesson  *lesson.ChatLesson
	oracle  oracle.Oracle
	coach   Coach
	profile *Profile
}

// NewChat returns a chat session over c. The profile starts at the lesson's level.
func NewChat(c *lesson.ChatLesson, o oracle.Oracle, co Coach, speaker Speaker, listener Listener, cfg Config) *Chat {
	return &Chat{
		session: newSession(string(config.ModeChat), speaker, listener, cfg),
		lesson:  c,
		oracle:  o,
		coach:   co,
		profile: NewProfile(c.Level),
	}
}

// Profile returns the learner profile. It is not safe to read while Run is
// in progress.
func (c *Chat) Profile() *Profile { return c.profile }

// Run holds the conversation until every prompt is done, the learner says
// the stop phrase, or ctx ends.
func (c *Chat) Run(ctx context.Context) (Outcome, error) {
	ctx = c.withSession(ctx)
	out := Outcome{Profile: c.profile}

	c.sayBestEffort(ctx, chatWelcome)
	if err := ctx.Err(); err != nil {
		return out, err
	}

	turns := c.lesson.Turns
	for i := 0; i < len(turns); i++ {
		c.turn = i
		attempts := 0
		for {
			res, err := c.runTurn(ctx, turns[i], &attempts)
			if err == nil {
				if res == stepStop {
					out.Stopped = true
					return out, nil
				}
				break
			}
			if err := c.fail(ctx, err); err != nil {
				return out, err
			}
		}

		c.advance(ctx)
		out.Completed++
		if err := c.between(ctx, i, len(turns), chatTransition, chatComplete(c.profile)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Chat) runTurn(ctx context.Context, t lesson.ChatTurn, attempts *int) (step, error) {
	c.attempt = *attempts
	if err := c.say(ctx, c.coach.Present(ctx, t.Prompt, c.profile.String())); err != nil {
		return 0, err
	}

	for *attempts < ChatMaxAttempts {
		c.attempt = *attempts
		text, err := c.listen(ctx)
		if err != nil {
			return 0, err
		}
		if IsStopPhrase(text) {
			c.record(ctx, history.RoleLearner, text, "")
			c.sayBestEffort(ctx, chatFarewell)
			return stepStop, nil
		}
		if text == "" {
			if err := c.say(ctx, chatReprompt); err != nil {
				return 0, err
			}
			continue
		}

		c.profile.AddResponse(text)
		res := c.oracle.EvaluateResponse(ctx, text, t.ExpectedResponses, c.profile.PreviousResponses)
		switch res.Kind {
		case oracle.Failed:
			return 0, res.Err
		case oracle.Degraded:
			observe.Logger(ctx).Warn("tutor: evaluation degraded, using defaults", "err", res.Err)
		}
		c.profile.Merge(res.Assessment)

		verdict := res.Assessment.Verdict
		c.metrics.RecordVerdict(ctx, c.mode, string(verdict))
		c.record(ctx, history.RoleLearner, text, string(verdict))

		if verdict == oracle.Correct || verdict == oracle.PartiallyCorrect || *attempts >= ChatMaxAttempts-1 {
			reply := c.coach.Feedback(ctx, t.FollowUp, t.ExpectedResponses, text, c.profile.String())
			if err := c.say(ctx, reply); err != nil {
				return 0, err
			}
			return stepAdvance, nil
		}

		reply := c.coach.Feedback(ctx, t.Prompt, t.ExpectedResponses, text, c.profile.String())
		*attempts++
		if err := c.say(ctx, reply); err != nil {
			return 0, err
		}
	}
	return stepAdvance, nil
}
