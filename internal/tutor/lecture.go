package tutor

import (
	"context"

	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/lesson"
	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/internal/oracle"
)

// Lecture asks a lesson's questions in order. A wrong answer earns a hint
// and another try; a partly right answer on the last try reveals the full
// answer.
type Lecture struct {
	*session
	lesson *lesson.LectureLesson
	oracle oracle.Oracle
	coach  Coach
}

// NewLecture returns a lecture session over l.
func NewLecture(l *lesson.LectureLesson, o oracle.Oracle, c Coach, speaker Speaker, listener Listener, cfg Config) *Lecture {
	return &Lecture{
		session: newSession(string(config.ModeLecture), speaker, listener, cfg),
		lesson:  l,
		oracle:  o,
		coach:   c,
	}
}

// lectureTurn is the progress of one question. It survives a turn restart.
type lectureTurn struct {
	attempts int
	answered bool
}

// Run speaks the lesson until every question is done, the learner says the
// stop phrase, or ctx ends.
func (l *Lecture) Run(ctx context.Context) (Outcome, error) {
	ctx = l.withSession(ctx)
	var out Outcome

	subject := l.cfg.Subject
	if subject == "" {
		subject = l.lesson.Title
	}

	l.sayBestEffort(ctx, lectureWelcome(subject))
	if err := ctx.Err(); err != nil {
		return out, err
	}

	turns := l.lesson.Turns
	for i := 0; i < len(turns); i++ {
		l.turn = i
		st := &lectureTurn{}
		for {
			res, err := l.runTurn(ctx, turns[i], st)
			if err == nil {
				if res == stepStop {
					out.Stopped = true
					return out, nil
				}
				break
			}
			if err := l.fail(ctx, err); err != nil {
				return out, err
			}
		}

		l.advance(ctx)
		out.Completed++
		if st.answered {
			out.Answered++
		}
		if err := l.between(ctx, i, len(turns), lectureTransition, lectureComplete(subject)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (l *Lecture) runTurn(ctx context.Context, t lesson.LectureTurn, st *lectureTurn) (step, error) {
	l.attempt = st.attempts
	if err := l.say(ctx, l.coach.Explain(ctx, l.lesson.Context, t.Question)); err != nil {
		return 0, err
	}

	for !st.answered && st.attempts < LectureMaxAttempts {
		l.attempt = st.attempts
		text, err := l.listen(ctx)
		if err != nil {
			return 0, err
		}
		if IsStopPhrase(text) {
			l.record(ctx, history.RoleLearner, text, "")
			l.sayBestEffort(ctx, lectureFarewell)
			return stepStop, nil
		}
		if text == "" {
			if err := l.say(ctx, lectureReprompt); err != nil {
				return 0, err
			}
			continue
		}

		verdict, err := l.oracle.EvaluateAnswer(ctx, text, t.Answer, t.Question)
		if err != nil {
			return 0, err
		}
		l.metrics.RecordVerdict(ctx, l.mode, string(verdict))
		l.record(ctx, history.RoleLearner, text, string(verdict))
		observe.Logger(ctx).Debug("tutor: evaluated", "turn", l.turn, "attempt", st.attempts, "verdict", verdict)

		var reply string
		switch {
		case verdict == oracle.Correct:
			st.answered = true
			reply = lectureCorrect(t.Answer)
		case verdict == oracle.PartiallyCorrect && st.attempts >= LectureMaxAttempts-1:
			st.answered = true
			reply = lecturePartial(t.Answer)
		default:
			reply = l.coach.Hint(ctx, l.lesson.Context, t.Question, t.Answer, text)
			st.attempts++
		}
		if err := l.say(ctx, reply); err != nil {
			return 0, err
		}
	}
	return stepAdvance, nil
}
