// Package app wires the tutor's subsystems into one running session.
//
// New loads the lesson, opens the audio devices, builds the oracle, coach
// and history log, and picks the dialogue mode. Run speaks the lesson while
// the ops server answers health and metrics probes. Shutdown releases
// devices and stores.
//
// For testing, inject doubles via functional options (WithAudio,
// WithLessonSource, WithOracle, ...). When an option is not provided, New
// creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/voicetutor/internal/coach"
	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/internal/health"
	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/history/postgres"
	"github.com/MrWong99/voicetutor/internal/lesson"
	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/internal/oracle"
	"github.com/MrWong99/voicetutor/internal/tutor"
	"github.com/MrWong99/voicetutor/internal/voice"
	"github.com/MrWong99/voicetutor/pkg/audio"
	"github.com/MrWong99/voicetutor/pkg/audio/malgo"
	"github.com/MrWong99/voicetutor/pkg/audio/oto"
	"github.com/MrWong99/voicetutor/pkg/audio/segment"
	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
	"github.com/MrWong99/voicetutor/pkg/provider/vad"
	"github.com/MrWong99/voicetutor/pkg/provider/vad/energy"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
	VAD        vad.Engine
}

// runner is a dialogue mode.
type runner interface {
	Run(ctx context.Context) (tutor.Outcome, error)
}

// App owns the session and every resource it opened.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	sessionID string

	source   audio.Source
	sink     audio.Sink
	lessons  lesson.Source
	recorder history.Recorder
	oracle   oracle.Oracle

	lesson   *lesson.Lesson
	runner   runner
	checkers []health.Checker

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAudio injects the capture source and playback sink instead of opening
// the system devices.
func WithAudio(src audio.Source, sink audio.Sink) Option {
	return func(a *App) {
		a.source = src
		a.sink = sink
	}
}

// WithLessonSource injects the lesson source instead of building one from
// the lesson config.
func WithLessonSource(s lesson.Source) Option {
	return func(a *App) { a.lessons = s }
}

// WithRecorder injects the history recorder instead of creating one from
// the history config.
func WithRecorder(r history.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithOracle injects the answer evaluator instead of building the one named
// by providers.oracle.
func WithOracle(o oracle.Oracle) Option {
	return func(a *App) { a.oracle = o }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSessionID fixes the session ID instead of generating a UUID.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App. Errors that make a session impossible, such as an
// unknown mode or a lesson that cannot be loaded, are returned as
// *config.ConfigurationError before any audio device is opened.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}

	// ── 1. Lesson ────────────────────────────────────────────────────────
	if err := a.initLesson(ctx); err != nil {
		return nil, err
	}

	// ── 2. Oracle ────────────────────────────────────────────────────────
	if err := a.initOracle(); err != nil {
		return nil, err
	}

	// ── 3. History ───────────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 4. Audio devices ─────────────────────────────────────────────────
	if err := a.initAudio(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init audio: %w", err)
	}

	// ── 5. Dialogue ──────────────────────────────────────────────────────
	if err := a.initDialogue(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init dialogue: %w", err)
	}

	a.initCheckers()
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initLesson loads and validates the lesson for the configured mode.
func (a *App) initLesson(ctx context.Context) error {
	if a.lessons == nil {
		src, err := a.lessonSource()
		if err != nil {
			return err
		}
		a.lessons = src
	}

	l, err := a.lessons.Load(ctx, a.cfg.Session.Mode)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return &config.ConfigurationError{Field: "lesson", Reason: "cannot load lesson content", Err: err}
	}
	if err := l.Validate(); err != nil {
		return err
	}
	a.lesson = l
	slog.Info("lesson loaded", "mode", l.Mode, "title", l.Title(), "turns", l.Len())
	return nil
}

func (a *App) lessonSource() (lesson.Source, error) {
	lc := a.cfg.Lesson
	gen := &lesson.Generator{LLM: a.providers.LLM, Topic: lc.Topic}
	switch lc.Source {
	case config.SourceBackend:
		return &lesson.Backend{URL: lc.URL, Generator: gen}, nil
	case config.SourceFile:
		if lc.Path == "" {
			return nil, &config.ConfigurationError{Field: "lesson.path", Reason: "required for the file source"}
		}
		return &lesson.File{Path: lc.Path}, nil
	case config.SourceGenerate:
		if a.providers.LLM == nil {
			return nil, &config.ConfigurationError{Field: "providers.llm", Reason: "the generate source needs an LLM"}
		}
		return gen, nil
	}
	return nil, &config.ConfigurationError{Field: "lesson.source", Reason: fmt.Sprintf("unknown source %q", lc.Source)}
}

// initOracle builds the evaluator named by providers.oracle.
func (a *App) initOracle() error {
	if a.oracle != nil {
		return nil
	}
	o, err := buildOracle(a.cfg.Providers.Oracle, a.providers)
	if err != nil {
		return err
	}
	a.oracle = o
	return nil
}

func buildOracle(entry config.ProviderEntry, ps *Providers) (oracle.Oracle, error) {
	correct := entry.OptionFloat("correct_threshold", 0)
	partial := entry.OptionFloat("partial_threshold", 0)

	switch entry.Name {
	case "", "llm":
		if ps.LLM == nil {
			return nil, &config.ConfigurationError{Field: "providers.llm", Reason: "the llm oracle needs an LLM provider"}
		}
		o := oracle.NewLLM(ps.LLM)
		o.Temperature = entry.OptionFloat("temperature", 0)
		return o, nil
	case "lexical":
		var opts []oracle.LexicalOption
		if correct > 0 || partial > 0 {
			opts = append(opts, oracle.WithLexicalThresholds(
				orDefault(correct, oracle.DefaultCorrectThreshold),
				orDefault(partial, oracle.DefaultPartialThreshold),
			))
		}
		return oracle.NewLexical(opts...), nil
	case "semantic":
		if ps.Embeddings == nil {
			return nil, &config.ConfigurationError{Field: "providers.embeddings", Reason: "the semantic oracle needs an embeddings provider"}
		}
		return oracle.NewSemantic(ps.Embeddings, correct, partial), nil
	}
	return nil, &config.ConfigurationError{Field: "providers.oracle.name", Reason: fmt.Sprintf("unknown oracle %q", entry.Name)}
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// initHistory connects the PostgreSQL history store when a DSN is set and
// keeps the log in memory otherwise.
func (a *App) initHistory(ctx context.Context) error {
	if a.recorder != nil {
		return nil
	}
	dsn := a.cfg.History.DSN
	if dsn == "" {
		a.recorder = &history.Memory{}
		return nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.recorder = store
	a.checkers = append(a.checkers, health.Checker{Name: "history", Check: store.Ping})
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initAudio opens the capture and playback devices unless injected.
func (a *App) initAudio() error {
	ac := a.cfg.Audio
	if a.source == nil {
		var opts []malgo.Option
		if ac.InputDevice != "" {
			opts = append(opts, malgo.WithDeviceName(ac.InputDevice))
		}
		capture, err := malgo.Open(audio.Format{SampleRate: ac.SampleRate, Channels: ac.Channels}, opts...)
		if err != nil {
			return err
		}
		a.source = capture
		a.closers = append(a.closers, capture.Close)
	}
	if a.sink == nil {
		player, err := oto.New(audio.Format{SampleRate: ac.OutputSampleRate, Channels: 1}, 0)
		if err != nil {
			return err
		}
		a.sink = player
		a.closers = append(a.closers, player.Close)
	}
	return nil
}

// initDialogue builds the segmenter, voice I/O, coach and the mode runner.
func (a *App) initDialogue() error {
	if a.providers.STT == nil {
		return &config.ConfigurationError{Field: "providers.stt", Reason: "a transcriber is required"}
	}
	if a.providers.TTS == nil {
		return &config.ConfigurationError{Field: "providers.tts", Reason: "a synthesizer is required"}
	}

	engine := a.providers.VAD
	if engine == nil {
		engine = energy.New()
	}
	ac := a.cfg.Audio
	seg, err := segment.New(a.source, engine, segment.Config{
		FrameSize:        ac.FrameSize,
		SilenceThreshold: ac.SilenceThreshold,
		SilenceLimit:     ac.SilenceLimit,
		MaxDuration:      ac.MaxDuration,
		TargetRate:       ac.TargetRate,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, seg.Close)

	sc := a.cfg.Session
	speaker := voice.NewSpeaker(a.providers.TTS, a.sink, tts.VoiceProfile{
		ID:          sc.Voice.VoiceID,
		SpeedFactor: sc.Voice.SpeedFactor,
	}, ac.OutputSampleRate, a.metrics)
	listener := voice.NewListener(seg, a.providers.STT, a.metrics)

	co := coach.New(a.providers.LLM,
		coach.WithTemperature(a.cfg.Providers.LLM.OptionFloat("temperature", 0.7)),
		coach.WithMaxTokens(int(a.cfg.Providers.LLM.OptionFloat("max_tokens", 0))),
	)

	tc := tutor.Config{
		SessionID:              a.sessionID,
		Subject:                sc.Subject,
		MaxConsecutiveFailures: sc.MaxConsecutiveFailures,
		TurnPause:              sc.TurnPause,
		FailurePause:           sc.FailurePause,
		Recorder:               a.recorder,
		Metrics:                a.metrics,
	}
	switch a.lesson.Mode {
	case config.ModeLecture:
		a.runner = tutor.NewLecture(a.lesson.Lecture, a.oracle, co, speaker, listener, tc)
	case config.ModeChat:
		a.runner = tutor.NewChat(a.lesson.Chat, a.oracle, co, speaker, listener, tc)
	default:
		return &config.ConfigurationError{Field: "session.mode", Reason: fmt.Sprintf("unknown mode %q", a.lesson.Mode)}
	}
	return nil
}

// initCheckers adds a reachability check for every provider with a base URL.
func (a *App) initCheckers() {
	client := &http.Client{}
	p := a.cfg.Providers
	for _, e := range []struct {
		kind  string
		entry config.ProviderEntry
	}{
		{"llm", p.LLM},
		{"stt", p.STT},
		{"tts", p.TTS},
		{"embeddings", p.Embeddings},
	} {
		if e.entry.BaseURL != "" {
			a.checkers = append(a.checkers, health.HTTPChecker(e.kind, e.entry.BaseURL, client))
		}
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// SessionID returns the ID tagging this session's logs and history.
func (a *App) SessionID() string { return a.sessionID }

// Lesson returns the loaded lesson.
func (a *App) Lesson() *lesson.Lesson { return a.lesson }

// Recorder returns the history recorder in use.
func (a *App) Recorder() history.Recorder { return a.recorder }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases resources in reverse-init order. If ctx expires first,
// the remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = err
				return
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs closers after a failed New.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
