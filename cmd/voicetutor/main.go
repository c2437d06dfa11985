// Command voicetutor runs one spoken tutoring session on the local
// microphone and speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voicetutor/internal/app"
	"github.com/MrWong99/voicetutor/internal/config"
	"github.com/MrWong99/voicetutor/internal/observe"
	"github.com/MrWong99/voicetutor/internal/resilience"
	"github.com/MrWong99/voicetutor/internal/tutor"
	"github.com/MrWong99/voicetutor/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/voicetutor/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/voicetutor/pkg/provider/embeddings/openai"
	"github.com/MrWong99/voicetutor/pkg/provider/llm"
	"github.com/MrWong99/voicetutor/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/voicetutor/pkg/provider/llm/openai"
	"github.com/MrWong99/voicetutor/pkg/provider/stt"
	"github.com/MrWong99/voicetutor/pkg/provider/stt/deepgram"
	"github.com/MrWong99/voicetutor/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicetutor/pkg/provider/tts"
	"github.com/MrWong99/voicetutor/pkg/provider/tts/coqui"
	"github.com/MrWong99/voicetutor/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voicetutor/pkg/provider/tts/piper"
	"github.com/MrWong99/voicetutor/pkg/provider/vad"
	"github.com/MrWong99/voicetutor/pkg/provider/vad/energy"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	mode := flag.String("mode", "", "lesson mode (lecture or chat); overrides session.mode")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicetutor: %v\n", err)
		return 1
	}
	if *mode != "" {
		cfg.Session.Mode = config.Mode(*mode)
		if !cfg.Session.Mode.IsValid() {
			fmt.Fprintf(os.Stderr, "voicetutor: %v\n", &config.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", *mode)})
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("voicetutor starting",
		"version", version,
		"config", *configPath,
		"mode", cfg.Session.Mode,
		"listen_addr", cfg.Server.ListenAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg, observe.DefaultMetrics())
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("cannot start session", "field", cfgErr.Field, "reason", cfgErr.Reason, "err", cfgErr.Err)
		} else {
			slog.Error("failed to initialise application", "err", err)
		}
		return 1
	}

	code := 0
	out, err := application.Run(ctx)
	switch {
	case err == nil:
		slog.Info("session complete", "completed", out.Completed, "stopped", out.Stopped)
	case errors.Is(err, context.Canceled):
		slog.Info("interrupted, stopping…")
	case errors.Is(err, tutor.ErrTooManyFailures):
		slog.Error("session aborted", "err", err)
		code = 1
	default:
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// loadConfig reads path. A missing file at the default path runs on the
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && path == "config.yaml" {
		return config.Default(), nil
	}
	return cfg, err
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends share one factory: optional APIKey plus optional BaseURL.
var anyllmBackends = []string{
	"ollama", "openai", "anthropic", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	rate := cfg.Audio.OutputSampleRate

	// ── LLM ───────────────────────────────────────────────────────────────────
	for _, backend := range anyllmBackends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// Any server speaking the OpenAI chat API (vLLM, LM Studio, llama-server).
	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path", "")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("piper", func(entry config.ProviderEntry) (tts.Provider, error) {
		return piper.New(entry.BaseURL, piper.WithOutputSampleRate(rate))
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []coqui.Option{coqui.WithOutputSampleRate(rate)}
		if lang := entry.OptionString("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.OptionString("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []elevenlabs.Option{
			elevenlabs.WithOutputFormat(entry.OptionString("output_format", fmt.Sprintf("pcm_%d", rate))),
		}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	for kind, names := range map[string][]string{
		"llm": reg.LLMNames(), "stt": reg.STTNames(), "tts": reg.TTSNames(),
	} {
		slog.Debug("registered providers", "kind", kind, "names", names)
	}
}

// buildProviders instantiates the providers named in cfg. LLM, STT and TTS
// are wrapped in failover groups over their configured fallbacks; every
// attempt is counted in m.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*app.Providers, error) {
	ps := &app.Providers{}
	pc := cfg.Providers

	if pc.LLM.Name != "" {
		primary, err := reg.CreateLLM(pc.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", pc.LLM.Name, err)
		}
		g := resilience.NewLLM(pc.LLM.Name, primary, groupConfig(m, "llm"))
		for _, fb := range pc.LLMFallbacks {
			p, err := reg.CreateLLM(fb)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
			}
			g.Add(fb.Name, p)
		}
		ps.LLM = g
		slog.Info("provider created", "kind", "llm", "chain", g.Names())
	}

	if pc.STT.Name != "" {
		primary, err := reg.CreateSTT(pc.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", pc.STT.Name, err)
		}
		g := resilience.NewSTT(pc.STT.Name, primary, groupConfig(m, "stt"))
		for _, fb := range pc.STTFallbacks {
			p, err := reg.CreateSTT(fb)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
			}
			g.Add(fb.Name, p)
		}
		ps.STT = g
		slog.Info("provider created", "kind", "stt", "chain", g.Names())
	}

	if pc.TTS.Name != "" {
		primary, err := reg.CreateTTS(pc.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", pc.TTS.Name, err)
		}
		g := resilience.NewTTS(pc.TTS.Name, primary, groupConfig(m, "tts"))
		for _, fb := range pc.TTSFallbacks {
			p, err := reg.CreateTTS(fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			g.Add(fb.Name, p)
		}
		ps.TTS = g
		slog.Info("provider created", "kind", "tts", "chain", g.Names())
	}

	if name := pc.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(pc.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	if name := pc.VAD.Name; name != "" {
		p, err := reg.CreateVAD(pc.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
	}

	return ps, nil
}

// groupConfig counts every provider attempt of kind.
func groupConfig(m *observe.Metrics, kind string) resilience.GroupConfig {
	return resilience.GroupConfig{
		OnAttempt: func(provider string, err error) {
			ctx := context.Background()
			status := "ok"
			if err != nil {
				status = "error"
				m.RecordProviderError(ctx, provider, kind)
			}
			m.RecordProviderRequest(ctx, provider, kind, status)
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       voicetutor — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Mode", orDash(string(cfg.Session.Mode), "(from lesson)"))
	printRow("Lesson", string(cfg.Lesson.Source))
	printProvider("LLM", cfg.Providers.LLM)
	printProvider("STT", cfg.Providers.STT)
	printProvider("TTS", cfg.Providers.TTS)
	printProvider("Oracle", cfg.Providers.Oracle)
	printRow("Voice", cfg.Session.Voice.VoiceID)
	if cfg.History.DSN != "" {
		printRow("History", "postgres")
	} else {
		printRow("History", "(in memory)")
	}
	printRow("Ops addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind string, e config.ProviderEntry) {
	value := orDash(e.Name, "(not configured)")
	if e.Name != "" && e.Model != "" {
		value = e.Name + " / " + e.Model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

func orDash(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
