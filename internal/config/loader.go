package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr             = ":9090"
	DefaultSubject                = "physics"
	DefaultMaxConsecutiveFailures = 3
	DefaultTurnPause              = time.Second
	DefaultFailurePause           = time.Second
	DefaultVoiceID                = "en_US-kathleen-low"

	DefaultSampleRate       = 44100
	DefaultChannels         = 2
	DefaultFrameSize        = 1024
	DefaultSilenceThreshold = 5.0
	DefaultSilenceLimit     = 2 * time.Second
	DefaultMaxDuration      = 10 * time.Second
	DefaultTargetRate       = 16000
	DefaultOutputSampleRate = 22050

	DefaultBackendURL = "https://chatbot-backend-iskc.onrender.com"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-compatible"},
	"stt":        {"whisper", "whisper-native", "deepgram"},
	"tts":        {"piper", "coqui", "elevenlabs"},
	"embeddings": {"ollama", "openai"},
	"vad":        {"energy"},
	"oracle":     {"llm", "lexical", "semantic"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
// Mode is left empty so the lesson source can decide it.
func ApplyDefaults(cfg *Config) {
	setDefault(&cfg.Server.ListenAddr, DefaultListenAddr)
	setDefault(&cfg.Server.LogLevel, LogInfo)

	s := &cfg.Session
	setDefault(&s.Subject, DefaultSubject)
	setDefault(&s.MaxConsecutiveFailures, DefaultMaxConsecutiveFailures)
	setDefault(&s.TurnPause, DefaultTurnPause)
	setDefault(&s.FailurePause, DefaultFailurePause)
	setDefault(&s.Voice.VoiceID, DefaultVoiceID)

	a := &cfg.Audio
	setDefault(&a.SampleRate, DefaultSampleRate)
	setDefault(&a.Channels, DefaultChannels)
	setDefault(&a.FrameSize, DefaultFrameSize)
	setDefault(&a.SilenceThreshold, DefaultSilenceThreshold)
	setDefault(&a.SilenceLimit, DefaultSilenceLimit)
	setDefault(&a.MaxDuration, DefaultMaxDuration)
	setDefault(&a.TargetRate, DefaultTargetRate)
	setDefault(&a.OutputSampleRate, DefaultOutputSampleRate)

	p := &cfg.Providers
	setDefault(&p.LLM.Name, "ollama")
	setDefault(&p.LLM.Model, "cas/llama-3.2-1b-instruct")
	setDefault(&p.STT.Name, "whisper")
	setDefault(&p.STT.BaseURL, "http://localhost:8080")
	setDefault(&p.TTS.Name, "piper")
	setDefault(&p.TTS.BaseURL, "http://localhost:5000")
	setDefault(&p.VAD.Name, "energy")
	setDefault(&p.Oracle.Name, "llm")

	setDefault(&cfg.Lesson.Source, SourceBackend)
	if cfg.Lesson.Source == SourceBackend {
		setDefault(&cfg.Lesson.URL, DefaultBackendURL)
	}
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Session
	if cfg.Session.Mode != "" && !cfg.Session.Mode.IsValid() {
		errs = append(errs, &ConfigurationError{Field: "session.mode", Reason: fmt.Sprintf("%q is invalid; valid values: lecture, chat", cfg.Session.Mode)})
	}
	if cfg.Session.MaxConsecutiveFailures < 0 {
		errs = append(errs, fmt.Errorf("session.max_consecutive_failures must be >= 0, got %d", cfg.Session.MaxConsecutiveFailures))
	}
	if cfg.Session.TurnPause < 0 || cfg.Session.FailurePause < 0 {
		errs = append(errs, fmt.Errorf("session pauses must not be negative"))
	}
	if sf := cfg.Session.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("session.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	// Audio
	a := cfg.Audio
	if a.SampleRate < 0 || a.TargetRate < 0 || a.OutputSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio sample rates must be positive"))
	}
	if a.Channels < 0 || a.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 2]", a.Channels))
	}
	if a.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be positive, got %d", a.FrameSize))
	}
	if a.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold must not be negative"))
	}
	if a.MaxDuration > 0 && a.SilenceLimit > a.MaxDuration {
		errs = append(errs, fmt.Errorf("audio.silence_limit %s exceeds audio.max_duration %s", a.SilenceLimit, a.MaxDuration))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	for _, fb := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", fb.Name)
	}
	for _, fb := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", fb.Name)
	}
	if name := cfg.Providers.Oracle.Name; name != "" && !slices.Contains(ValidProviderNames["oracle"], name) {
		errs = append(errs, fmt.Errorf("providers.oracle.name %q is invalid; valid values: llm, lexical, semantic", name))
	}
	if cfg.Providers.Oracle.Name == "semantic" && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, fmt.Errorf("providers.oracle %q requires providers.embeddings", "semantic"))
	}

	// Lesson
	l := cfg.Lesson
	if l.Source != "" && !l.Source.IsValid() {
		errs = append(errs, &ConfigurationError{Field: "lesson.source", Reason: fmt.Sprintf("%q is invalid; valid values: backend, file, generate", l.Source)})
	}
	switch l.Source {
	case SourceFile:
		if l.Path == "" {
			errs = append(errs, &ConfigurationError{Field: "lesson.path", Reason: "required when lesson.source is file"})
		}
	case SourceBackend:
		if l.URL == "" {
			errs = append(errs, &ConfigurationError{Field: "lesson.url", Reason: "required when lesson.source is backend"})
		}
	case SourceGenerate:
		if cfg.Session.Mode == ModeLecture {
			errs = append(errs, &ConfigurationError{Field: "lesson.source", Reason: "generate only supports chat mode"})
		}
	}

	if cfg.History.DSN == "" {
		slog.Debug("history.dsn is empty; the transcript log is kept in memory")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
