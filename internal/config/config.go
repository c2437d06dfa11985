// Package config provides the configuration schema, loader, and provider registry
// for the voicetutor tutoring session.
package config

import (
	"fmt"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Mode selects the dialogue state machine.
type Mode string

const (
	// ModeLecture asks lesson questions and grades answers against a key.
	ModeLecture Mode = "lecture"

	// ModeChat runs conversational English practice with profile adaptation.
	ModeChat Mode = "chat"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeLecture || m == ModeChat
}

// LessonSource selects where lesson content comes from.
type LessonSource string

const (
	SourceBackend  LessonSource = "backend"
	SourceFile     LessonSource = "file"
	SourceGenerate LessonSource = "generate"
)

// IsValid reports whether s is a recognised lesson source.
func (s LessonSource) IsValid() bool {
	switch s {
	case SourceBackend, SourceFile, SourceGenerate:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Lesson    LessonConfig    `yaml:"lesson"`
	History   HistoryConfig   `yaml:"history"`
}

// ServerConfig holds the ops listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics.
	// Set to "-" to disable the ops server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SessionConfig tunes the dialogue engine.
type SessionConfig struct {
	// Mode selects lecture or chat. Empty takes the mode from the lesson source.
	Mode Mode `yaml:"mode"`

	// Subject is named in the lecture welcome and completion messages.
	Subject string `yaml:"subject"`

	// MaxConsecutiveFailures aborts the session after that many per-turn
	// failures in a row.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	// TurnPause is slept between turns.
	TurnPause time.Duration `yaml:"turn_pause"`

	// FailurePause is slept after the apology before a turn restarts.
	FailurePause time.Duration `yaml:"failure_pause"`

	// Voice is the TTS voice used for every utterance.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// AudioConfig describes the capture and playback devices and the utterance
// segmentation parameters.
type AudioConfig struct {
	// InputDevice is a case-insensitive substring of the capture device name.
	// Empty selects the system default.
	InputDevice string `yaml:"input_device"`

	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`

	// FrameSize is the number of samples per channel in one captured frame.
	FrameSize int `yaml:"frame_size"`

	// SilenceThreshold is the RMS energy (int16 units) below which a frame is silent.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	SilenceLimit time.Duration `yaml:"silence_limit"`
	MaxDuration  time.Duration `yaml:"max_duration"`

	// TargetRate is the sample rate handed to the transcriber.
	TargetRate int `yaml:"target_rate"`

	// OutputSampleRate is the playback device rate.
	OutputSampleRate int `yaml:"output_sample_rate"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	VAD        ProviderEntry `yaml:"vad"`

	// Oracle selects the answer evaluator: "llm", "lexical" or "semantic".
	Oracle ProviderEntry `yaml:"oracle"`

	// Fallbacks are tried in order when the primary provider fails.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "ollama", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// OptionString returns Options[key] as a string, or def when absent.
func (e ProviderEntry) OptionString(key, def string) string {
	if v, ok := e.Options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return def
}

// OptionFloat returns Options[key] as a float64, or def when absent or not numeric.
func (e ProviderEntry) OptionFloat(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// LessonConfig selects where lesson content is loaded from.
type LessonConfig struct {
	Source LessonSource `yaml:"source"`

	// URL is the content backend base URL for SourceBackend.
	URL string `yaml:"url"`

	// Path is the YAML or JSON lesson file for SourceFile.
	Path string `yaml:"path"`

	// Topic seeds the generator for SourceGenerate.
	Topic string `yaml:"topic"`
}

// HistoryConfig configures the transcript log.
type HistoryConfig struct {
	// DSN is a PostgreSQL connection string. Empty keeps the log in memory.
	DSN string `yaml:"dsn"`
}

// ConfigurationError reports configuration that makes a session impossible
// to start, such as an unknown mode or missing lesson content.
type ConfigurationError struct {
	Field  string
	Reason string

	// Err is an optional underlying cause.
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
