// Package config provides the configuration structure for the podcast
// pipeline.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied after loading.
const (
	defaultMaxTurns      = 40
	defaultMaxTurnChars  = 400
	defaultRetryAttempts = 3
	defaultWorkers       = 2
	defaultSampleRate    = 22050
	defaultLeadInMs      = 500
	defaultTurnGapMs     = 300
	defaultTailMs        = 1000
	defaultTimeout       = 120
)

// PipelineConfig holds the conversion policy knobs.
type PipelineConfig struct {
	MaxTurns        int  `toml:"max_turns"`
	MaxTurnChars    int  `toml:"max_turn_chars"`
	RetryAttempts   int  `toml:"retry_attempts"`
	CacheEnabled    bool `toml:"cache_enabled"`
	CacheMaxEntries int  `toml:"cache_max_entries"`
	Workers         int  `toml:"workers"`
	SampleRate      int  `toml:"sample_rate"`
	LeadInMs        int  `toml:"lead_in_ms"`
	TurnGapMs       int  `toml:"turn_gap_ms"`
	SubTurnGapMs    int  `toml:"sub_turn_gap_ms"`
	TailMs          int  `toml:"tail_ms"`
}

// ExtractorConfig holds the OCR service settings.
type ExtractorConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ScriptwriterConfig holds the chat completion service settings and style
// defaults.
type ScriptwriterConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DocumentType   string `toml:"document_type"`
	Tone           string `toml:"tone"`
	Language       string `toml:"language"`
	TargetTurns    int    `toml:"target_turns"`
}

// TTSConfig holds the TTS service settings.
type TTSConfig struct {
	BaseURL        string  `toml:"base_url"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// VoiceConfig declares one speaker-to-voice mapping.
type VoiceConfig struct {
	Speaker  string `toml:"speaker"`
	Voice    string `toml:"voice"`
	Language string `toml:"language"`
	RefPath  string `toml:"ref_path"`
}

// NATSConfig holds the optional artifact store settings. An empty URL
// disables artifact persistence.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Extractor    ExtractorConfig    `toml:"extractor"`
	Scriptwriter ScriptwriterConfig `toml:"scriptwriter"`
	TTS          TTSConfig          `toml:"tts"`
	Voices       []VoiceConfig      `toml:"voices"`
	NATS         NATSConfig         `toml:"nats"`
	Paths        PathsConfig        `toml:"paths"`
}

// Load loads the configuration for the podcast pipeline and applies defaults
// for unset values.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills unset values with sensible defaults.
func (c *Config) ApplyDefaults() {
	applyInt(&c.Pipeline.MaxTurns, defaultMaxTurns)
	applyInt(&c.Pipeline.MaxTurnChars, defaultMaxTurnChars)
	applyInt(&c.Pipeline.RetryAttempts, defaultRetryAttempts)
	applyInt(&c.Pipeline.Workers, defaultWorkers)
	applyInt(&c.Pipeline.SampleRate, defaultSampleRate)
	applyInt(&c.Pipeline.LeadInMs, defaultLeadInMs)
	applyInt(&c.Pipeline.TurnGapMs, defaultTurnGapMs)
	applyInt(&c.Pipeline.TailMs, defaultTailMs)
	applyInt(&c.Extractor.TimeoutSeconds, defaultTimeout)
	applyInt(&c.Scriptwriter.TimeoutSeconds, defaultTimeout)
	applyInt(&c.TTS.TimeoutSeconds, defaultTimeout)
}

func applyInt(value *int, fallback int) {
	if *value <= 0 {
		*value = fallback
	}
}
