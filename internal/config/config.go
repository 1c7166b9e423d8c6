// Package config provides the configuration structure for the speech gateway.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Environment variables holding provider credentials.
const (
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
)

// Storage backend identifiers.
const (
	BackendFS   = "fs"
	BackendNATS = "nats"
)

// Defaults applied when the corresponding TOML field is absent.
const (
	defaultHost                 = "0.0.0.0"
	defaultPort                 = 6500
	defaultStaticDir            = "static"
	defaultVoiceModel           = "aura-2-thalia-en"
	defaultTTSTimeoutSeconds    = 120
	defaultTTSWorkers           = 4
	defaultTranscribeModel      = "gemini-2.0-flash-lite"
	defaultTranscribeTimeoutSec = 120
)

// Static errors.
var (
	ErrDeepgramKeyMissing   = errors.New(EnvDeepgramAPIKey + " environment variable is not set")
	ErrGeminiKeyMissing     = errors.New(EnvGeminiAPIKey + " environment variable is not set")
	ErrUnknownBackend       = errors.New("unknown storage backend")
	ErrNATSURLMissing       = errors.New("nats url is required for the nats storage backend")
	ErrNATSBucketMissing    = errors.New("nats object store bucket is required for the nats storage backend")
	ErrNoAllowedMediaTypes  = errors.New("transcribe allowed_media_types cannot be empty")
	ErrInvalidPort          = errors.New("server port must be between 1 and 65535")
	ErrTimeoutNotPositive   = errors.New("timeout_seconds must be positive")
	ErrWorkersNotPositive   = errors.New("workers must be positive")
	ErrStaticDirEmpty       = errors.New("server static_dir cannot be empty")
	ErrVoiceModelEmpty      = errors.New("tts default_model cannot be empty")
	ErrTranscribeModelEmpty = errors.New("transcribe model cannot be empty")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	StaticDir string `toml:"static_dir"`
}

// TTSConfig holds the synthesis settings.
type TTSConfig struct {
	DefaultModel   string `toml:"default_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Workers        int    `toml:"workers"`
}

// TranscribeConfig holds the transcription settings.
type TranscribeConfig struct {
	Model             string   `toml:"model"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`
}

// StorageConfig selects the artifact store backend.
type StorageConfig struct {
	Backend string `toml:"backend"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	TTS        TTSConfig        `toml:"tts"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Storage    StorageConfig    `toml:"storage"`
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`

	// Credentials come from the environment, never from the TOML file.
	DeepgramAPIKey string `toml:"-"`
	GeminiAPIKey   string `toml:"-"`
}

// Load loads the configuration for the speech gateway. Missing provider
// credentials are a fatal condition: the service must not start without them.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.LoadCredentials()
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in every optional field that was left unset.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}

	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}

	if c.Server.StaticDir == "" {
		c.Server.StaticDir = defaultStaticDir
	}

	if c.TTS.DefaultModel == "" {
		c.TTS.DefaultModel = defaultVoiceModel
	}

	if c.TTS.TimeoutSeconds == 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}

	if c.TTS.Workers == 0 {
		c.TTS.Workers = defaultTTSWorkers
	}

	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultTranscribeModel
	}

	if c.Transcribe.TimeoutSeconds == 0 {
		c.Transcribe.TimeoutSeconds = defaultTranscribeTimeoutSec
	}

	if len(c.Transcribe.AllowedMediaTypes) == 0 {
		c.Transcribe.AllowedMediaTypes = []string{"audio/wav", "audio/x-wav", "audio/mpeg"}
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFS
	}
}

// LoadCredentials reads the provider API keys from the environment.
func (c *Config) LoadCredentials() error {
	c.DeepgramAPIKey = os.Getenv(EnvDeepgramAPIKey)
	if c.DeepgramAPIKey == "" {
		return ErrDeepgramKeyMissing
	}

	c.GeminiAPIKey = os.Getenv(EnvGeminiAPIKey)
	if c.GeminiAPIKey == "" {
		return ErrGeminiKeyMissing
	}

	return nil
}

// Validate ensures the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.StaticDir == "" {
		return ErrStaticDirEmpty
	}

	if c.TTS.DefaultModel == "" {
		return ErrVoiceModelEmpty
	}

	if c.TTS.TimeoutSeconds <= 0 || c.Transcribe.TimeoutSeconds <= 0 {
		return ErrTimeoutNotPositive
	}

	if c.TTS.Workers <= 0 {
		return ErrWorkersNotPositive
	}

	if c.Transcribe.Model == "" {
		return ErrTranscribeModelEmpty
	}

	if len(c.Transcribe.AllowedMediaTypes) == 0 {
		return ErrNoAllowedMediaTypes
	}

	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendFS:
		return nil
	case BackendNATS:
		if c.NATS.URL == "" {
			return ErrNATSURLMissing
		}

		if c.NATS.AudioObjectStoreBucket == "" {
			return ErrNATSBucketMissing
		}

		return nil
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownBackend, c.Storage.Backend)
	}
}
