// Package config provides configuration loading for the imageloop CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mhpenta/imageloop"
)

// Config is the top-level CLI configuration.
type Config struct {
	// Provider selects the image, evaluation and refinement backend.
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`

	// Loop controls the refinement loop.
	Loop LoopConfig `yaml:"loop" mapstructure:"loop"`

	// Generation holds the options forwarded to the generator.
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`

	// Storage configures where generated images are written.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Session configures the persisted prompter session.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ProviderConfig selects and authenticates a provider.
type ProviderConfig struct {
	// Name is "gemini" or "openai".
	Name string `yaml:"name" mapstructure:"name"`

	// APIKey overrides the provider's standard environment variable.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// ImageModel is the public model name (e.g. nano-banana-2, gpt-image-1).
	// Empty means the provider default.
	ImageModel string `yaml:"image_model" mapstructure:"image_model"`

	// EvaluatorModel is the chat model that scores images.
	EvaluatorModel string `yaml:"evaluator_model" mapstructure:"evaluator_model"`
}

// LoopConfig controls the refinement loop.
type LoopConfig struct {
	MaxIterations  int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	ScoreThreshold float64 `yaml:"score_threshold" mapstructure:"score_threshold"`

	// ResendPrimaryReference sends the first reference again on rounds that
	// continue an existing generation context.
	ResendPrimaryReference bool `yaml:"resend_primary_reference" mapstructure:"resend_primary_reference"`
}

// GenerationConfig holds generation options.
type GenerationConfig struct {
	Quality    string `yaml:"quality" mapstructure:"quality"`
	Size       string `yaml:"size" mapstructure:"size"`
	Background string `yaml:"background" mapstructure:"background"`
	Format     string `yaml:"format" mapstructure:"format"`

	WaitOnRateLimit bool          `yaml:"wait_on_rate_limit" mapstructure:"wait_on_rate_limit"`
	MaxWait         time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// StorageConfig configures the artifact backend.
type StorageConfig struct {
	// Backend is "local", "s3" or "none".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Dir is the artifacts directory for the local backend.
	Dir string `yaml:"dir" mapstructure:"dir"`

	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Bucket        string `yaml:"bucket" mapstructure:"bucket"`
	Prefix        string `yaml:"prefix" mapstructure:"prefix"`
	Region        string `yaml:"region" mapstructure:"region"`
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	UsePathStyle  bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// SessionConfig configures where the prompter session config is kept.
type SessionConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `yaml:"format" mapstructure:"format"`
}

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageNone  = "none"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Provider: ProviderConfig{
			Name: string(imageloop.ProviderGeminiAPI),
		},
		Loop: LoopConfig{
			MaxIterations:  imageloop.DefaultMaxIterations,
			ScoreThreshold: imageloop.DefaultScoreThreshold,
		},
		Generation: GenerationConfig{
			Quality:    string(imageloop.QualityAuto),
			Size:       string(imageloop.ImageSizeAuto),
			Background: string(imageloop.BackgroundAuto),
			Format:     string(imageloop.FormatPNG),
		},
		Storage: StorageConfig{
			Backend: StorageLocal,
			Dir:     "artifacts",
		},
		Session: SessionConfig{
			Path: filepath.Join(homeDir, ".config", "imageloop", "session.yaml"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch imageloop.Provider(strings.ToLower(strings.TrimSpace(c.Provider.Name))) {
	case imageloop.ProviderGeminiAPI, imageloop.ProviderOpenAI:
	default:
		return fmt.Errorf("provider.name must be one of gemini, openai")
	}

	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1")
	}
	if c.Loop.ScoreThreshold < 0 || c.Loop.ScoreThreshold > 100 {
		return fmt.Errorf("loop.score_threshold must be between 0 and 100")
	}

	if err := imageloop.ValidateOptions(c.GenerateOptions()); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if c.Generation.MaxWait < 0 {
		return fmt.Errorf("generation.max_wait must be zero or greater")
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("storage.dir is required for the local backend")
		}
	case StorageS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	case StorageNone:
	default:
		return fmt.Errorf("storage.backend must be one of local, s3, none")
	}

	if strings.TrimSpace(c.Session.Path) == "" {
		return fmt.Errorf("session.path is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text, json")
	}

	return nil
}

// GenerateOptions converts the generation section to generator options.
func (c *Config) GenerateOptions() *imageloop.GenerateOptions {
	return &imageloop.GenerateOptions{
		Model:           imageloop.Model(c.Provider.ImageModel),
		Quality:         imageloop.Quality(c.Generation.Quality),
		Size:            imageloop.ImageSize(c.Generation.Size),
		Background:      imageloop.Background(c.Generation.Background),
		Format:          imageloop.Format(c.Generation.Format),
		WaitOnRateLimit: c.Generation.WaitOnRateLimit,
		MaxWaitDuration: c.Generation.MaxWait,
	}
}
