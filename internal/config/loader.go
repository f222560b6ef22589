package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Storage.Dir = expandTilde(cfg.Storage.Dir)
	cfg.Session.Path = expandTilde(cfg.Session.Path)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "imageloop"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "imageloop"))
	}
	v.AddConfigPath(".")

	// IMAGELOOP_LOOP_MAX_ITERATIONS etc.
	v.SetEnvPrefix("IMAGELOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l.setDefaults(cfg)
}

// setDefaults sets all default values in Viper. Every key needs a default for
// AutomaticEnv to see it during Unmarshal.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Provider
	v.SetDefault("provider.name", cfg.Provider.Name)
	v.SetDefault("provider.api_key", cfg.Provider.APIKey)
	v.SetDefault("provider.base_url", cfg.Provider.BaseURL)
	v.SetDefault("provider.image_model", cfg.Provider.ImageModel)
	v.SetDefault("provider.evaluator_model", cfg.Provider.EvaluatorModel)

	// Loop
	v.SetDefault("loop.max_iterations", cfg.Loop.MaxIterations)
	v.SetDefault("loop.score_threshold", cfg.Loop.ScoreThreshold)
	v.SetDefault("loop.resend_primary_reference", cfg.Loop.ResendPrimaryReference)

	// Generation
	v.SetDefault("generation.quality", cfg.Generation.Quality)
	v.SetDefault("generation.size", cfg.Generation.Size)
	v.SetDefault("generation.background", cfg.Generation.Background)
	v.SetDefault("generation.format", cfg.Generation.Format)
	v.SetDefault("generation.wait_on_rate_limit", cfg.Generation.WaitOnRateLimit)
	v.SetDefault("generation.max_wait", cfg.Generation.MaxWait)

	// Storage
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.SetDefault("storage.s3.prefix", cfg.Storage.S3.Prefix)
	v.SetDefault("storage.s3.region", cfg.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", cfg.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.use_path_style", cfg.Storage.S3.UsePathStyle)
	v.SetDefault("storage.s3.public_base_url", cfg.Storage.S3.PublicBaseURL)

	// Session
	v.SetDefault("session.path", cfg.Session.Path)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// loadConfigFile reads the config file. A missing file is only an error when
// one was set explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && l.configFile == "" {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key. Values set here override every other source.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Viper returns the underlying Viper instance, for binding CLI flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}
