package imageloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned by a ConfigStore that has nothing saved yet.
var ErrConfigNotFound = errors.New("session config not found")

// SessionConfig identifies the prompter a loop talks to and remembers the last
// session it used. It is handed to the controller explicitly rather than read
// from a well-known file.
type SessionConfig struct {
	PrompterName         string `yaml:"prompter_name"`
	PrompterInstructions string `yaml:"prompter_instructions"`
	PrompterModel        string `yaml:"prompter_model,omitempty"`
	LastSessionID        string `yaml:"last_session_id,omitempty"`
}

// DefaultSessionConfig returns the prompter identity used on first run.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		PrompterName:         DefaultPrompterName,
		PrompterInstructions: DefaultPrompterInstructions,
	}
}

// ConfigStore persists a SessionConfig.
type ConfigStore interface {
	Load(ctx context.Context) (*SessionConfig, error)
	Save(ctx context.Context, cfg *SessionConfig) error
}

// LoadOrCreateSessionConfig loads the saved config, or saves and returns
// DefaultSessionConfig when none exists.
func LoadOrCreateSessionConfig(ctx context.Context, store ConfigStore) (*SessionConfig, error) {
	cfg, err := store.Load(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg = DefaultSessionConfig()
	if err := store.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save default session config: %w", err)
	}
	return cfg, nil
}

// FileConfigStore keeps a SessionConfig as YAML in a single file.
type FileConfigStore struct {
	fs   afero.Fs
	path string
}

// Ensure FileConfigStore implements ConfigStore.
var _ ConfigStore = (*FileConfigStore)(nil)

// NewFileConfigStore creates a store at path on fs. A nil fs means the OS filesystem.
func NewFileConfigStore(fs afero.Fs, path string) *FileConfigStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileConfigStore{fs: fs, path: path}
}

// Path returns the file the config is stored in.
func (s *FileConfigStore) Path() string {
	return s.path
}

// Load reads the config file.
func (s *FileConfigStore) Load(ctx context.Context) (*SessionConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, s.path)
		}
		return nil, fmt.Errorf("read session config: %w", err)
	}

	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse session config %s: %w", s.path, err)
	}
	return &cfg, nil
}

// Save writes the config file atomically (temp file + rename).
func (s *FileConfigStore) Save(ctx context.Context, cfg *SessionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg == nil {
		return errors.New("session config is nil")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode session config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer s.fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", s.path, err)
	}
	return nil
}
