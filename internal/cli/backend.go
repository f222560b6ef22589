package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mhpenta/imageloop"
	"github.com/mhpenta/imageloop/internal/config"
	"github.com/mhpenta/imageloop/provider/gemini"
	"github.com/mhpenta/imageloop/provider/openai"
	"github.com/mhpenta/imageloop/storage"
	"github.com/spf13/afero"
)

// Backend is the set of capabilities a loop run needs.
type Backend struct {
	Generator imageloop.Generator
	Evaluator imageloop.Evaluator
	Prompter  imageloop.Prompter

	// Close releases provider resources. May be nil.
	Close func() error
}

// BackendFactory builds a Backend from configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config, session *imageloop.SessionConfig, store imageloop.Storage, logger *slog.Logger) (*Backend, error)

// NewBackend builds the provider named in cfg behind an imageloop.Manager.
func NewBackend(ctx context.Context, cfg *config.Config, session *imageloop.SessionConfig, store imageloop.Storage, logger *slog.Logger) (*Backend, error) {
	providerCfg := &imageloop.ProviderConfig{
		Provider: imageloop.Provider(strings.ToLower(cfg.Provider.Name)),
		APIKey:   cfg.Provider.APIKey,
		BaseURL:  cfg.Provider.BaseURL,
	}

	var (
		provider  imageloop.ImageProvider
		evaluator imageloop.Evaluator
		prompter  imageloop.Prompter
	)
	switch providerCfg.Provider {
	case imageloop.ProviderGeminiAPI:
		p, err := gemini.New(ctx, providerCfg)
		if err != nil {
			return nil, err
		}
		provider = p
		evaluator = gemini.NewEvaluator(p.Client(), gemini.WithEvaluatorModel(cfg.Provider.EvaluatorModel))
		prompter = gemini.NewPrompter(p.Client(), session)
	case imageloop.ProviderOpenAI:
		p, err := openai.New(providerCfg)
		if err != nil {
			return nil, err
		}
		provider = p
		evaluator = openai.NewEvaluator(p.Client(), openai.WithEvaluatorModel(cfg.Provider.EvaluatorModel))
		prompter = openai.NewPrompter(p.Client(), session)
	default:
		return nil, fmt.Errorf("%w: %s", imageloop.ErrProviderNotConfigured, cfg.Provider.Name)
	}

	managerOpts := []imageloop.ManagerOption{
		imageloop.WithLogger(logger),
		imageloop.WithDefaultOptions(cfg.GenerateOptions()),
	}
	if store != nil {
		managerOpts = append(managerOpts, imageloop.WithStorage(store))
	}
	if cfg.Provider.ImageModel != "" {
		managerOpts = append(managerOpts, imageloop.WithDefaultModel(imageloop.Model(cfg.Provider.ImageModel)))
	}

	manager, err := imageloop.NewManager(provider, managerOpts...)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Generator: manager,
		Evaluator: evaluator,
		Prompter:  prompter,
		Close:     manager.Close,
	}, nil
}

// newStorage builds the artifact backend named in cfg. It returns nil for "none".
func newStorage(ctx context.Context, fs afero.Fs, cfg config.StorageConfig) (imageloop.Storage, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		store, err := storage.NewFSStorage(fs, cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageS3:
		store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:        cfg.S3.Bucket,
			Prefix:        cfg.S3.Prefix,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, nil
	}
}
