package imageloop

import (
	"log/slog"
	"net/http"

	"github.com/spf13/afero"
)

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLogger sets a structured logger for the manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStorage sets a storage backend for persisting generated images.
func WithStorage(storage Storage) ManagerOption {
	return func(m *Manager) {
		m.storage = storage
	}
}

// WithDefaultModel sets the default model used when options.Model is empty.
func WithDefaultModel(model Model) ManagerOption {
	return func(m *Manager) {
		m.defaultModel = model
	}
}

// WithProvider registers an additional provider next to the default one.
func WithProvider(provider ImageProvider) ManagerOption {
	return func(m *Manager) {
		m.AddProvider(provider)
	}
}

// WithDefaultOptions sets the options used for fields a request leaves empty.
// Invalid options make NewManager fail.
func WithDefaultOptions(opts *GenerateOptions) ManagerOption {
	return func(m *Manager) {
		if opts != nil {
			m.defaultOptions = opts
		}
	}
}

// WithReferenceSource sets the filesystem and HTTP client references are
// loaded through. Either may be nil for the default.
func WithReferenceSource(fs afero.Fs, client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.references = NewReferenceLoader(fs, client)
	}
}

// WithTokenEstimator replaces the estimator used for rate limiting.
func WithTokenEstimator(estimator TokenEstimator) ManagerOption {
	return func(m *Manager) {
		m.tokenEstimator = estimator
	}
}

// NewManager creates a Manager with the given provider and options.
//
// Example:
//
//	gen, err := gemini.NewWithAPIKey(ctx, apiKey)
//	if err != nil {
//	    return err
//	}
//	manager, err := imageloop.NewManager(gen)
//
// With options:
//
//	manager, err := imageloop.NewManager(gen,
//	    imageloop.WithLogger(slog.Default()),
//	    imageloop.WithDefaultModel(imageloop.ModelNanoBanana1),
//	)
func NewManager(defaultProvider ImageProvider, opts ...ManagerOption) (*Manager, error) {
	m := New()
	m.AddProvider(defaultProvider)

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if err := ValidateOptions(m.defaultOptions); err != nil {
		return nil, err
	}
	return m, nil
}
