package imageloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mhpenta/imageloop/ratelimiter"
	"github.com/oklog/ulid/v2"
)

const (
	ModelNanoBanana2 Model = "nano-banana-2" // Gemini 3 Pro Image
	ModelNanoBanana1 Model = "nano-banana-1" // Gemini 2.5 Flash Image
	ModelGPTImage1   Model = "gpt-image-1"

	// ModelDefault resolves to the manager's default model.
	ModelDefault Model = ""
)

var (
	// ErrModelNotRegistered is returned when a model has no registered provider.
	ErrModelNotRegistered = errors.New("model not registered")

	// ErrProviderNotConfigured is returned when a provider lacks required config.
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Provider represents a model provider/backend.
type Provider string

const (
	ProviderGeminiAPI Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
)

// ProviderConfig configures a specific provider.
type ProviderConfig struct {
	// Provider type
	Provider Provider

	// APIKey for authentication
	APIKey string

	// BaseURL for custom endpoints (optional)
	BaseURL string
}

// ModelMapping maps a model identifier to its provider and actual model name.
type ModelMapping struct {
	Provider        Provider
	ActualModelName string
}

// Manager implements Generator on top of one or more ImageProviders, routing
// each request by the Model in its options. Continuation tokens name
// conversations the manager keeps until they are released.
type Manager struct {
	// Model to provider mapping
	modelMappings map[Model]ModelMapping

	// Provider instances
	providers map[Provider]ImageProvider

	// Default model to use when options.Model is empty
	defaultModel Model

	// Options used for any field a request leaves empty
	defaultOptions *GenerateOptions

	// Rate limiting (per model)
	rateLimiters ratelimiter.RateLimiterRegistry

	// Model info (per model)
	modelInfo map[Model]*ModelInfo

	logger *slog.Logger

	// Storage for persisting generated images (optional)
	storage Storage

	references *ReferenceLoader

	conversations map[string]*ManagedConversation

	tokenEstimator TokenEstimator

	mu sync.RWMutex
}

// Ensure Manager implements the interfaces.
var (
	_ Generator            = (*Manager)(nil)
	_ ContinuationReleaser = (*Manager)(nil)
)

// ContinuationReleaser is implemented by generators that hold state per
// continuation token. Callers release a token once they stop using it.
type ContinuationReleaser interface {
	Release(token string)
}

// New creates a new Manager with no providers.
func New() *Manager {
	return &Manager{
		logger:         slog.Default(),
		modelMappings:  make(map[Model]ModelMapping),
		providers:      make(map[Provider]ImageProvider),
		rateLimiters:   ratelimiter.NewRateLimiterRegistry(),
		modelInfo:      make(map[Model]*ModelInfo),
		conversations:  make(map[string]*ManagedConversation),
		tokenEstimator: NewCharTokenEstimator(),
		references:     NewReferenceLoader(nil, nil),
		defaultOptions: DefaultOptions(),
	}
}

// AddProvider registers every model of a provider. The first provider added
// supplies the default model unless one was set explicitly.
func (m *Manager) AddProvider(provider ImageProvider) *Manager {
	models := provider.Models()
	for i := range models {
		info := &models[i]

		m.mu.Lock()
		m.providers[info.Provider] = provider
		if m.defaultModel == ModelDefault {
			m.defaultModel = Model(info.Name)
		}
		m.mu.Unlock()

		m.RegisterModel(Model(info.Name),
			ModelMapping{
				Provider:        info.Provider,
				ActualModelName: info.APIModelName,
			},
			info)
	}
	return m
}

// RegisterModel registers a model with full info (including rate limits).
// Uses the default in-memory rate limiter. Use SetRateLimiter to override with a custom implementation.
func (m *Manager) RegisterModel(model Model, mapping ModelMapping, info *ModelInfo) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.modelMappings[model] = mapping
	m.modelInfo[model] = info

	// Create default in-memory rate limiter from model's rate limits
	if info.RateLimits.TokensPerMinute > 0 || info.RateLimits.RequestsPerMinute > 0 {
		m.rateLimiters.Set(string(model), ratelimiter.NewFromLimits(ratelimiter.RateLimits{
			TokensPerMinute:   info.RateLimits.TokensPerMinute,
			RequestsPerMinute: info.RateLimits.RequestsPerMinute,
			TokensPerDay:      info.RateLimits.TokensPerDay,
		}))
	}

	return m
}

// SetRateLimiter sets a custom rate limiter for a model.
// Use this to swap in a distributed rate limiter (e.g., Redis-based) for production.
func (m *Manager) SetRateLimiter(model Model, limiter ratelimiter.Limiter) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimiters.Set(string(model), limiter)
	return m
}

// SetDefaultModel sets the default model used when options.Model is empty.
func (m *Manager) SetDefaultModel(model Model) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.defaultModel = model
	return m
}

// SetLogger sets a structured logger for the manager.
func (m *Manager) SetLogger(logger *slog.Logger) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger = logger
	return m
}

// SetStorage sets a storage backend for persisting generated images.
func (m *Manager) SetStorage(storage Storage) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.storage = storage
	return m
}

// Storage returns the configured storage backend, or nil if not set.
func (m *Manager) Storage() Storage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.storage
}

// Generate runs one generation round. Without a continuation token it starts a
// new conversation and returns its token only if the round produced an image.
// With a token it continues that conversation, and the token is returned even
// when the round fails since the conversation survives.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	opts := m.resolveOptions(req.Options)
	model := m.resolveModel(opts)
	start := time.Now()

	m.logger.Debug("starting image generation", append([]any{
		"model", string(model),
		"prompt_length", len(req.Prompt),
		"references", len(req.References),
		"continuation", req.Continuation != "",
	}, opts.metadataAttrs()...)...)

	conv, token, isNew, err := m.conversationFor(req.Continuation, model)
	if err != nil {
		m.logger.Error("failed to get conversation",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, err
	}

	// What to hand back on failure: nothing for a fresh conversation, the
	// existing token for a continued one.
	failed := func(err error) (*Generation, error) {
		if isNew {
			return nil, err
		}
		return &Generation{Continuation: token}, err
	}

	images, refErrs := m.references.LoadAll(ctx, req.References)
	for _, refErr := range refErrs {
		m.logger.Warn("dropping reference", "error", refErr.Error())
	}

	if err := m.checkInput(req.Prompt, images, isNew); err != nil {
		return failed(err)
	}

	if err := m.checkRateLimit(ctx, model, opts, req.Prompt, images); err != nil {
		m.logger.Warn("rate limit hit",
			"model", string(model),
			"error", err.Error(),
		)
		return failed(err)
	}

	providerOpts, err := m.providerOptions(model, opts)
	if err != nil {
		return failed(err)
	}

	result, err := conv.Send(ctx, req.Prompt, images, providerOpts)
	duration := time.Since(start)
	first, ok := result.FirstImage()
	if err == nil && !ok {
		err = noImageError(result.Text)
	}
	if err != nil {
		m.logger.Error("generation failed", append([]any{
			"model", string(model),
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		}, opts.metadataAttrs()...)...)
		return failed(err)
	}

	if isNew {
		m.mu.Lock()
		m.conversations[token] = conv
		m.mu.Unlock()
	}

	artifact := m.saveArtifact(ctx, token, first)

	logAttrs := []any{
		"model", string(model),
		"duration_ms", duration.Milliseconds(),
		"image_count", len(result.Images),
		"artifact", artifact.Ref,
	}
	logAttrs = append(logAttrs, result.UsageMetadata.LogAttrs()...)
	logAttrs = append(logAttrs, opts.metadataAttrs()...)
	m.logger.Info("generation completed", logAttrs...)

	return &Generation{
		Artifact:     artifact,
		Continuation: token,
		Text:         result.Text,
	}, nil
}

// Release forgets the conversation behind a continuation token.
func (m *Manager) Release(token string) {
	m.mu.Lock()
	conv, ok := m.conversations[token]
	delete(m.conversations, token)
	m.mu.Unlock()

	if ok {
		conv.Clear()
	}
}

// Conversation returns the conversation behind a continuation token.
func (m *Manager) Conversation(token string) (*ManagedConversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[token]
	return conv, ok
}

// Models returns all registered model definitions.
func (m *Manager) Models() []ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	models := make([]ModelInfo, 0, len(m.modelInfo))
	for _, info := range m.modelInfo {
		if info != nil {
			models = append(models, *info)
		}
	}
	return models
}

// Close releases all provider resources and conversations.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for provider, gen := range m.providers {
		if err := gen.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", provider, err))
		}
	}
	m.providers = make(map[Provider]ImageProvider)
	m.conversations = make(map[string]*ManagedConversation)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ListModels returns all registered models.
func (m *Manager) ListModels() []Model {
	m.mu.RLock()
	defer m.mu.RUnlock()

	models := make([]Model, 0, len(m.modelMappings))
	for model := range m.modelMappings {
		models = append(models, model)
	}
	return models
}

// GetModelProvider returns the provider for a model.
func (m *Manager) GetModelProvider(model Model) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.modelMappings[model]
	if !ok {
		return "", false
	}
	return mapping.Provider, true
}

// GetModelInfo returns model information for a specific model.
func (m *Manager) GetModelInfo(model Model) (*ModelInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.modelInfo[model]
	return info, ok
}

// conversationFor returns the conversation for a token, or a fresh one under a
// new token when token is empty.
func (m *Manager) conversationFor(token string, model Model) (*ManagedConversation, string, bool, error) {
	if token != "" {
		m.mu.RLock()
		conv, ok := m.conversations[token]
		m.mu.RUnlock()
		if !ok {
			return nil, "", false, fmt.Errorf("%w: %s", ErrUnknownContinuation, token)
		}
		return conv, token, false, nil
	}

	conv, err := m.startConversation(model)
	if err != nil {
		return nil, "", false, err
	}
	return conv, ulid.Make().String(), true, nil
}

func (m *Manager) startConversation(model Model) (*ManagedConversation, error) {
	m.mu.RLock()
	mapping, ok := m.modelMappings[model]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, model)
	}

	provider, err := m.getProvider(mapping.Provider)
	if err != nil {
		return nil, err
	}
	return newManagedConversation(provider, model), nil
}

// checkInput rejects calls with nothing to generate from. A continued
// conversation already holds context, so only images are checked there.
func (m *Manager) checkInput(prompt string, images []InputImage, isNew bool) error {
	if isNew {
		return ValidateGenerationInput(prompt, images)
	}
	return ValidateInputImages(images)
}

// checkRateLimit checks rate limits for a model and optionally waits.
func (m *Manager) checkRateLimit(ctx context.Context, model Model, opts *GenerateOptions, prompt string, images []InputImage) error {

	const (
		tokenBuffer = 100
	)

	limiter, err := m.rateLimiters.Get(string(model))
	if err != nil {
		return nil
	}

	estimatedTokens := m.tokenEstimator.EstimateTokens(prompt, images)

	estimatedTokens += tokenBuffer

	if opts.WaitOnRateLimit {
		return limiter.WaitAndConsume(ctx, estimatedTokens, opts.MaxWaitDuration)
	}

	if !limiter.TryConsume(estimatedTokens) {
		return &RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
			LimitType:  "tokens",
			Model:      string(model),
		}
	}

	return nil
}

// resolveOptions fills fields the request left empty from the manager defaults.
func (m *Manager) resolveOptions(opts *GenerateOptions) *GenerateOptions {
	m.mu.RLock()
	defaults := m.defaultOptions
	m.mu.RUnlock()

	if opts == nil {
		optsCopy := *defaults
		return &optsCopy
	}

	merged := *opts
	if merged.Model == ModelDefault {
		merged.Model = defaults.Model
	}
	if merged.Quality == "" {
		merged.Quality = defaults.Quality
	}
	if merged.Size == "" {
		merged.Size = defaults.Size
	}
	if merged.Background == "" {
		merged.Background = defaults.Background
	}
	if merged.Format == "" {
		merged.Format = defaults.Format
	}
	if merged.Temperature == nil {
		merged.Temperature = defaults.Temperature
	}
	if len(merged.SafetySettings) == 0 {
		merged.SafetySettings = defaults.SafetySettings
	}
	if len(merged.Metadata) == 0 {
		merged.Metadata = defaults.Metadata
	}
	return &merged
}

// resolveModel determines the actual model to use.
func (m *Manager) resolveModel(opts *GenerateOptions) Model {
	model := ModelDefault
	if opts != nil {
		model = opts.Model
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if model == ModelDefault {
		model = m.defaultModel
	}

	return model
}

// providerOptions returns a copy of opts addressed to the provider's API model name.
func (m *Manager) providerOptions(model Model, opts *GenerateOptions) (*GenerateOptions, error) {
	m.mu.RLock()
	mapping, ok := m.modelMappings[model]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, model)
	}

	providerOpts := opts.WithModel(Model(mapping.ActualModelName))

	if info, ok := m.GetModelInfo(model); ok && !info.ImageConstraints.SupportsFormat(opts.Format) {
		m.logger.Warn("format not supported by model, using provider default",
			"model", string(model),
			"format", string(opts.Format),
		)
		providerOpts.Format = ""
	}
	return providerOpts, nil
}

// getProvider returns the provider instance for the given provider type.
func (m *Manager) getProvider(provider Provider) (ImageProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gen, ok := m.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return gen, nil
}

// saveArtifact persists the image when storage is configured. Without storage,
// or when saving fails, the artifact keeps its bytes under a logical reference.
func (m *Manager) saveArtifact(ctx context.Context, token string, img GeneratedImage) *Artifact {
	m.mu.RLock()
	storage := m.storage
	m.mu.RUnlock()

	basePath := token + "/" + ulid.Make().String()
	artifact := &Artifact{
		Ref:      basePath + "." + extensionFromMIME(img.MIMEType),
		MIMEType: img.MIMEType,
		Data:     img.Data,
	}
	if storage == nil {
		return artifact
	}

	saved, err := SaveImage(ctx, storage, img, basePath)
	if err != nil {
		m.logger.Warn("failed to save artifact",
			"path", artifact.Ref,
			"error", err.Error(),
		)
		return artifact
	}
	artifact.Ref = saved.URL
	return artifact
}

func noImageError(text string) error {
	if text == "" {
		return ErrNoImage
	}
	const maxLen = 512
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}
	return fmt.Errorf("%w: %s", ErrNoImage, text)
}
