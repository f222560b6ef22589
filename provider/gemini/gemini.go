// Package gemini provides image generation, evaluation and prompt refinement
// on Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mhpenta/imageloop"
	"google.golang.org/genai"
)

// Model name constants - the actual API model names.
const (
	// APIModelNanoBanana2 is the actual API name for Gemini 3 Pro Image
	APIModelNanoBanana2 = "gemini-3-pro-image-preview"

	// APIModelNanoBanana1 is the actual API name for Gemini 2.5 Flash Image
	APIModelNanoBanana1 = "gemini-2.5-flash-image"

	// APIModelText is the default model for evaluation and refinement.
	APIModelText = "gemini-2.5-flash"
)

// Provider implements ImageProvider using Google's Gemini API.
type Provider struct {
	client         *genai.Client
	safetySettings []*genai.SafetySetting
	mu             sync.RWMutex
}

// Ensure Provider implements the interfaces.
var (
	_ imageloop.ImageProvider          = (*Provider)(nil)
	_ imageloop.ConversationalProvider = (*Provider)(nil)
)

// New creates a new Provider from a ProviderConfig.
func New(ctx context.Context, config *imageloop.ProviderConfig) (*Provider, error) {
	if config == nil {
		config = &imageloop.ProviderConfig{}
	}

	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	if config.APIKey != "" {
		clientCfg.APIKey = config.APIKey
	}
	// If APIKey is empty, the SDK will try GOOGLE_API_KEY or GEMINI_API_KEY env vars

	if config.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Provider{
		client: client,
	}, nil
}

// NewWithAPIKey creates a provider with an API key for Gemini API.
func NewWithAPIKey(ctx context.Context, apiKey string) (*Provider, error) {
	return New(ctx, &imageloop.ProviderConfig{
		Provider: imageloop.ProviderGeminiAPI,
		APIKey:   apiKey,
	})
}

// Client returns the underlying genai client, for building an Evaluator or
// Prompter that shares it.
func (g *Provider) Client() *genai.Client {
	return g.client
}

// SetSafetySettings configures default safety settings for all requests.
// These can be overridden per-request via GenerateOptions.SafetySettings.
func (g *Provider) SetSafetySettings(settings []imageloop.SafetySetting) *Provider {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.safetySettings = convertSafetySettings(settings)
	return g
}

// Generate creates images from a prompt and zero or more input images.
func (g *Provider) Generate(ctx context.Context, prompt string, images []imageloop.InputImage, opts *imageloop.GenerateOptions) (*imageloop.GenerateResult, error) {
	if err := imageloop.ValidateGenerationInput(prompt, images); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = imageloop.DefaultOptions()
	}

	modelName := g.resolveModel(opts)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: buildParts(prompt, images, opts),
		},
	}

	result, err := g.client.Models.GenerateContent(ctx, modelName, contents, g.buildGenerateContentConfig(modelName, opts))
	if err != nil {
		if rlErr := checkRateLimitError(err, modelName); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return parseResult(result)
}

// Models returns the model definitions supported by this provider.
// The first model (NanoBanana2) is the default.
func (g *Provider) Models() []imageloop.ModelInfo {
	return []imageloop.ModelInfo{
		NanoBanana2Info,
		NanoBanana1Info,
	}
}

// Close releases any resources held by the provider.
func (g *Provider) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

// StartConversation begins a new image generation conversation.
func (g *Provider) StartConversation() imageloop.Conversation {
	return &Conversation{
		provider: g,
		history:  make([]imageloop.ConversationTurn, 0),
	}
}

// resolveModel determines which API model name to use.
// Falls back to the first model (default) if none specified.
func (g *Provider) resolveModel(opts *imageloop.GenerateOptions) string {
	if opts != nil && opts.Model != imageloop.ModelDefault {
		return string(opts.Model)
	}
	models := g.Models()
	if len(models) == 0 {
		return APIModelNanoBanana2
	}
	return models[0].APIModelName
}

// buildGenerateContentConfig converts our options to Gemini's GenerateContentConfig format.
func (g *Provider) buildGenerateContentConfig(modelName string, opts *imageloop.GenerateOptions) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		// Enable image output
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	imageConfig := &genai.ImageConfig{
		AspectRatio: opts.Size.AspectRatio().String(),
	}
	// Only the Pro model renders above 1K.
	if modelName == APIModelNanoBanana2 {
		imageConfig.ImageSize = resolutionForQuality(opts.Quality)
	}
	genConfig.ImageConfig = imageConfig

	if opts.Temperature != nil {
		genConfig.Temperature = genai.Ptr(*opts.Temperature)
	}

	// Safety settings: per-request overrides provider defaults
	g.mu.RLock()
	defaults := g.safetySettings
	g.mu.RUnlock()
	if len(opts.SafetySettings) > 0 {
		genConfig.SafetySettings = convertSafetySettings(opts.SafetySettings)
	} else if len(defaults) > 0 {
		genConfig.SafetySettings = defaults
	}

	return genConfig
}

// resolutionForQuality maps a quality hint to a Gemini output resolution.
func resolutionForQuality(q imageloop.Quality) string {
	switch q {
	case imageloop.QualityLow:
		return "1K"
	case imageloop.QualityMedium:
		return "2K"
	case imageloop.QualityHigh:
		return "4K"
	default:
		return ""
	}
}

// buildParts puts input images first and the prompt last. Gemini has no alpha
// output, so a transparent background becomes a prompt instruction.
func buildParts(prompt string, images []imageloop.InputImage, opts *imageloop.GenerateOptions) []*genai.Part {
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     img.Data,
				MIMEType: img.MIMEType,
			},
		})
	}

	if opts != nil && opts.Background == imageloop.BackgroundTransparent {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += imageloop.TransparentBackgroundHint
	}
	if prompt != "" {
		parts = append(parts, &genai.Part{Text: prompt})
	}
	return parts
}

// convertSafetySettings converts our SafetySettings to Gemini's format.
func convertSafetySettings(settings []imageloop.SafetySetting) []*genai.SafetySetting {
	result := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		result = append(result, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	return result
}

// parseResult converts Gemini response to our result type.
func parseResult(result *genai.GenerateContentResponse) (*imageloop.GenerateResult, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, errors.New("empty response from model")
	}

	genResult := &imageloop.GenerateResult{
		Images: make([]imageloop.GeneratedImage, 0),
	}

	var thinkingParts []string

	imageIndex := 0
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingParts = append(thinkingParts, part.Text)
				continue
			}

			if part.Text != "" {
				genResult.Text += part.Text
			}

			if part.InlineData != nil && part.InlineData.Data != nil {
				genResult.Images = append(genResult.Images, imageloop.GeneratedImage{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
					Index:    imageIndex,
				})
				imageIndex++
			}
		}
	}

	if len(thinkingParts) > 0 {
		genResult.ThinkingContent = strings.Join(thinkingParts, "\n")
	}

	if result.UsageMetadata != nil {
		genResult.UsageMetadata = &imageloop.UsageMetadata{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
			ImageCount:       len(genResult.Images),
		}
	}

	return genResult, nil
}

// Conversation implements multi-turn image generation. Each Send resends the
// whole content history, so later turns refine the earlier images.
type Conversation struct {
	provider *Provider
	history  []imageloop.ConversationTurn
	contents []*genai.Content

	mu sync.Mutex
}

// Send sends a message and receives a response. On failure the history is
// left exactly as it was.
func (c *Conversation) Send(ctx context.Context, prompt string, images []imageloop.InputImage, opts *imageloop.GenerateOptions) (*imageloop.GenerateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := imageloop.ValidateInputImages(images); err != nil {
		return nil, err
	}
	if prompt == "" && len(images) == 0 && len(c.contents) == 0 {
		return nil, imageloop.ErrNothingToGenerate
	}

	if opts == nil {
		opts = imageloop.DefaultOptions()
	}

	modelName := c.provider.resolveModel(opts)

	parts := buildParts(prompt, images, opts)
	if len(parts) == 0 {
		// Ask for another take on the previous turn.
		parts = []*genai.Part{{Text: "Generate the image again."}}
	}
	userContent := &genai.Content{
		Role:  "user",
		Parts: parts,
	}
	contents := append(slices.Clone(c.contents), userContent)

	result, err := c.provider.client.Models.GenerateContent(
		ctx,
		modelName,
		contents,
		c.provider.buildGenerateContentConfig(modelName, opts),
	)
	if err != nil {
		if rlErr := checkRateLimitError(err, modelName); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("conversation send failed: %w", err)
	}

	genResult, err := parseResult(result)
	if err != nil {
		return nil, err
	}

	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		contents = append(contents, result.Candidates[0].Content)
	}
	c.contents = contents

	c.history = append(c.history, imageloop.ExchangeTurns(prompt, images, genResult)...)

	return genResult, nil
}

// History returns the conversation history.
func (c *Conversation) History() []imageloop.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Return a copy to prevent external modification
	historyCopy := make([]imageloop.ConversationTurn, len(c.history))
	copy(historyCopy, c.history)
	return historyCopy
}

// Clear resets the conversation history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = make([]imageloop.ConversationTurn, 0)
	c.contents = make([]*genai.Content, 0)
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// checkRateLimitError checks if an error from the Gemini API is a rate limit error.
// If so, it wraps it in a RateLimitError for standardized handling; otherwise returns nil.
func checkRateLimitError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Code != 429 && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}

	return &imageloop.RateLimitError{
		RetryAfter: 60 * time.Second, // Default; API doesn't reliably provide Retry-After
		LimitType:  "requests",
		Model:      model,
		Err:        err,
	}
}
