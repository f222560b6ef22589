// Package openai provides image generation, evaluation and prompt refinement
// on the OpenAI API: gpt-image-1 for images, a chat model for judging and
// rewriting prompts.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mhpenta/imageloop"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Model name constants - the actual API model names.
const (
	// APIModelGPTImage1 is the image generation and editing model.
	APIModelGPTImage1 = "gpt-image-1"

	// APIModelChat is the default model for evaluation and refinement.
	APIModelChat = "gpt-4o"
)

// editPromptFallback is sent when a continuation round carries no new prompt;
// the edit endpoint requires one.
const editPromptFallback = "Produce an improved version of this image."

// Provider implements ImageProvider on the OpenAI Images API. Calls without
// input images go to the generations endpoint, calls with images to edits.
type Provider struct {
	client openai.Client
}

// Ensure Provider implements imageloop.ImageProvider.
var _ imageloop.ImageProvider = (*Provider)(nil)

// New creates a Provider. The API key comes from config or, when empty, from
// OPENAI_API_KEY; having neither is a configuration error. Extra request
// options are appended after the ones derived from config.
func New(config *imageloop.ProviderConfig, opts ...option.RequestOption) (*Provider, error) {
	client, err := NewClient(config, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

// NewWithAPIKey creates a provider with an API key.
func NewWithAPIKey(apiKey string) (*Provider, error) {
	return New(&imageloop.ProviderConfig{
		Provider: imageloop.ProviderOpenAI,
		APIKey:   apiKey,
	})
}

// NewClient builds the openai.Client shared by Provider, Evaluator and Prompter.
func NewClient(config *imageloop.ProviderConfig, opts ...option.RequestOption) (openai.Client, error) {
	if config == nil {
		config = &imageloop.ProviderConfig{}
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return openai.Client{}, fmt.Errorf("%w: %s: missing API key", imageloop.ErrProviderNotConfigured, imageloop.ProviderOpenAI)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(config.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return openai.NewClient(reqOpts...), nil
}

// Client returns the underlying client.
func (p *Provider) Client() openai.Client {
	return p.client
}

// Generate creates one image from a prompt, editing from images when any are given.
func (p *Provider) Generate(ctx context.Context, prompt string, images []imageloop.InputImage, opts *imageloop.GenerateOptions) (*imageloop.GenerateResult, error) {
	if err := imageloop.ValidateGenerationInput(prompt, images); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = imageloop.DefaultOptions()
	}
	if err := imageloop.ValidateOptions(opts); err != nil {
		return nil, err
	}

	model := string(opts.Model)
	if model == "" {
		model = APIModelGPTImage1
	}

	var (
		resp *openai.ImagesResponse
		err  error
	)
	if len(images) == 0 {
		resp, err = p.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Prompt:       prompt,
			Model:        openai.ImageModel(model),
			N:            openai.Int(1),
			Quality:      openai.ImageGenerateParamsQuality(opts.Quality),
			Size:         openai.ImageGenerateParamsSize(opts.Size),
			Background:   openai.ImageGenerateParamsBackground(opts.Background),
			OutputFormat: openai.ImageGenerateParamsOutputFormat(opts.Format),
		})
	} else {
		if prompt == "" {
			prompt = editPromptFallback
		}
		resp, err = p.client.Images.Edit(ctx, openai.ImageEditParams{
			Image:        openai.ImageEditParamsImageUnion{OfFileArray: imageFiles(images)},
			Prompt:       prompt,
			Model:        openai.ImageModel(model),
			N:            openai.Int(1),
			Quality:      openai.ImageEditParamsQuality(opts.Quality),
			Size:         openai.ImageEditParamsSize(opts.Size),
			Background:   openai.ImageEditParamsBackground(opts.Background),
			OutputFormat: openai.ImageEditParamsOutputFormat(opts.Format),
		})
	}
	if err != nil {
		if rlErr := checkRateLimitError(err, model); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("image request failed: %w", err)
	}

	return parseImagesResponse(resp, opts.Format)
}

// Models returns the model definitions supported by this provider.
func (p *Provider) Models() []imageloop.ModelInfo {
	return []imageloop.ModelInfo{
		GPTImage1Info,
	}
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	return nil
}

// imageFiles wraps input images as named multipart files.
func imageFiles(images []imageloop.InputImage) []io.Reader {
	files := make([]io.Reader, 0, len(images))
	for i, img := range images {
		name := fmt.Sprintf("image-%d.%s", i, extension(img.MIMEType))
		files = append(files, openai.File(bytes.NewReader(img.Data), name, img.MIMEType))
	}
	return files
}

func parseImagesResponse(resp *openai.ImagesResponse, format imageloop.Format) (*imageloop.GenerateResult, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("empty response from model")
	}

	result := &imageloop.GenerateResult{
		Images: make([]imageloop.GeneratedImage, 0, len(resp.Data)),
	}
	for i, img := range resp.Data {
		if img.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image %d: %w", i, err)
		}
		result.Images = append(result.Images, imageloop.GeneratedImage{
			Data:          data,
			MIMEType:      format.MIMEType(),
			Index:         i,
			RevisedPrompt: img.RevisedPrompt,
		})
	}

	if resp.Usage.TotalTokens > 0 {
		result.UsageMetadata = &imageloop.UsageMetadata{
			PromptTokens:     int(resp.Usage.InputTokens),
			CandidatesTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			ImageCount:       len(result.Images),
		}
	}
	return result, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// chatText returns the first choice's message content.
func chatText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// checkRateLimitError wraps 429 responses in a RateLimitError. It returns nil
// for any other error.
func checkRateLimitError(err error, model string) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	retryAfter := 60 * time.Second
	if apiErr.Response != nil {
		if d, parseErr := time.ParseDuration(apiErr.Response.Header.Get("Retry-After") + "s"); parseErr == nil && d > 0 {
			retryAfter = d
		}
	}

	return &imageloop.RateLimitError{
		RetryAfter: retryAfter,
		LimitType:  "requests",
		Model:      model,
		Err:        err,
	}
}
