package imageloop

import (
	"time"
)

// Model represents a specific image generation model.
type Model string

// Quality is the rendering quality hint forwarded to the generator.
type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ImageSize represents the output resolution for generated images.
type ImageSize string

const (
	ImageSizeAuto      ImageSize = "auto"
	ImageSize1024      ImageSize = "1024x1024"
	ImageSize1024x1536 ImageSize = "1024x1536" // portrait
	ImageSize1536x1024 ImageSize = "1536x1024" // landscape
)

// Background controls whether the generated image has an opaque or transparent background.
type Background string

const (
	BackgroundAuto        Background = "auto"
	BackgroundOpaque      Background = "opaque"
	BackgroundTransparent Background = "transparent"
)

// Format is the encoding of the generated image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// AspectRatio represents the aspect ratio for generated images.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio2x3  AspectRatio = "2:3" // Photo portrait
	AspectRatio3x2  AspectRatio = "3:2" // Photo landscape
	AspectRatioAuto AspectRatio = ""
)

// GenerateOptions holds the generation hints for a loop run. The loop controller
// forwards them verbatim; validation is the generator's job.
type GenerateOptions struct {
	// Model to use for generation (if empty, uses the manager's default)
	Model Model

	Quality    Quality
	Size       ImageSize
	Background Background
	Format     Format

	// Temperature controls randomness where the provider supports it
	Temperature *float32

	// SafetySettings for content filtering
	SafetySettings []SafetySetting

	// Metadata is logged with every generation, e.g. to tie rounds to a job.
	// Providers never see it.
	Metadata map[string]string

	// WaitOnRateLimit, if true, causes the Manager to wait and retry when rate limited.
	// If false, a RateLimitError is returned immediately.
	WaitOnRateLimit bool

	// MaxWaitDuration is the maximum time to wait when WaitOnRateLimit is true.
	// Zero means no limit.
	MaxWaitDuration time.Duration
}

// WithModel returns a copy of the options addressed to model. A nil receiver
// yields options holding only the model.
func (o *GenerateOptions) WithModel(model Model) *GenerateOptions {
	if o == nil {
		return &GenerateOptions{Model: model}
	}
	oX := *o
	oX.Model = model
	return &oX
}

// metadataAttrs returns Metadata as a single slog attribute, or none.
func (o *GenerateOptions) metadataAttrs() []any {
	if o == nil || len(o.Metadata) == 0 {
		return nil
	}
	return []any{"metadata", o.Metadata}
}

// DefaultOptions returns GenerateOptions with sensible defaults.
func DefaultOptions() *GenerateOptions {
	return &GenerateOptions{
		Model:      ModelDefault,
		Quality:    QualityAuto,
		Size:       ImageSizeAuto,
		Background: BackgroundAuto,
		Format:     FormatPNG,
	}
}

// AspectRatio derives the aspect ratio implied by a pixel size, for providers
// that are configured by ratio instead of dimensions.
func (s ImageSize) AspectRatio() AspectRatio {
	switch s {
	case ImageSize1024:
		return AspectRatio1x1
	case ImageSize1024x1536:
		return AspectRatio2x3
	case ImageSize1536x1024:
		return AspectRatio3x2
	default:
		return AspectRatioAuto
	}
}

// MIMEType returns the MIME type for the format, defaulting to PNG.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// InputImage represents an image input (reference or previous artifact).
type InputImage struct {
	// Data is the raw image bytes
	Data []byte

	// MIMEType of the image (e.g., "image/jpeg", "image/png")
	MIMEType string

	// URI is the path or URL the image was loaded from
	URI string
}

func (s ImageSize) String() string {
	return string(s)
}

func (a AspectRatio) String() string {
	return string(a)
}

// String returns the model identifier.
func (m Model) String() string {
	return string(m)
}
