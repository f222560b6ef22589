package imageloop

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrEmptyImageData  = errors.New("image data cannot be empty")
	ErrInvalidMIMEType = errors.New("invalid or unsupported MIME type")
	ErrImageTooLarge   = errors.New("image data exceeds maximum size")
	ErrTooManyImages   = errors.New("too many input images")
	ErrInvalidOption   = errors.New("invalid generation option")
)

// Image size limits
const (
	// MaxImageSize is the maximum allowed image size in bytes (20MB)
	MaxImageSize = 20 * 1024 * 1024

	// MaxInputImages is the maximum number of input images per generation
	MaxInputImages = 14
)

// ValidMIMETypes contains the supported image MIME types
var ValidMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var (
	validQualities   = map[Quality]bool{"": true, QualityAuto: true, QualityLow: true, QualityMedium: true, QualityHigh: true}
	validSizes       = map[ImageSize]bool{"": true, ImageSizeAuto: true, ImageSize1024: true, ImageSize1024x1536: true, ImageSize1536x1024: true}
	validBackgrounds = map[Background]bool{"": true, BackgroundAuto: true, BackgroundOpaque: true, BackgroundTransparent: true}
	validFormats     = map[Format]bool{"": true, FormatPNG: true, FormatJPEG: true, FormatWebP: true}
)

// ValidatePrompt validates a text prompt.
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ValidateOptions checks every option against its domain. Empty values mean
// "provider default" and are accepted. A transparent background requires a
// format with an alpha channel.
func ValidateOptions(opts *GenerateOptions) error {
	if opts == nil {
		return nil
	}
	if !validQualities[opts.Quality] {
		return fmt.Errorf("%w: quality %q", ErrInvalidOption, opts.Quality)
	}
	if !validSizes[opts.Size] {
		return fmt.Errorf("%w: size %q", ErrInvalidOption, opts.Size)
	}
	if !validBackgrounds[opts.Background] {
		return fmt.Errorf("%w: background %q", ErrInvalidOption, opts.Background)
	}
	if !validFormats[opts.Format] {
		return fmt.Errorf("%w: format %q", ErrInvalidOption, opts.Format)
	}
	if opts.Background == BackgroundTransparent && opts.Format == FormatJPEG {
		return fmt.Errorf("%w: transparent background requires png or webp", ErrInvalidOption)
	}
	return nil
}

// ValidateInputImage validates an input image.
func ValidateInputImage(img InputImage) error {
	if len(img.Data) == 0 && img.URI == "" {
		return ErrEmptyImageData
	}

	if len(img.Data) > 0 {
		if len(img.Data) > MaxImageSize {
			return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(img.Data), MaxImageSize)
		}

		if img.MIMEType == "" {
			return fmt.Errorf("%w: MIME type is required", ErrInvalidMIMEType)
		}

		if !ValidMIMETypes[img.MIMEType] {
			return fmt.Errorf("%w: %s", ErrInvalidMIMEType, img.MIMEType)
		}
	}

	return nil
}

// ValidateInputImages validates a slice of input images. An empty slice is valid.
func ValidateInputImages(images []InputImage) error {
	if len(images) > MaxInputImages {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyImages, len(images), MaxInputImages)
	}

	for i, img := range images {
		if err := ValidateInputImage(img); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}

	return nil
}

// ValidateGenerationInput checks that a provider call has something to work from.
func ValidateGenerationInput(prompt string, images []InputImage) error {
	if prompt == "" && len(images) == 0 {
		return ErrNothingToGenerate
	}
	return ValidateInputImages(images)
}
