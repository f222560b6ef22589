package imageloop

import (
	"math"
	"unicode/utf8"
)

// ImageInputTokens is the flat token charge assumed for each input image.
const ImageInputTokens = 258

// TokenEstimator estimates the input tokens a generation call will be billed
// for, so rate limits can be checked before the call is made.
type TokenEstimator interface {
	EstimateTokens(prompt string, images []InputImage) int
}

// CharTokenEstimator approximates text tokens as one per four characters,
// scaled by SafetyMargin, and charges ImageTokens per input image.
type CharTokenEstimator struct {
	SafetyMargin float64
	ImageTokens  int
}

func NewCharTokenEstimator() *CharTokenEstimator {
	return &CharTokenEstimator{
		SafetyMargin: 1.2,
		ImageTokens:  ImageInputTokens,
	}
}

func (e *CharTokenEstimator) EstimateTokens(prompt string, images []InputImage) int {
	total := len(images) * e.ImageTokens
	if prompt == "" {
		return total
	}

	estimate := float64(utf8.RuneCountInString(prompt)) / 4.0 * e.SafetyMargin
	return total + int(math.Ceil(estimate)) + 3
}
