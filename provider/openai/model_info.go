package openai

import "github.com/mhpenta/imageloop"

// GPTImage1Info is the model info for gpt-image-1.
//
// It renders natively at 1024x1024, 1024x1536 and 1536x1024, honours quality
// tiers and can output a real alpha channel for PNG and WebP.
var GPTImage1Info = imageloop.ModelInfo{
	Name:         string(imageloop.ModelGPTImage1),
	Provider:     imageloop.ProviderOpenAI,
	APIModelName: APIModelGPTImage1,

	Capabilities: imageloop.ModelCapabilities{
		SupportsTextToImage:  true,
		SupportsImageEditing: true,
		SupportsMultiImage:   true,
		SupportsConversation: false,
		SupportsTransparency: true,
		SupportsThinking:     false,
		MaxInputImages:       14,
		MaxOutputImages:      10,
	},

	ContextLength: 32000,

	ImageConstraints: imageloop.ImageConstraints{
		SupportedAspectRatios: []imageloop.AspectRatio{
			imageloop.AspectRatio1x1,
			imageloop.AspectRatio2x3,
			imageloop.AspectRatio3x2,
		},
		SupportedSizes: []imageloop.ImageSize{
			imageloop.ImageSizeAuto,
			imageloop.ImageSize1024,
			imageloop.ImageSize1024x1536,
			imageloop.ImageSize1536x1024,
		},
		SupportedQualities: []imageloop.Quality{
			imageloop.QualityAuto,
			imageloop.QualityLow,
			imageloop.QualityMedium,
			imageloop.QualityHigh,
		},
		SupportedFormats: []imageloop.Format{
			imageloop.FormatPNG,
			imageloop.FormatJPEG,
			imageloop.FormatWebP,
		},
	},

	// Tier 1 limits.
	RateLimits: imageloop.RateLimits{
		TokensPerMinute:   100000,
		RequestsPerMinute: 5,
	},

	// Image output tokens dominate: ~$0.011 low, ~$0.042 medium, ~$0.167 high
	// for a 1024x1024 image.
	Pricing: imageloop.Pricing{
		InputTokensPerMillion:  5.00,
		OutputTokensPerMillion: 40.00,
		ImageGenerationCost:    0.042,
	},
}
