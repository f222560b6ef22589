package gemini

import "github.com/mhpenta/imageloop"

// Gemini is configured by aspect ratio; pixel sizes map onto these.
var supportedAspectRatios = []imageloop.AspectRatio{
	imageloop.AspectRatio1x1,
	imageloop.AspectRatio2x3,
	imageloop.AspectRatio3x2,
}

var supportedSizes = []imageloop.ImageSize{
	imageloop.ImageSizeAuto,
	imageloop.ImageSize1024,
	imageloop.ImageSize1024x1536,
	imageloop.ImageSize1536x1024,
}

// NanoBanana2Info is the model info for Gemini 3 Pro Image (nano-banana-2).
//
// Nano Banana Pro (official name: Gemini 3 Pro Image) is Google DeepMind's
// image generation and editing model, built on Gemini 3 Pro. Quality hints
// select its 1K, 2K or 4K output resolution.
var NanoBanana2Info = imageloop.ModelInfo{
	Name:         string(imageloop.ModelNanoBanana2),
	Provider:     imageloop.ProviderGeminiAPI,
	APIModelName: APIModelNanoBanana2,

	Capabilities: imageloop.ModelCapabilities{
		SupportsTextToImage:  true,
		SupportsImageEditing: true,
		SupportsMultiImage:   true,
		SupportsConversation: true,
		SupportsTransparency: false,
		SupportsThinking:     true,
		MaxInputImages:       14,
		MaxOutputImages:      4,
	},

	ContextLength: 1048576, // 1M tokens

	ImageConstraints: imageloop.ImageConstraints{
		SupportedAspectRatios: supportedAspectRatios,
		SupportedSizes:        supportedSizes,
		SupportedQualities: []imageloop.Quality{
			imageloop.QualityAuto,
			imageloop.QualityLow,
			imageloop.QualityMedium,
			imageloop.QualityHigh,
		},
		SupportedFormats: []imageloop.Format{imageloop.FormatPNG},
	},

	RateLimits: imageloop.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 360,
		TokensPerDay:      1000000000,
	},

	// Pricing as of November 2025 for prompts ≤200K tokens.
	// Approximate costs: 4K image ~$0.24, 1K/2K image ~$0.134.
	Pricing: imageloop.Pricing{
		InputTokensPerMillion:  2.00,
		OutputTokensPerMillion: 12.00,
	},
}

// NanoBanana1Info is the model info for Gemini 2.5 Flash Image (nano-banana-1).
var NanoBanana1Info = imageloop.ModelInfo{
	Name:         string(imageloop.ModelNanoBanana1),
	Provider:     imageloop.ProviderGeminiAPI,
	APIModelName: APIModelNanoBanana1,

	Capabilities: imageloop.ModelCapabilities{
		SupportsTextToImage:  true,
		SupportsImageEditing: true,
		SupportsMultiImage:   true,
		SupportsConversation: true,
		SupportsTransparency: false,
		SupportsThinking:     false,
		MaxInputImages:       14, // Practical limit
		MaxOutputImages:      4,
	},

	ContextLength: 1048576, // 1M tokens

	ImageConstraints: imageloop.ImageConstraints{
		SupportedAspectRatios: supportedAspectRatios,
		SupportedSizes:        supportedSizes,

		// Flash Image only renders ~1024px output, so quality is ignored.
		SupportedQualities: []imageloop.Quality{imageloop.QualityAuto},
		SupportedFormats:   []imageloop.Format{imageloop.FormatPNG},
	},

	RateLimits: imageloop.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 500, // ~500 RPM for Tier 1
		TokensPerDay:      1000000000,
	},

	Pricing: imageloop.Pricing{
		InputTokensPerMillion:  0.30,
		OutputTokensPerMillion: 30.00,
	},
}
