package imageloop

// SafetyCategory names a provider content filter. Only Gemini honours these.
type SafetyCategory string

const (
	SafetyCategoryHarassment       SafetyCategory = "HARM_CATEGORY_HARASSMENT"
	SafetyCategoryHateSpeech       SafetyCategory = "HARM_CATEGORY_HATE_SPEECH"
	SafetyCategorySexuallyExplicit SafetyCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	SafetyCategoryDangerousContent SafetyCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// SafetyThreshold is the level at which a category blocks output.
type SafetyThreshold string

const (
	SafetyThresholdBlockNone      SafetyThreshold = "BLOCK_NONE"
	SafetyThresholdBlockLowAndUp  SafetyThreshold = "BLOCK_LOW_AND_ABOVE"
	SafetyThresholdBlockMedAndUp  SafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	SafetyThresholdBlockHighAndUp SafetyThreshold = "BLOCK_ONLY_HIGH"
)

// SafetySetting pairs a category with its threshold.
type SafetySetting struct {
	Category  SafetyCategory
	Threshold SafetyThreshold
}

// GeneratedImage is one image returned by a provider, before it is stored
// and becomes an Artifact.
type GeneratedImage struct {
	Data     []byte
	MIMEType string

	// Index is the image's position in the provider response.
	Index int

	// RevisedPrompt is set by providers that rewrite the prompt (OpenAI).
	RevisedPrompt string
}

// AsInput returns the image in the form providers accept as input, so it can
// be sent back on the next round.
func (img GeneratedImage) AsInput() InputImage {
	return InputImage{Data: img.Data, MIMEType: img.MIMEType}
}

// GenerateResult is what a provider returns for one round.
type GenerateResult struct {
	Images []GeneratedImage

	// Text is any text the model returned alongside (or instead of) images.
	Text string

	// ThinkingContent is the model's reasoning, when the provider exposes it.
	ThinkingContent string

	UsageMetadata *UsageMetadata
}

// FirstImage returns the image the loop evaluates. ok is false for a
// text-only response.
func (r *GenerateResult) FirstImage() (img GeneratedImage, ok bool) {
	if r == nil || len(r.Images) == 0 {
		return GeneratedImage{}, false
	}
	return r.Images[0], true
}

// UsageMetadata is the token usage a provider reported for one round.
type UsageMetadata struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
	ImageCount       int
}

// LogAttrs returns usage as slog key/value pairs. A nil receiver yields none.
func (u *UsageMetadata) LogAttrs() []any {
	if u == nil {
		return nil
	}
	return []any{
		"prompt_tokens", u.PromptTokens,
		"response_tokens", u.CandidatesTokens,
		"total_tokens", u.TotalTokens,
	}
}

// TurnRole is the speaker of a ConversationTurn.
type TurnRole string

const (
	TurnRoleUser  TurnRole = "user"
	TurnRoleModel TurnRole = "model"
)

// ConversationTurn is one side of a generation exchange.
type ConversationTurn struct {
	Role   TurnRole
	Text   string
	Images []GeneratedImage
}

// ExchangeTurns returns the user turn (prompt plus the images sent with it)
// and the model turn for one completed round.
func ExchangeTurns(prompt string, sent []InputImage, result *GenerateResult) []ConversationTurn {
	user := ConversationTurn{Role: TurnRoleUser, Text: prompt}
	for i, img := range sent {
		user.Images = append(user.Images, GeneratedImage{
			Data:     img.Data,
			MIMEType: img.MIMEType,
			Index:    i,
		})
	}

	model := ConversationTurn{Role: TurnRoleModel}
	if result != nil {
		model.Text = result.Text
		model.Images = result.Images
	}
	return []ConversationTurn{user, model}
}
