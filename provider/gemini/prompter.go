package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"google.golang.org/genai"
)

// Prompter refines prompts with a Gemini text model, using the session
// config's instructions as its system prompt.
type Prompter struct {
	client       *genai.Client
	model        string
	instructions string
}

// Ensure Prompter implements imageloop.Prompter.
var _ imageloop.Prompter = (*Prompter)(nil)

// NewPrompter creates a Prompter. A nil cfg uses imageloop.DefaultSessionConfig.
func NewPrompter(client *genai.Client, cfg *imageloop.SessionConfig) *Prompter {
	if cfg == nil {
		cfg = imageloop.DefaultSessionConfig()
	}
	model := cfg.PrompterModel
	if model == "" {
		model = APIModelText
	}
	instructions := cfg.PrompterInstructions
	if instructions == "" {
		instructions = imageloop.DefaultPrompterInstructions
	}
	return &Prompter{
		client:       client,
		model:        model,
		instructions: instructions,
	}
}

// Refine asks the model for an improved prompt.
func (p *Prompter) Refine(ctx context.Context, previousPrompt, feedback string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: imageloop.BuildRefinementPrompt(previousPrompt, feedback)}},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: p.instructions}},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		if rlErr := checkRateLimitError(err, p.model); rlErr != nil {
			return "", rlErr
		}
		return "", fmt.Errorf("refinement request failed: %w", err)
	}

	refined := imageloop.CleanRefinedPrompt(responseText(resp))
	if refined == "" {
		return "", errors.New("empty refinement response")
	}
	return refined, nil
}
