package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"github.com/openai/openai-go/v2"
)

// Prompter refines prompts with a chat model, using the session config's
// instructions as the system message.
type Prompter struct {
	client       openai.Client
	model        string
	instructions string
}

// Ensure Prompter implements imageloop.Prompter.
var _ imageloop.Prompter = (*Prompter)(nil)

// NewPrompter creates a Prompter. A nil cfg uses imageloop.DefaultSessionConfig.
func NewPrompter(client openai.Client, cfg *imageloop.SessionConfig) *Prompter {
	if cfg == nil {
		cfg = imageloop.DefaultSessionConfig()
	}
	model := cfg.PrompterModel
	if model == "" {
		model = APIModelChat
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
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.instructions),
			openai.UserMessage(imageloop.BuildRefinementPrompt(previousPrompt, feedback)),
		},
	})
	if err != nil {
		if rlErr := checkRateLimitError(err, p.model); rlErr != nil {
			return "", rlErr
		}
		return "", fmt.Errorf("refinement request failed: %w", err)
	}

	refined := imageloop.CleanRefinedPrompt(chatText(resp))
	if refined == "" {
		return "", errors.New("empty refinement response")
	}
	return refined, nil
}
