package imageloop

import (
	"context"
	"sync"
)

// ManagedConversation is the generation context behind a continuation token.
// Conversational providers keep their own history; for the others the last
// generated image is sent back as an input image on the next turn.
type ManagedConversation struct {
	provider     ImageProvider
	providerConv Conversation
	model        Model

	history   []ConversationTurn
	lastImage *InputImage

	mu sync.Mutex
}

func newManagedConversation(provider ImageProvider, model Model) *ManagedConversation {
	c := &ManagedConversation{
		provider: provider,
		model:    model,
	}
	if convGen, ok := provider.(ConversationalProvider); ok {
		c.providerConv = convGen.StartConversation()
	}
	return c
}

// Model returns the model the conversation was started with.
func (c *ManagedConversation) Model() Model {
	return c.model
}

// Send sends a turn and receives a response. A failed Send leaves the
// conversation unchanged.
func (c *ManagedConversation) Send(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.providerConv != nil {
		result, err := c.providerConv.Send(ctx, prompt, images, opts)
		if err != nil {
			return nil, err
		}
		c.history = c.providerConv.History()
		return result, nil
	}

	inputs := images
	if c.lastImage != nil {
		inputs = append([]InputImage{*c.lastImage}, images...)
		if len(inputs) > MaxInputImages {
			inputs = inputs[:MaxInputImages]
		}
	}

	result, err := c.provider.Generate(ctx, prompt, inputs, opts)
	if err != nil {
		return nil, err
	}

	c.history = append(c.history, ExchangeTurns(prompt, inputs, result)...)

	if first, ok := result.FirstImage(); ok {
		last := first.AsInput()
		c.lastImage = &last
	}
	return result, nil
}

// History returns the conversation history.
func (c *ManagedConversation) History() []ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	historyCopy := make([]ConversationTurn, len(c.history))
	copy(historyCopy, c.history)
	return historyCopy
}

// Clear resets the conversation history.
func (c *ManagedConversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = make([]ConversationTurn, 0)
	c.lastImage = nil
	if c.providerConv != nil {
		c.providerConv.Clear()
	}
}
