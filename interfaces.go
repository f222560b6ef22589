package imageloop

import "context"

// Generator produces an image artifact from a prompt. It is the capability the
// loop controller drives each round.
//
// A non-nil error reports a round without an artifact. The returned Generation
// may still carry a continuation token in that case, which tells the caller the
// generation context survived and a later round can resume from it.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// Evaluator scores an artifact against the prompt that produced it.
//
// On failure implementations return SentinelEvaluation(err) together with the
// error so callers that only look at the value still see a usable record.
type Evaluator interface {
	Evaluate(ctx context.Context, artifact *Artifact, prompt string) (Evaluation, error)
}

// Prompter refines a prompt given the evaluator's feedback on its last result.
type Prompter interface {
	Refine(ctx context.Context, previousPrompt, feedback string) (string, error)
}

// SessionStore keeps the side-channel messages of a refinement dialogue.
type SessionStore interface {
	Create(ctx context.Context) (string, error)
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
}

// SessionAdvancer runs a remote conversational session once per refinement
// round. Its output is bookkeeping only.
type SessionAdvancer interface {
	Advance(ctx context.Context, sessionID string) ([]ToolCall, error)
}

// ImageProvider is the interface for image generation backends.
// Implement this interface to add support for new models or providers.
//
// The first model returned by Models() is considered the default model.
type ImageProvider interface {
	// Generate creates images from a text prompt, conditioned on zero or more input images.
	Generate(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error)

	// Models returns the model definitions supported by this provider.
	// The first model in the list is the default.
	Models() []ModelInfo

	// Close releases any resources held by the provider.
	Close() error
}

// ConversationalProvider extends ImageProvider with multi-turn conversation support.
type ConversationalProvider interface {
	ImageProvider

	// StartConversation begins a new image generation conversation.
	StartConversation() Conversation
}

// Conversation represents a multi-turn image generation session.
type Conversation interface {
	// Send sends a message (text and/or images) and receives a response.
	// A failed Send leaves the conversation as it was before the call.
	Send(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error)

	// History returns the conversation history.
	History() []ConversationTurn

	// Clear resets the conversation history.
	Clear()
}
