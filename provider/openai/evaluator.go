package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
)

// Evaluator scores artifacts with a vision-capable chat model.
type Evaluator struct {
	client openai.Client
	model  string
	loader *imageloop.ReferenceLoader
}

// Ensure Evaluator implements imageloop.Evaluator.
var _ imageloop.Evaluator = (*Evaluator)(nil)

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorModel sets the chat model used for scoring.
func WithEvaluatorModel(model string) EvaluatorOption {
	return func(e *Evaluator) {
		if model != "" {
			e.model = model
		}
	}
}

// WithEvaluatorLoader sets how artifacts without in-memory bytes are read back.
func WithEvaluatorLoader(loader *imageloop.ReferenceLoader) EvaluatorOption {
	return func(e *Evaluator) {
		if loader != nil {
			e.loader = loader
		}
	}
}

// NewEvaluator creates an Evaluator on client.
func NewEvaluator(client openai.Client, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		client: client,
		model:  APIModelChat,
		loader: imageloop.NewReferenceLoader(nil, nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate sends the artifact as a data URL with its prompt and parses the
// JSON verdict. Any failure yields the sentinel evaluation and the error.
func (e *Evaluator) Evaluate(ctx context.Context, artifact *imageloop.Artifact, prompt string) (imageloop.Evaluation, error) {
	img, err := e.loader.ArtifactImage(ctx, artifact)
	if err != nil {
		err = fmt.Errorf("load artifact: %w", err)
		return imageloop.SentinelEvaluation(err), err
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(imageloop.BuildEvaluationInstruction()),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(imageloop.BuildEvaluationPrompt(prompt)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageloop.DataURL(img.MIMEType, img.Data),
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		if rlErr := checkRateLimitError(err, e.model); rlErr != nil {
			err = rlErr
		} else {
			err = fmt.Errorf("evaluation request failed: %w", err)
		}
		return imageloop.SentinelEvaluation(err), err
	}

	text := chatText(resp)
	if text == "" {
		err := errors.New("empty evaluation response")
		return imageloop.SentinelEvaluation(err), err
	}

	eval, err := imageloop.ParseEvaluation(text)
	if err != nil {
		return imageloop.SentinelEvaluation(err), err
	}
	return eval, nil
}
