package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhpenta/imageloop"
	"google.golang.org/genai"
)

// Evaluator scores artifacts with a multimodal Gemini model.
type Evaluator struct {
	client *genai.Client
	model  string
	loader *imageloop.ReferenceLoader
}

// Ensure Evaluator implements imageloop.Evaluator.
var _ imageloop.Evaluator = (*Evaluator)(nil)

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorModel sets the model used for scoring.
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
func NewEvaluator(client *genai.Client, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		client: client,
		model:  APIModelText,
		loader: imageloop.NewReferenceLoader(nil, nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate sends the artifact and its prompt to the model and parses the JSON
// verdict. Any failure yields the sentinel evaluation and the error.
func (e *Evaluator) Evaluate(ctx context.Context, artifact *imageloop.Artifact, prompt string) (imageloop.Evaluation, error) {
	img, err := e.loader.ArtifactImage(ctx, artifact)
	if err != nil {
		err = fmt.Errorf("load artifact: %w", err)
		return imageloop.SentinelEvaluation(err), err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType}},
				{Text: imageloop.BuildEvaluationPrompt(prompt)},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: imageloop.BuildEvaluationInstruction()}},
		},
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		if rlErr := checkRateLimitError(err, e.model); rlErr != nil {
			err = rlErr
		} else {
			err = fmt.Errorf("evaluation request failed: %w", err)
		}
		return imageloop.SentinelEvaluation(err), err
	}

	text := responseText(resp)
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
