package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mhpenta/imageloop"
	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// fakeOpenAI answers the images and chat endpoints from canned bodies.
type fakeOpenAI struct {
	mu sync.Mutex

	generations []map[string]any
	edits       []editRequest
	chats       []map[string]any

	status     int
	retryAfter string
	chatReply  string
}

type editRequest struct {
	Prompt string
	Model  string
	Images int
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		if f.retryAfter != "" {
			w.Header().Set("Retry-After", f.retryAfter)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		fmt.Fprintf(w, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)
		return
	}

	switch r.URL.Path {
	case "/images/generations":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.generations = append(f.generations, body)
		writeImages(w)
	case "/images/edits":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		form := r.MultipartForm
		f.edits = append(f.edits, editRequest{
			Prompt: r.FormValue("prompt"),
			Model:  r.FormValue("model"),
			Images: len(form.File["image"]) + len(form.File["image[]"]),
		})
		writeImages(w)
	case "/chat/completions":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.chats = append(f.chats, body)
		w.Header().Set("Content-Type", "application/json")
		reply, _ := json.Marshal(f.chatReply)
		fmt.Fprintf(w, `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %s}}]
}`, reply)
	default:
		io.Copy(io.Discard, r.Body)
		http.NotFound(w, r)
	}
}

func writeImages(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
  "created": 1,
  "data": [{"b64_json": %q}],
  "usage": {"input_tokens": 50, "output_tokens": 1056, "total_tokens": 1106,
            "input_tokens_details": {"image_tokens": 40, "text_tokens": 10}}
}`, base64.StdEncoding.EncodeToString(testPNG))
}

func newTestProvider(t *testing.T) (*Provider, *fakeOpenAI) {
	t.Helper()
	fake := &fakeOpenAI{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p, err := New(&imageloop.ProviderConfig{
		Provider: imageloop.ProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  srv.URL + "/",
	}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return p, fake
}

func TestProvider_Generate(t *testing.T) {
	p, fake := newTestProvider(t)

	result, err := p.Generate(context.Background(), "a red bicycle", nil, &imageloop.GenerateOptions{
		Quality:    imageloop.QualityHigh,
		Size:       imageloop.ImageSize1536x1024,
		Background: imageloop.BackgroundTransparent,
		Format:     imageloop.FormatWebP,
	})
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	assert.Equal(t, testPNG, result.Images[0].Data)
	assert.Equal(t, "image/webp", result.Images[0].MIMEType)
	require.NotNil(t, result.UsageMetadata)
	assert.Equal(t, 1106, result.UsageMetadata.TotalTokens)

	require.Len(t, fake.generations, 1)
	body := fake.generations[0]
	assert.Equal(t, "a red bicycle", body["prompt"])
	assert.Equal(t, APIModelGPTImage1, body["model"])
	assert.Equal(t, "high", body["quality"])
	assert.Equal(t, "1536x1024", body["size"])
	assert.Equal(t, "transparent", body["background"])
	assert.Equal(t, "webp", body["output_format"])
	assert.Empty(t, fake.edits)
}

func TestProvider_Generate_EmptyOptionsOmitted(t *testing.T) {
	p, fake := newTestProvider(t)

	_, err := p.Generate(context.Background(), "a red bicycle", nil, &imageloop.GenerateOptions{})
	require.NoError(t, err)

	require.Len(t, fake.generations, 1)
	for _, key := range []string{"quality", "size", "background", "output_format"} {
		assert.NotContains(t, fake.generations[0], key)
	}
}

func TestProvider_Generate_EditWithImages(t *testing.T) {
	p, fake := newTestProvider(t)
	images := []imageloop.InputImage{
		{Data: testPNG, MIMEType: "image/png"},
		{Data: []byte("jpeg"), MIMEType: "image/jpeg"},
	}

	result, err := p.Generate(context.Background(), "", images, nil)
	require.NoError(t, err)
	require.Len(t, result.Images, 1)
	assert.Equal(t, "image/png", result.Images[0].MIMEType)

	require.Len(t, fake.edits, 1)
	assert.Equal(t, editPromptFallback, fake.edits[0].Prompt)
	assert.Equal(t, APIModelGPTImage1, fake.edits[0].Model)
	assert.Equal(t, 2, fake.edits[0].Images)
	assert.Empty(t, fake.generations)
}

func TestProvider_Generate_InvalidInput(t *testing.T) {
	p, fake := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Generate(ctx, "", nil, nil)
	require.ErrorIs(t, err, imageloop.ErrNothingToGenerate)

	_, err = p.Generate(ctx, "logo", nil, &imageloop.GenerateOptions{Background: imageloop.BackgroundTransparent, Format: imageloop.FormatJPEG})
	require.ErrorIs(t, err, imageloop.ErrInvalidOption)

	assert.Empty(t, fake.generations)
}

func TestProvider_Generate_RateLimited(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.status = http.StatusTooManyRequests
	fake.retryAfter = "7"

	_, err := p.Generate(context.Background(), "a red bicycle", nil, nil)
	require.Error(t, err)

	var rlErr *imageloop.RateLimitError
	require.True(t, errors.As(err, &rlErr), "got %T: %v", err, err)
	assert.Equal(t, 7*time.Second, rlErr.RetryAfter)
	assert.Equal(t, APIModelGPTImage1, rlErr.Model)
}

func TestProvider_Generate_ServerError(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.status = http.StatusBadRequest

	_, err := p.Generate(context.Background(), "a red bicycle", nil, nil)
	require.Error(t, err)
	assert.False(t, imageloop.IsRateLimitError(err))
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := New(&imageloop.ProviderConfig{Provider: imageloop.ProviderOpenAI})
	require.ErrorIs(t, err, imageloop.ErrProviderNotConfigured)

	t.Setenv("OPENAI_API_KEY", "sk-env")
	_, err = New(nil)
	require.NoError(t, err)
}

func TestProvider_Models(t *testing.T) {
	models := (&Provider{}).Models()
	require.Len(t, models, 1)
	assert.Equal(t, string(imageloop.ModelGPTImage1), models[0].Name)
	assert.True(t, models[0].Capabilities.SupportsTransparency)
	assert.True(t, models[0].ImageConstraints.SupportsFormat(imageloop.FormatWebP))
}

func TestEvaluator_Evaluate(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.chatReply = "Sure! {\"score\": 64, \"feedback\": \"the wheels are oval\"}"

	eval := NewEvaluator(p.Client())
	got, err := eval.Evaluate(context.Background(), &imageloop.Artifact{Data: testPNG, MIMEType: "image/png"}, "a red bicycle")
	require.NoError(t, err)
	assert.Equal(t, imageloop.Evaluation{Score: 64, Feedback: "the wheels are oval"}, got)

	require.Len(t, fake.chats, 1)
	body := fake.chats[0]
	assert.Equal(t, APIModelChat, body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	content, ok := messages[1].(map[string]any)["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 2)
	imagePart := content[1].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t, imageloop.DataURL("image/png", testPNG), imagePart["image_url"].(map[string]any)["url"])
}

func TestEvaluator_Failures(t *testing.T) {
	p, fake := newTestProvider(t)
	eval := NewEvaluator(p.Client(), WithEvaluatorModel("gpt-4.1"))
	artifact := &imageloop.Artifact{Data: testPNG, MIMEType: "image/png"}
	ctx := context.Background()

	fake.chatReply = "no json here"
	got, err := eval.Evaluate(ctx, artifact, "p")
	require.ErrorIs(t, err, imageloop.ErrMalformedEvaluation)
	assert.Equal(t, imageloop.SentinelEvaluation(err), got)

	fake.chatReply = ""
	got, err = eval.Evaluate(ctx, artifact, "p")
	require.Error(t, err)
	assert.Equal(t, 0.0, got.Score)

	fake.status = http.StatusTooManyRequests
	got, err = eval.Evaluate(ctx, artifact, "p")
	require.True(t, imageloop.IsRateLimitError(err))
	assert.Equal(t, imageloop.SentinelEvaluation(err), got)

	assert.Equal(t, "gpt-4.1", fake.chats[0]["model"])
}

func TestPrompter_Refine(t *testing.T) {
	p, fake := newTestProvider(t)
	fake.chatReply = "```\na red bicycle with round wheels\n```"

	prompter := NewPrompter(p.Client(), nil)
	refined, err := prompter.Refine(context.Background(), "a red bicycle", "the wheels are oval")
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle with round wheels", refined)

	require.Len(t, fake.chats, 1)
	messages := fake.chats[0]["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, imageloop.DefaultPrompterInstructions, messages[0].(map[string]any)["content"])
	assert.Equal(t, imageloop.BuildRefinementPrompt("a red bicycle", "the wheels are oval"), messages[1].(map[string]any)["content"])

	fake.chatReply = "  "
	_, err = prompter.Refine(context.Background(), "a", "b")
	require.Error(t, err)
}
