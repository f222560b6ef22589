package imageloop

import (
	"context"
	"sync"
)

var testPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// MockImageProvider is a mock implementation of ImageProvider.
type MockImageProvider struct {
	GenerateFunc func(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error)
	ModelsFunc   func() []ModelInfo
	CloseFunc    func() error

	mu    sync.Mutex
	calls []providerCall
}

type providerCall struct {
	Prompt string
	Images []InputImage
	Opts   GenerateOptions
}

func (m *MockImageProvider) Generate(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error) {
	m.mu.Lock()
	call := providerCall{Prompt: prompt, Images: images}
	if opts != nil {
		call.Opts = *opts
	}
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, images, opts)
	}
	return imageResult(testPNG), nil
}

func (m *MockImageProvider) Models() []ModelInfo {
	if m.ModelsFunc != nil {
		return m.ModelsFunc()
	}
	return []ModelInfo{{Name: "test-model", Provider: "test-provider", APIModelName: "test-model-api"}}
}

func (m *MockImageProvider) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockImageProvider) Calls() []providerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]providerCall(nil), m.calls...)
}

// MockConversationalProvider is a MockImageProvider whose conversations are
// recorded per instance.
type MockConversationalProvider struct {
	MockImageProvider
	SendFunc func(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error)

	mu            sync.Mutex
	conversations []*mockConversation
}

func (m *MockConversationalProvider) StartConversation() Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := &mockConversation{send: m.SendFunc}
	m.conversations = append(m.conversations, conv)
	return conv
}

func (m *MockConversationalProvider) Conversations() []*mockConversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockConversation(nil), m.conversations...)
}

type mockConversation struct {
	send    func(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error)
	history []ConversationTurn
	prompts []string
	cleared bool
}

func (c *mockConversation) Send(ctx context.Context, prompt string, images []InputImage, opts *GenerateOptions) (*GenerateResult, error) {
	c.prompts = append(c.prompts, prompt)
	result := imageResult(testPNG)
	if c.send != nil {
		var err error
		if result, err = c.send(ctx, prompt, images, opts); err != nil {
			return nil, err
		}
	}
	c.history = append(c.history, ExchangeTurns(prompt, images, result)...)
	return result, nil
}

func (c *mockConversation) History() []ConversationTurn {
	return append([]ConversationTurn(nil), c.history...)
}

func (c *mockConversation) Clear() {
	c.history = nil
	c.cleared = true
}

func imageResult(data []byte) *GenerateResult {
	return &GenerateResult{
		Images: []GeneratedImage{{Data: data, MIMEType: "image/png"}},
	}
}

// recordingStorage is an in-memory Storage.
type recordingStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (s *recordingStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[path] = data
	return "mem://" + path, nil
}
