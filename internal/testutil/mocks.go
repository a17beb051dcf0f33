package testutil

import (
	"bytes"
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/ekisa-team/anubad/internal/backend"
)

// MockBackend is a testify mock implementing backend.Backend and backend.Loader.
type MockBackend struct {
	mock.Mock
	provider backend.BackendProvider
}

// NewMockBackend returns a mock reporting the given provider.
func NewMockBackend(provider backend.BackendProvider) *MockBackend {
	return &MockBackend{provider: provider}
}

// Provider implements backend.Backend.
func (m *MockBackend) Provider() backend.BackendProvider {
	return m.provider
}

// Infer implements backend.Backend. The request input is read and passed to
// the mock as a string so expectations can match on it.
func (m *MockBackend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	text, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, err
	}

	args := m.Called(ctx, req.ModelID, string(text))
	if out, ok := args.Get(0).(string); ok && args.Error(1) == nil {
		return TextResponse(m.provider, req.ModelID, out), nil
	}
	return nil, args.Error(1)
}

// Load implements backend.Loader.
func (m *MockBackend) Load(ctx context.Context, modelID, modelPath string, params map[string]any) error {
	args := m.Called(ctx, modelID, modelPath)
	return args.Error(0)
}

// Close implements backend.Backend.
func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// TextResponse builds a backend response holding text.
func TextResponse(provider backend.BackendProvider, modelID, text string) *backend.Response {
	return &backend.Response{
		Output: bytes.NewReader([]byte(text)),
		Metadata: &backend.ResponseMetadata{
			Provider:    provider,
			Model:       modelID,
			OutputBytes: int64(len(text)),
		},
	}
}
