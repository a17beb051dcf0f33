package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock types ---

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Provider() BackendProvider {
	args := m.Called()
	return args.Get(0).(BackendProvider)
}

func (m *MockBackend) Infer(ctx context.Context, req *Request) (*Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	mockBackend := new(MockBackend)
	mockBackend.On("Provider").Return(BackendProviderTFServing)

	require.NoError(t, reg.Register(mockBackend))

	got, ok := reg.Get(BackendProviderTFServing)
	assert.True(t, ok)
	assert.Equal(t, mockBackend, got)

	// Ensure a missing backend returns false
	_, ok = reg.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []BackendProvider{BackendProviderTFServing}, reg.Providers())
	mockBackend.AssertExpectations(t)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	b1 := new(MockBackend)
	b2 := new(MockBackend)
	b1.On("Provider").Return(BackendProviderCommand)
	b2.On("Provider").Return(BackendProviderCommand)

	require.NoError(t, reg.Register(b1))
	err := reg.Register(b2)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry()

	b1 := new(MockBackend)
	b2 := new(MockBackend)
	b1.On("Provider").Return(BackendProviderTFServing)
	b2.On("Provider").Return(BackendProviderOpenAI)

	b1.On("Close").Return(nil).Once()
	b2.On("Close").Return(nil).Once()

	require.NoError(t, reg.Register(b1))
	require.NoError(t, reg.Register(b2))

	assert.NoError(t, reg.Close())

	b1.AssertExpectations(t)
	b2.AssertExpectations(t)
}

func TestRegistry_CloseErrorPropagation(t *testing.T) {
	reg := NewRegistry()

	b1 := new(MockBackend)
	b2 := new(MockBackend)

	b1.On("Provider").Return(BackendProviderTFServing)
	b2.On("Provider").Return(BackendProviderOpenAI)

	b1.On("Close").Return(errors.New("close failed")).Once()
	b2.On("Close").Return(nil).Once()

	require.NoError(t, reg.Register(b1))
	require.NoError(t, reg.Register(b2))

	err := reg.Close()
	assert.EqualError(t, err, "close failed")

	b1.AssertExpectations(t)
	b2.AssertExpectations(t)
}
