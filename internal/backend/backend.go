package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	BackendProviderTFServing BackendProvider = "tfserving"
	BackendProviderCommand   BackendProvider = "command"
	BackendProviderOpenAI    BackendProvider = "openai"
)

// Backend defines the core interface for all inference backends.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes inference and returns complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// Input is the raw input data. For translation it is UTF-8 text.
	Input io.Reader

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any

	// ModelID is the registry id of the model.
	ModelID string

	// ModelPath is the path to the model bundle.
	ModelPath string
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is the raw output data.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Timestamp       time.Time       `json:"timestamp"`
	BackendSpecific map[string]any  `json:"backend_specific,omitempty"`
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	DurationSeconds float64         `json:"inference_time_seconds"`
	OutputBytes     int64           `json:"output_bytes"`
}
