// Package command runs translation through an external helper program.
//
// The helper is invoked as `<bin> [args...] --model <bundle>`, receives the
// source text on stdin and must print the translation on stdout.
package command

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
)

// BackendName is the provider name registered for this backend.
const BackendName = backend.BackendProviderCommand

// Backend implements backend.Backend.
type Backend struct {
	executor *backend.Executor
	args     []string
}

// NewBackend creates a command backend from config.
func NewBackend(cfg config.CommandConfig) (*Backend, error) {
	if cfg.BinPath == "" {
		return nil, fmt.Errorf("command backend: bin_path is not configured")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("command backend: invalid timeout %q: %w", cfg.Timeout, err)
	}

	executor, err := backend.NewExecutor(cfg.BinPath, timeout)
	if err != nil {
		return nil, err
	}

	return NewBackendWithExecutor(executor, cfg.Args), nil
}

// NewBackendWithExecutor creates a command backend around an executor.
func NewBackendWithExecutor(executor *backend.Executor, args []string) *Backend {
	return &Backend{executor: executor, args: args}
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return BackendName
}

// Infer runs the helper once for the request.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args := b.buildArgs(req)

	start := time.Now()
	stdout, stderr, err := b.executor.Execute(ctx, args, req.Input)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return nil, backend.ErrEmptyOutput
	}

	return &backend.Response{
		Output: bytes.NewReader([]byte(text)),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelID,
			Timestamp:       time.Now(),
			DurationSeconds: time.Since(start).Seconds(),
			OutputBytes:     int64(len(text)),
			BackendSpecific: map[string]any{
				"stderr": string(stderr),
				"args":   strings.Join(args, " "),
			},
		},
	}, nil
}

// buildArgs appends the model flag and any string parameters as --key value.
func (b *Backend) buildArgs(req *backend.Request) []string {
	args := append([]string(nil), b.args...)
	args = append(args, "--model", req.ModelPath)

	for k, v := range req.Parameters {
		if s, ok := v.(string); ok {
			args = append(args, "--"+strings.ReplaceAll(k, "_", "-"), s)
		}
	}

	return args
}

// Close cleans up resources. The helper is not long-lived.
func (b *Backend) Close() error {
	return nil
}
