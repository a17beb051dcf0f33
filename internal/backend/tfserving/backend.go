// Package tfserving serves saved model bundles with tensorflow_model_server
// and translates through its REST predict API.
package tfserving

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/mapsafe"
)

const (
	// BackendName is the provider name registered for this backend.
	BackendName = backend.BackendProviderTFServing

	defaultSignature = "serving_default"
	defaultInputKey  = "inputs"
	defaultOutputKey = "output_0"
	readyTimeout     = 2 * time.Minute
)

// Starter starts and stops model server processes.
type Starter interface {
	StartServer(ctx context.Context, cfg backend.ServerConfig) error
	StopServer(name string, port int) error
	Running(name string, port int) bool
}

type servedModel struct {
	params   map[string]any
	path     string
	baseURL  string
	restPort int
}

// Backend implements backend.Backend and backend.Loader for TF Serving.
type Backend struct {
	servers    Starter
	client     *http.Client
	models     map[string]*servedModel
	pending    map[string]struct{}
	binPath    string
	stagingDir string
	nextPort   int
	mu         sync.Mutex
}

// NewBackend creates a TF Serving backend.
func NewBackend(cfg config.TFServingConfig, servers Starter) *Backend {
	staging := cfg.StagingDir
	if staging == "" {
		staging = filepath.Join(os.TempDir(), "anubad-tfserving")
	}

	return &Backend{
		servers:    servers,
		client:     &http.Client{Timeout: 2 * time.Minute},
		models:     map[string]*servedModel{},
		pending:    map[string]struct{}{},
		binPath:    cfg.BinPath,
		stagingDir: staging,
		nextPort:   cfg.Port,
	}
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return BackendName
}

// Load stages the bundle and starts a model server for it.
// Loading a model that is already served from the same path is a no-op. A new
// path starts a fresh server and retires the old one once the new one is
// available.
func (b *Backend) Load(ctx context.Context, modelID, modelPath string, params map[string]any) error {
	// An external server needs no staging.
	if url := mapsafe.Get(params, "server_url", ""); url != "" {
		if prev := b.attach(modelID, url, params); prev != nil {
			b.retire(modelID, prev)
		}
		return nil
	}

	b.mu.Lock()
	prev, ok := b.models[modelID]
	if ok && prev.path == modelPath {
		b.mu.Unlock()
		return nil
	}
	if _, busy := b.pending[modelID]; busy {
		b.mu.Unlock()
		return fmt.Errorf("model %s is already loading", modelID)
	}

	// Each server gets a REST port and the gRPC port right after it.
	restPort := b.nextPort
	b.nextPort += 2
	b.pending[modelID] = struct{}{}
	b.mu.Unlock()

	served, err := b.start(ctx, modelID, modelPath, restPort)

	b.mu.Lock()
	delete(b.pending, modelID)
	if err == nil {
		served.params = params
		b.models[modelID] = served
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}

	if ok {
		b.retire(modelID, prev)
	}

	slog.Info("Model served by tensorflow_model_server", "model_id", modelID, "path", modelPath, "port", restPort)

	return nil
}

// start runs without holding b.mu: a server can take minutes to become
// available and other models keep serving meanwhile.
func (b *Backend) start(ctx context.Context, modelID, modelPath string, restPort int) (*servedModel, error) {
	base, err := b.stage(modelID, modelPath, restPort)
	if err != nil {
		return nil, fmt.Errorf("failed to stage bundle: %w", err)
	}

	name := serverName(modelID, restPort)
	args := []string{
		fmt.Sprintf("--port=%d", restPort+1),
		fmt.Sprintf("--rest_api_port=%d", restPort),
		"--rest_api_num_threads=4",
		"--model_name=" + modelID,
		"--model_base_path=" + base,
	}

	if err := b.servers.StartServer(ctx, backend.ServerConfig{
		Name:         name,
		BinPath:      b.binPath,
		Args:         args,
		Port:         restPort,
		HealthPath:   "/v1/models/" + modelID,
		ReadyTimeout: readyTimeout,
	}); err != nil {
		return nil, err
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", restPort)
	if err := b.waitAvailable(ctx, baseURL, modelID); err != nil {
		_ = b.servers.StopServer(name, restPort)
		return nil, err
	}

	return &servedModel{path: modelPath, baseURL: baseURL, restPort: restPort}, nil
}

// retire stops the server of a model that has been replaced.
func (b *Backend) retire(modelID string, prev *servedModel) {
	if prev.restPort == 0 {
		return
	}
	if err := b.servers.StopServer(serverName(modelID, prev.restPort), prev.restPort); err != nil {
		slog.Warn("Failed to stop replaced model server", "model_id", modelID, "port", prev.restPort, "error", err)
	}
}

func serverName(modelID string, port int) string {
	return fmt.Sprintf("%s-%s-%d", BackendName, modelID, port)
}

// attach registers a model served by an already running server at baseURL
// and returns the entry it replaced, if any.
func (b *Backend) attach(modelID, baseURL string, params map[string]any) *servedModel {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.models[modelID]
	b.models[modelID] = &servedModel{params: params, baseURL: strings.TrimRight(baseURL, "/")}
	return prev
}

// stage lays the bundle out the way the model server expects:
// <staging>/<model>-<port>/1 -> bundle.
func (b *Backend) stage(modelID, modelPath string, port int) (string, error) {
	base := filepath.Join(b.stagingDir, fmt.Sprintf("%s-%d", modelID, port))
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}

	link := filepath.Join(base, "1")
	if err := os.RemoveAll(link); err != nil {
		return "", err
	}
	if err := os.Symlink(modelPath, link); err != nil {
		return "", err
	}

	return base, nil
}

type modelStatus struct {
	ModelVersionStatus []struct {
		State  string `json:"state"`
		Status struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

// waitAvailable waits until the server reports the model AVAILABLE.
func (b *Backend) waitAvailable(ctx context.Context, baseURL, modelID string) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		status, err := b.status(ctx, baseURL, modelID)
		if err == nil && len(status.ModelVersionStatus) > 0 {
			v := status.ModelVersionStatus[0]
			switch v.State {
			case "AVAILABLE":
				return nil
			case "END":
				return fmt.Errorf("model %s failed to load: %s", modelID, v.Status.ErrorMessage)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("model %s did not become available: %w", modelID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *Backend) status(ctx context.Context, baseURL, modelID string) (*modelStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models/"+modelID, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var s modelStatus
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

type predictRequest struct {
	Inputs        map[string][]string `json:"inputs"`
	SignatureName string              `json:"signature_name"`
}

// Infer implements backend.Backend.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	b.mu.Lock()
	served, ok := b.models[req.ModelID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("model %s is not served by %s", req.ModelID, BackendName)
	}
	if served.restPort != 0 && !b.servers.Running(serverName(req.ModelID, served.restPort), served.restPort) {
		return nil, fmt.Errorf("%w: model server for %s has exited", backend.ErrUnavailable, req.ModelID)
	}

	text, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	params := mergeParams(served.params, req.Parameters)
	signature := mapsafe.Get(params, "signature_name", defaultSignature)
	inputKey := mapsafe.Get(params, "input_key", defaultInputKey)
	outputKey := mapsafe.Get(params, "output_key", defaultOutputKey)

	body, err := json.Marshal(predictRequest{
		SignatureName: signature,
		Inputs:        map[string][]string{inputKey: {string(text)}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/models/%s:predict", served.baseURL, req.ModelID),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Seconds()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predict failed with status code %d: %s", resp.StatusCode, decodeError(raw))
	}

	translation, err := decodeOutputs(raw, outputKey)
	if err != nil {
		return nil, err
	}

	return &backend.Response{
		Output: strings.NewReader(translation),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelID,
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			OutputBytes:     int64(len(translation)),
			BackendSpecific: map[string]any{
				"signature_name": signature,
			},
		},
	}, nil
}

func mergeParams(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func decodeError(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(raw)
}

// decodeOutputs extracts the first string of the "outputs" field of a
// columnar predict response. The field may be a list, a single value or a
// map of named outputs.
func decodeOutputs(raw []byte, outputKey string) (string, error) {
	var envelope struct {
		Outputs json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Outputs) == 0 {
		return "", backend.ErrEmptyOutput
	}

	var named map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Outputs, &named); err == nil && !isB64(named) {
		v, ok := named[outputKey]
		if !ok {
			if len(named) != 1 {
				keys := make([]string, 0, len(named))
				for k := range named {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				return "", fmt.Errorf("output %q not found, have %v", outputKey, keys)
			}
			for _, only := range named {
				v = only
			}
		}
		return firstString(v)
	}

	return firstString(envelope.Outputs)
}

func isB64(m map[string]json.RawMessage) bool {
	_, ok := m["b64"]
	return ok && len(m) == 1
}

// firstString unwraps nested lists down to the first string element.
// Binary tensors arrive as {"b64": "..."}.
func firstString(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}

	var b64 struct {
		B64 string `json:"b64"`
	}
	if err := json.Unmarshal(v, &b64); err == nil && b64.B64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(b64.B64)
		if err != nil {
			return "", fmt.Errorf("failed to decode b64 output: %w", err)
		}
		return string(decoded), nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(v, &list); err == nil {
		if len(list) == 0 {
			return "", backend.ErrEmptyOutput
		}
		return firstString(list[0])
	}

	return "", errors.New("unexpected output format")
}

// Close stops every model server and removes the staging directory.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for id, m := range b.models {
		if m.restPort == 0 {
			continue
		}
		if err := b.servers.StopServer(serverName(id, m.restPort), m.restPort); err != nil {
			errs = append(errs, err)
		}
	}
	b.models = map[string]*servedModel{}

	if err := os.RemoveAll(b.stagingDir); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
