package tfserving

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
)

type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) StartServer(ctx context.Context, cfg backend.ServerConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *mockStarter) StopServer(name string, port int) error {
	return m.Called(name, port).Error(0)
}

func (m *mockStarter) Running(name string, port int) bool {
	return m.Called(name, port).Bool(0)
}

func readAll(t *testing.T, resp *backend.Response) string {
	t.Helper()

	var sb strings.Builder
	_, err := io.Copy(&sb, resp.Output)
	require.NoError(t, err)
	return sb.String()
}

func TestInfer_PredictRoundTrip(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/translator:predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"outputs": {"output_0": ["How are you?"]}}`))
	}))
	defer srv.Close()

	b := NewBackend(config.TFServingConfig{Port: 8501}, new(mockStarter))
	b.attach("translator", srv.URL, nil)

	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelID: "translator",
		Input:   strings.NewReader("আপনি কেমন আছেন?"),
	})
	require.NoError(t, err)

	assert.Equal(t, "How are you?", readAll(t, resp))
	assert.Equal(t, "serving_default", got.SignatureName)
	assert.Equal(t, []string{"আপনি কেমন আছেন?"}, got.Inputs["inputs"])
	assert.Equal(t, BackendName, resp.Metadata.Provider)
}

func TestInfer_CustomSignature(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"outputs": ["Tom lied."]}`))
	}))
	defer srv.Close()

	b := NewBackend(config.TFServingConfig{}, new(mockStarter))
	b.attach("translator", srv.URL, map[string]any{"signature_name": "translate", "input_key": "text"})

	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelID: "translator",
		Input:   strings.NewReader("টম মিথ্যা কথা বললো।"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Tom lied.", readAll(t, resp))
	assert.Equal(t, "translate", got.SignatureName)
	assert.Contains(t, got.Inputs, "text")
}

func TestInfer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Serving signature name: \"serving_default\" not found"}`))
	}))
	defer srv.Close()

	b := NewBackend(config.TFServingConfig{}, new(mockStarter))
	b.attach("translator", srv.URL, nil)

	_, err := b.Infer(context.Background(), &backend.Request{ModelID: "translator", Input: strings.NewReader("x")})
	assert.ErrorContains(t, err, "status code 400")
	assert.ErrorContains(t, err, "not found")
}

func TestInfer_UnknownModel(t *testing.T) {
	b := NewBackend(config.TFServingConfig{}, new(mockStarter))

	_, err := b.Infer(context.Background(), &backend.Request{ModelID: "ghost", Input: strings.NewReader("x")})
	assert.ErrorContains(t, err, "not served")
}

func TestDecodeOutputs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		err  bool
	}{
		{name: "list", raw: `{"outputs": ["I am going home."]}`, want: "I am going home."},
		{name: "nested", raw: `{"outputs": [["I am going home."]]}`, want: "I am going home."},
		{name: "scalar", raw: `{"outputs": "I am going home."}`, want: "I am going home."},
		{name: "single named", raw: `{"outputs": {"text": ["Hi"]}}`, want: "Hi"},
		{name: "b64", raw: `{"outputs": [{"b64": "SGk="}]}`, want: "Hi"},
		{name: "empty list", raw: `{"outputs": []}`, err: true},
		{name: "missing", raw: `{}`, err: true},
		{name: "ambiguous named", raw: `{"outputs": {"a": ["x"], "b": ["y"]}}`, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeOutputs([]byte(tc.raw), defaultOutputKey)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func newStatusServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model_version_status": [{"state": "AVAILABLE"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoad_StagesBundleAndStartsServer(t *testing.T) {
	status := newStatusServer(t)

	bundle := t.TempDir()
	staging := filepath.Join(t.TempDir(), "staging")

	starter := new(mockStarter)
	starter.On("StartServer", mock.Anything, mock.MatchedBy(func(cfg backend.ServerConfig) bool {
		return cfg.Port == 8501 && cfg.HealthPath == "/v1/models/translator"
	})).Return(nil).Once()

	b := NewBackend(config.TFServingConfig{Port: 8501, StagingDir: staging, BinPath: "tensorflow_model_server"}, starter)
	// Send status checks to the fake server.
	b.client = &http.Client{Transport: rewriteTransport{target: status.URL}}

	require.NoError(t, b.Load(context.Background(), "translator", bundle, nil))
	require.NoError(t, b.Load(context.Background(), "translator", bundle, nil))

	target, err := os.Readlink(filepath.Join(staging, "translator-8501", "1"))
	require.NoError(t, err)
	assert.Equal(t, bundle, target)

	starter.On("StopServer", "tfserving-translator-8501", 8501).Return(nil).Once()
	require.NoError(t, b.Close())
	assert.NoDirExists(t, staging)

	starter.AssertExpectations(t)
}

func TestLoad_NewPathReplacesServer(t *testing.T) {
	status := newStatusServer(t)

	first, second := t.TempDir(), t.TempDir()
	staging := filepath.Join(t.TempDir(), "staging")

	starter := new(mockStarter)
	starter.On("StartServer", mock.Anything, mock.MatchedBy(func(cfg backend.ServerConfig) bool {
		return cfg.Port == 8501
	})).Return(nil).Once()
	starter.On("StartServer", mock.Anything, mock.MatchedBy(func(cfg backend.ServerConfig) bool {
		return cfg.Port == 8503 && cfg.Name == "tfserving-translator-8503"
	})).Return(nil).Once()
	starter.On("StopServer", "tfserving-translator-8501", 8501).Return(nil).Once()

	b := NewBackend(config.TFServingConfig{Port: 8501, StagingDir: staging}, starter)
	b.client = &http.Client{Transport: rewriteTransport{target: status.URL}}

	require.NoError(t, b.Load(context.Background(), "translator", first, nil))
	require.NoError(t, b.Load(context.Background(), "translator", second, nil))

	target, err := os.Readlink(filepath.Join(staging, "translator-8503", "1"))
	require.NoError(t, err)
	assert.Equal(t, second, target)
	assert.Equal(t, second, b.models["translator"].path)

	starter.AssertExpectations(t)
}

func TestLoad_ServerURLAttaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/translator:predict", r.URL.Path)
		_, _ = w.Write([]byte(`{"outputs": ["I am going home."]}`))
	}))
	defer srv.Close()

	starter := new(mockStarter)
	b := NewBackend(config.TFServingConfig{}, starter)

	require.NoError(t, b.Load(context.Background(), "translator", t.TempDir(), map[string]any{"server_url": srv.URL + "/"}))

	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelID: "translator",
		Input:   strings.NewReader("আমি বাড়িতে যাচ্ছি।"),
	})
	require.NoError(t, err)
	assert.Equal(t, "I am going home.", readAll(t, resp))
	starter.AssertNotCalled(t, "StartServer", mock.Anything, mock.Anything)
}

func TestInfer_ExitedServerIsUnavailable(t *testing.T) {
	status := newStatusServer(t)

	starter := new(mockStarter)
	starter.On("StartServer", mock.Anything, mock.Anything).Return(nil).Once()
	starter.On("Running", "tfserving-translator-8501", 8501).Return(false).Once()

	b := NewBackend(config.TFServingConfig{Port: 8501, StagingDir: t.TempDir()}, starter)
	b.client = &http.Client{Transport: rewriteTransport{target: status.URL}}
	require.NoError(t, b.Load(context.Background(), "translator", t.TempDir(), nil))

	_, err := b.Infer(context.Background(), &backend.Request{ModelID: "translator", Input: strings.NewReader("x")})
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	starter.AssertExpectations(t)
}

// blockingStarter holds StartServer until release is closed.
type blockingStarter struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingStarter) StartServer(ctx context.Context, _ backend.ServerConfig) error {
	close(s.started)
	select {
	case <-s.release:
		return errors.New("server exited")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *blockingStarter) StopServer(string, int) error { return nil }

func (s *blockingStarter) Running(string, int) bool { return true }

func TestLoad_DoesNotBlockServedModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"outputs": ["How are you?"]}`))
	}))
	defer srv.Close()

	starter := &blockingStarter{started: make(chan struct{}), release: make(chan struct{})}
	b := NewBackend(config.TFServingConfig{Port: 8501, StagingDir: t.TempDir()}, starter)
	b.attach("translator", srv.URL, nil)

	bundle := t.TempDir()
	loadErr := make(chan error, 1)
	go func() {
		loadErr <- b.Load(context.Background(), "other", bundle, nil)
	}()
	<-starter.started

	// A second load of the same model is refused while the first runs.
	assert.ErrorContains(t, b.Load(context.Background(), "other", bundle+"-next", nil), "already loading")

	inferred := make(chan error, 1)
	go func() {
		_, err := b.Infer(context.Background(), &backend.Request{ModelID: "translator", Input: strings.NewReader("x")})
		inferred <- err
	}()

	select {
	case err := <-inferred:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Infer blocked while another model was loading")
	}

	close(starter.release)
	require.ErrorContains(t, <-loadErr, "server exited")

	_, err := b.Infer(context.Background(), &backend.Request{ModelID: "other", Input: strings.NewReader("x")})
	assert.ErrorContains(t, err, "not served")
}

// rewriteTransport sends every request to target, keeping the path.
type rewriteTransport struct {
	target string
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	u := *r.URL
	u.Scheme = "http"
	u.Host = strings.TrimPrefix(rt.target, "http://")
	r2 := r.Clone(r.Context())
	r2.URL = &u
	return http.DefaultTransport.RoundTrip(r2)
}
