package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
	"github.com/ekisa-team/anubad/internal/service"
	"github.com/ekisa-team/anubad/internal/testutil"
)

func setupTestService(t *testing.T, withBundle bool) (*service.Translator, *testutil.MockBackend) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	bundle := filepath.Join(t.TempDir(), "translator")
	if withBundle {
		testutil.WriteBundle(t, bundle)
	}

	cfg := config.Default()
	mc := cfg.Models[config.DefaultModelID]
	mc.SetLocalSource(config.LocalSource{Path: bundle})
	cfg.Models[config.DefaultModelID] = mc

	manager := model.NewManager(model.WithModelsPath(t.TempDir()))
	_ = manager.LoadModelsFromConfig(context.Background(), cfg)

	mb := testutil.NewMockBackend(backend.BackendProviderTFServing)
	mb.On("Load", mock.Anything, config.DefaultModelID, bundle).Return(nil).Maybe()

	backends := backend.NewRegistry()
	require.NoError(t, backends.Register(mb))

	svc := service.NewTranslator(backends, manager)
	_ = svc.Warm(context.Background())

	return svc, mb
}

func setupTestRouter(t *testing.T, withBundle bool, opts Options) (*gin.Engine, *testutil.MockBackend) {
	t.Helper()

	svc, mb := setupTestService(t, withBundle)
	return NewRouter(svc, opts), mb
}

func postForm(router http.Handler, text string) *httptest.ResponseRecorder {
	form := url.Values{"text": {text}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postJSON(router http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPage_Show(t *testing.T) {
	router, _ := setupTestRouter(t, true, Options{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Bengali to English Translator")
	assert.Contains(t, body, "Enter Bengali text below to translate it to English")
	assert.Contains(t, body, "Enter Bengali text:")
	assert.Contains(t, body, "<textarea")
	assert.Contains(t, body, "Translate</button>")
	assert.Contains(t, body, "See example translations")
	assert.Contains(t, body, "আপনি কেমন আছেন?")
	assert.Contains(t, body, "I am going home.")
	assert.Contains(t, body, "টম মিথ্যা কথা বললো।")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestPage_EmptyInputWarns(t *testing.T) {
	router, mb := setupTestRouter(t, true, Options{})

	w := postForm(router, "  ")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter some text to translate.")
	assert.Contains(t, w.Body.String(), `data-level="warning"`)
	mb.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything, mock.Anything)
}

func TestPage_Translate(t *testing.T) {
	router, mb := setupTestRouter(t, true, Options{})
	mb.On("Infer", mock.Anything, config.DefaultModelID, "আপনি কেমন আছেন?").Return("How are you?", nil).Once()

	w := postForm(router, "আপনি কেমন আছেন?")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data-level="success"`)
	assert.Contains(t, body, "Translation:")
	assert.Contains(t, body, "How are you?")
	mb.AssertExpectations(t)
}

func TestPage_TranslateError(t *testing.T) {
	router, mb := setupTestRouter(t, true, Options{})
	mb.On("Infer", mock.Anything, config.DefaultModelID, "টম").Return("", errors.New("server crashed")).Once()

	w := postForm(router, "টম")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Translation error: server crashed")
	assert.Contains(t, w.Body.String(), `data-level="error"`)
}

func TestPage_LoadFailure(t *testing.T) {
	router, mb := setupTestRouter(t, false, Options{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Failed to load the translator model")
	assert.Contains(t, body, "Error loading model:")
	assert.NotContains(t, body, "<textarea")

	w = postForm(router, "আপনি কেমন আছেন?")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load the translator model")
	mb.AssertNotCalled(t, "Infer", mock.Anything, mock.Anything, mock.Anything)
}

func TestAPI_Translate(t *testing.T) {
	router, mb := setupTestRouter(t, true, Options{})
	mb.On("Infer", mock.Anything, config.DefaultModelID, "আমি বাড়িতে যাচ্ছি।").Return("I am going home.", nil).Once()

	w := postJSON(router, "/api/v1/translate", TranslateRequestDTO{Text: "আমি বাড়িতে যাচ্ছি।"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TranslateResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "I am going home.", resp.Text)
	assert.Equal(t, config.DefaultModelID, resp.ModelID)
}

func TestAPI_TranslateErrors(t *testing.T) {
	router, _ := setupTestRouter(t, true, Options{})

	w := postJSON(router, "/api/v1/translate", TranslateRequestDTO{Text: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter some text to translate.")

	w = postJSON(router, "/api/v1/translate", TranslateRequestDTO{ModelID: "missing", Text: "টম"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ModelUnavailable(t *testing.T) {
	router, _ := setupTestRouter(t, false, Options{})

	w := postJSON(router, "/api/v1/translate", TranslateRequestDTO{Text: "টম"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPI_HealthAndModels(t *testing.T) {
	router, _ := setupTestRouter(t, false, Options{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	require.Len(t, health.Models, 1)
	assert.Equal(t, model.StatusFailed, health.Models[0].Status)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/examples", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var examples []config.Example
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &examples))
	assert.Len(t, examples, 3)
}

func TestRateLimit(t *testing.T) {
	router, _ := setupTestRouter(t, true, Options{RateLimit: 0.001, RateBurst: 1})

	w := postJSON(router, "/api/v1/translate", TranslateRequestDTO{Text: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/api/v1/translate", TranslateRequestDTO{Text: ""})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads are not limited.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	router, _ := setupTestRouter(t, true, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
