package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
	"github.com/ekisa-team/anubad/internal/service"
)

type (
	TranslateRequestDTO struct {
		ModelID string `json:"model_id,omitempty" doc:"Model to use, the default model when empty"`
		Text    string `json:"text"               doc:"Bengali text to translate"`
	}

	TranslateResponseDTO struct {
		Text     string                    `json:"text"`
		ModelID  string                    `json:"model_id"`
		Metadata *backend.ResponseMetadata `json:"metadata,omitempty"`
	}

	HealthDTO struct {
		Status string           `json:"status" enum:"ok,degraded"`
		Time   time.Time        `json:"time"`
		Models []model.Snapshot `json:"models"`
	}
)

type (
	TranslateInput struct {
		Body TranslateRequestDTO
	}

	TranslateOutput struct {
		Body TranslateResponseDTO
	}

	ModelsOutput struct {
		Body []model.Snapshot
	}

	ExamplesOutput struct {
		Body []config.Example
	}

	HealthOutput struct {
		Body HealthDTO
	}
)

// TranslateHandler handles the JSON translation API.
type TranslateHandler struct {
	service *service.Translator
}

// NewTranslateHandler registers the JSON operations on api.
func NewTranslateHandler(api huma.API, service *service.Translator) *TranslateHandler {
	h := &TranslateHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "translate",
		Method:        http.MethodPost,
		Path:          "/api/v1/translate",
		Summary:       "Translate Bengali text to English",
		Tags:          []string{"translate"},
		DefaultStatus: http.StatusOK,
	}, h.handleTranslate)

	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/api/v1/models",
		Summary:     "List registered models and their load status",
		Tags:        []string{"models"},
	}, h.handleModels)

	huma.Register(api, huma.Operation{
		OperationID: "list-examples",
		Method:      http.MethodGet,
		Path:        "/api/v1/examples",
		Summary:     "List example translations",
		Tags:        []string{"translate"},
	}, h.handleExamples)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report service health",
		Tags:        []string{"health"},
	}, h.handleHealth)

	return h
}

// handleTranslate handles the translate operation.
func (h *TranslateHandler) handleTranslate(ctx context.Context, input *TranslateInput) (*TranslateOutput, error) {
	result, err := h.service.Translate(ctx, input.Body.ModelID, input.Body.Text)
	if err != nil {
		return nil, humaError(err)
	}

	return &TranslateOutput{
		Body: TranslateResponseDTO{
			Text:     result.Text,
			ModelID:  result.ModelID,
			Metadata: result.Metadata,
		},
	}, nil
}

func (h *TranslateHandler) handleModels(_ context.Context, _ *struct{}) (*ModelsOutput, error) {
	return &ModelsOutput{Body: h.service.Models()}, nil
}

func (h *TranslateHandler) handleExamples(_ context.Context, _ *struct{}) (*ExamplesOutput, error) {
	return &ExamplesOutput{Body: h.service.Examples()}, nil
}

// handleHealth always answers 200; a model that failed to load is reported
// as degraded so the page keeps serving its error.
func (h *TranslateHandler) handleHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	status := "ok"
	if h.service.LoadError("") != nil {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthDTO{
			Status: status,
			Time:   time.Now().UTC(),
			Models: h.service.Models(),
		},
	}, nil
}

// humaError maps service errors to HTTP problem responses.
func humaError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyInput):
		return huma.Error400BadRequest(emptyInputMessage, err)
	case errors.Is(err, service.ErrInputTooLong), errors.Is(err, service.ErrInvalidUTF8):
		return huma.Error400BadRequest(err.Error(), err)
	case errors.Is(err, model.ErrNotFound):
		return huma.Error404NotFound("model not found", err)
	case errors.Is(err, service.ErrModelUnavailable), errors.Is(err, backend.ErrUnavailable):
		return huma.Error503ServiceUnavailable("model is not available", err)
	}

	return huma.Error500InternalServerError("failed to translate", err)
}
