// Package service holds the translation use case shared by every transport.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
)

const tracerName = "github.com/ekisa-team/anubad/internal/service"

// Input errors. They are returned before any backend is invoked.
var (
	ErrEmptyInput   = errors.New("input text is empty")
	ErrInputTooLong = errors.New("input text is too long")
	ErrInvalidUTF8  = errors.New("input text is not valid UTF-8")
)

// ErrModelUnavailable is returned when the model exists but is not loaded.
var ErrModelUnavailable = errors.New("model is not available")

// InferenceError reports a failed backend call.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "translation error: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// RegistryProvider returns the current model registry. The registry is
// swapped on config reload, so callers must not hold on to it.
type RegistryProvider interface {
	Registry() *model.Registry
}

// Result is a completed translation.
type Result struct {
	Metadata *backend.ResponseMetadata
	Text     string
	ModelID  string
}

// Translator translates Bengali text to English through the registered
// model backends.
type Translator struct {
	backends *backend.Registry
	models   RegistryProvider
	tracer   trace.Tracer
}

// NewTranslator creates a new Translator.
func NewTranslator(backends *backend.Registry, models RegistryProvider) *Translator {
	return &Translator{
		backends: backends,
		models:   models,
		tracer:   otel.Tracer(tracerName),
	}
}

// Warm loads every registered model into its backend. Each model is loaded
// at most once; models that already failed or are loaded are skipped. The
// returned error joins every load failure.
func (t *Translator) Warm(ctx context.Context) error {
	return t.WarmRegistry(ctx, t.models.Registry())
}

// WarmRegistry loads the instances of registry, which need not be published
// yet. It has the shape of model.WarmFunc.
func (t *Translator) WarmRegistry(ctx context.Context, registry *model.Registry) error {
	ctx, span := t.tracer.Start(ctx, "translator.warm")
	defer span.End()

	var errs []error
	for _, instance := range registry.List() {
		if !instance.TryBeginLoad() {
			continue
		}

		if err := t.load(ctx, instance); err != nil {
			instance.SetError(err)
			errs = append(errs, fmt.Errorf("model %s: %w", instance.ID, err))
			slog.Error("Failed to load model", "model_id", instance.ID, "error", err)
			continue
		}

		instance.SetStatus(model.StatusLoaded)
		slog.Info("Model loaded", "model_id", instance.ID, "backend", instance.Config.Backend)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "warm failed")
	}
	return err
}

func (t *Translator) load(ctx context.Context, instance *model.Instance) error {
	b, ok := t.backends.Get(backend.BackendProvider(instance.Config.Backend))
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, instance.Config.Backend)
	}

	loader, ok := b.(backend.Loader)
	if !ok {
		return nil
	}

	return loader.Load(ctx, instance.ID, instance.Path, instance.Config.Parameters)
}

// Translate runs text through the model. An empty modelID selects the
// default model.
func (t *Translator) Translate(ctx context.Context, modelID, text string) (*Result, error) {
	registry := t.models.Registry()
	cfg := registry.Config()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}
	runes := utf8.RuneCountInString(text)
	if limit := cfg.Services.Translate.MaxInputRunes; limit > 0 && runes > limit {
		return nil, fmt.Errorf("%w: %d characters, limit is %d", ErrInputTooLong, runes, limit)
	}

	if modelID == "" {
		modelID = cfg.DefaultModel()
	}

	ctx, span := t.tracer.Start(ctx, "translator.translate", trace.WithAttributes(
		attribute.String("model.id", modelID),
		attribute.Int("input.runes", runes),
	))
	defer span.End()

	result, err := t.translate(ctx, registry, modelID, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translate failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("output.runes", utf8.RuneCountInString(result.Text)))
	return result, nil
}

func (t *Translator) translate(ctx context.Context, registry *model.Registry, modelID, text string) (*Result, error) {
	instance, ok := registry.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}

	if instance.Status() != model.StatusLoaded {
		if err := instance.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, modelID, err)
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrModelUnavailable, modelID, instance.Status())
	}

	b, ok := t.backends.Get(backend.BackendProvider(instance.Config.Backend))
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, instance.Config.Backend)
	}

	resp, err := b.Infer(ctx, &backend.Request{
		Input:      strings.NewReader(text),
		Parameters: instance.Config.Parameters,
		ModelID:    instance.ID,
		ModelPath:  instance.Path,
	})
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Output); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("failed to read model output: %w", err)}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return nil, &InferenceError{Err: backend.ErrEmptyOutput}
	}
	if !utf8.ValidString(out) {
		return nil, &InferenceError{Err: errors.New("model output is not valid UTF-8")}
	}

	return &Result{
		Text:     out,
		ModelID:  instance.ID,
		Metadata: resp.Metadata,
	}, nil
}

// LoadError reports why modelID cannot serve requests, or nil when it is
// loaded. An empty modelID selects the default model.
func (t *Translator) LoadError(modelID string) error {
	registry := t.models.Registry()
	if modelID == "" {
		modelID = registry.Config().DefaultModel()
	}

	instance, ok := registry.Get(modelID)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}

	switch instance.Status() {
	case model.StatusLoaded:
		return nil
	case model.StatusFailed:
		if err := instance.Err(); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s is %s", ErrModelUnavailable, modelID, instance.Status())
}

// Models returns the state of every registered model.
func (t *Translator) Models() []model.Snapshot {
	instances := t.models.Registry().List()

	out := make([]model.Snapshot, 0, len(instances))
	for _, instance := range instances {
		out = append(out, instance.Snapshot())
	}
	return out
}

// Examples returns the example phrase pairs shown to users.
func (t *Translator) Examples() []config.Example {
	if cfg := t.models.Registry().Config(); cfg != nil && len(cfg.UI.Examples) > 0 {
		return cfg.UI.Examples
	}
	return config.DefaultExamples()
}

// UI returns the page strings for the user interfaces.
func (t *Translator) UI() config.UIConfig {
	ui := t.models.Registry().Config().UI
	if len(ui.Examples) == 0 {
		ui.Examples = config.DefaultExamples()
	}
	return ui
}
