package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/config/source"
	"github.com/ekisa-team/anubad/internal/envvar"
	"github.com/ekisa-team/anubad/internal/xfs"
)

// DownloaderFactory returns the downloader for a source type.
type DownloaderFactory func(ctx context.Context, sourceType config.SourceType) (source.Downloader, error)

// BundleCheck validates a resolved model directory.
type BundleCheck func(cfg *config.ModelConfig, path string) error

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDownloaderFactory overrides how model sources are resolved.
func WithDownloaderFactory(f DownloaderFactory) ManagerOption {
	return func(m *Manager) {
		m.downloaders = f
	}
}

// WithBundleCheck overrides bundle validation.
func WithBundleCheck(check BundleCheck) ManagerOption {
	return func(m *Manager) {
		m.check = check
	}
}

// WithModelsPath forces the models directory, ignoring config and env.
func WithModelsPath(path string) ManagerOption {
	return func(m *Manager) {
		m.modelsPath = path
	}
}

// DefaultBundleCheck validates saved model bundles for the backends that
// execute them and accepts anything for remote backends.
func DefaultBundleCheck(cfg *config.ModelConfig, path string) error {
	if !cfg.RequiresBundle() {
		return nil
	}
	return ValidateBundle(path)
}

// Manager orchestrates model lifecycle.
type Manager struct {
	registry    *Registry
	downloaders DownloaderFactory
	check       BundleCheck
	modelsPath  string
	mu          sync.RWMutex
	reloadMu    sync.Mutex
}

// NewManager creates a new Manager instance.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:    NewRegistry(config.Default()),
		downloaders: source.GetDownloader,
		check:       DefaultBundleCheck,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// WarmFunc loads the instances of a registry before it is published.
type WarmFunc func(ctx context.Context, registry *Registry) error

// LoadModelsFromConfig resolves every model assigned to the translate
// service and swaps in a fresh registry. Models whose source or bundle is
// unusable are registered as failed instead of aborting the load; the
// returned error joins every such failure.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	return m.Reload(ctx, cfg, nil)
}

// Reload builds a registry from cfg, runs warm on it and only then
// publishes it, so readers keep the previous registry until the new models
// are ready.
func (m *Manager) Reload(ctx context.Context, cfg *config.Config, warm WarmFunc) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	registry, err := m.build(ctx, cfg)
	if registry == nil {
		return err
	}

	if warm != nil {
		if werr := warm(ctx, registry); werr != nil {
			err = errors.Join(err, werr)
		}
	}

	m.mu.Lock()
	m.registry = registry
	m.mu.Unlock()

	return err
}

func (m *Manager) build(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry(cfg)

	modelsPath := m.resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return nil, fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	var failures []error
	for _, modelID := range cfg.Services.Translate.Models {
		modelConfig, ok := cfg.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		instance, err := m.resolve(ctx, modelID, &modelConfig, modelsPath)
		registry.Set(instance)
		if err != nil {
			instance.SetError(err)
			failures = append(failures, fmt.Errorf("model %s: %w", modelID, err))
			slog.Error("Model failed to resolve", "model_id", modelID, "error", err)
			continue
		}

		slog.Info("Model registered", "model_id", modelID, "path", instance.Path, "backend", modelConfig.Backend)
	}

	return registry, errors.Join(failures...)
}

func (m *Manager) resolve(ctx context.Context, modelID string, modelConfig *config.ModelConfig, modelsPath string) (*Instance, error) {
	instance := NewInstance(modelConfig, modelID, "")

	modelSource, err := modelConfig.GetSource()
	if err != nil {
		return instance, fmt.Errorf("failed to get model source: %w", err)
	}

	downloader, err := m.downloaders(ctx, modelSource.Type())
	if err != nil {
		return instance, fmt.Errorf("failed to get downloader: %w", err)
	}

	path, _, err := downloader.Download(ctx, modelConfig, modelsPath)
	if err != nil {
		return instance, fmt.Errorf("failed to download into %s: %w", modelsPath, err)
	}
	instance.Path = path

	if err := m.check(modelConfig, path); err != nil {
		return instance, err
	}

	return instance, nil
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. Explicit WithModelsPath option.
// 2. ANUBAD_MODELS_PATH environment variable.
// 3. ModelsDir field in the config.
// 4. Default models path.
func (m *Manager) resolveModelsPath(cfg *config.Config) string {
	if m.modelsPath != "" {
		return xfs.ExpandTilde(m.modelsPath)
	}
	if p := os.Getenv(envvar.AnubadModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
