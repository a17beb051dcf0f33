package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/backend/command"
	"github.com/ekisa-team/anubad/internal/backend/openai"
	"github.com/ekisa-team/anubad/internal/backend/tfserving"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
	"github.com/ekisa-team/anubad/internal/service"
)

// app wires the model manager, the backends and the translator.
type app struct {
	manager    *model.Manager
	backends   *backend.Registry
	servers    *backend.ServerManager
	translator *service.Translator
}

// newApp resolves and loads every configured model. Load failures are
// logged and kept on the model instances; they never abort startup.
func newApp(ctx context.Context, s *config.Settings, cfg *config.Config) (*app, error) {
	var opts []model.ManagerOption
	if s.ModelsPath != "" {
		opts = append(opts, model.WithModelsPath(s.ModelsPath))
	}

	a := &app{
		manager: model.NewManager(opts...),
		servers: backend.NewServerManager(),
	}

	backends, err := newBackendRegistry(cfg, a.servers)
	if err != nil {
		return nil, err
	}
	a.backends = backends
	a.translator = service.NewTranslator(backends, a.manager)

	a.reload(ctx, cfg)

	return a, nil
}

// reload loads the models of cfg and swaps them in once they are warm.
// Requests keep using the previous models meanwhile.
func (a *app) reload(ctx context.Context, cfg *config.Config) {
	if err := a.manager.Reload(ctx, cfg, a.translator.WarmRegistry); err != nil {
		slog.Error("Failed to load models from config", "error", err)
	}
}

func (a *app) Close() error {
	err := a.backends.Close()
	a.servers.StopAll()
	return err
}

// newBackendRegistry registers every backend that can run with cfg, each
// behind a circuit breaker.
func newBackendRegistry(cfg *config.Config, servers *backend.ServerManager) (*backend.Registry, error) {
	registry := backend.NewRegistry()
	breakerSettings := backend.DefaultBreakerSettings()

	backends := []backend.Backend{
		tfserving.NewBackend(cfg.Backends.TFServing, servers),
	}

	if cfg.Backends.Command.BinPath != "" {
		b, err := command.NewBackend(cfg.Backends.Command)
		if err != nil {
			slog.Warn("Command backend disabled", "error", err)
		} else {
			backends = append(backends, b)
		}
	}

	if b, err := openai.NewBackend(cfg.Backends.OpenAI); err != nil {
		slog.Debug("OpenAI backend disabled", "error", err)
	} else {
		backends = append(backends, b)
	}

	var errs []error
	for _, b := range backends {
		if err := registry.Register(backend.NewBreaker(b, breakerSettings)); err != nil {
			errs = append(errs, err)
		}
	}

	return registry, errors.Join(errs...)
}
