package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/env"
	grpcserver "github.com/ekisa-team/anubad/internal/server/grpc"
	httpserver "github.com/ekisa-team/anubad/internal/server/http"
	"github.com/ekisa-team/anubad/internal/telemetry"
	"github.com/ekisa-team/anubad/internal/xfs"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the translation page, JSON API and gRPC service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("host", v.GetString("host"), "interface to listen on")
	f.Int("http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
	f.Int("grpc-port", config.DefaultGRPCPort(), "gRPC port to listen on, 0 disables gRPC")
	f.Float64("rate-limit", v.GetFloat64("rate_limit"), "translation requests per second, 0 disables the limit")
	f.Int("rate-burst", v.GetInt("rate_burst"), "translation request burst")
	f.Bool("watch", true, "reload the config file when it changes")

	bindFlags(f, map[string]string{
		"host":       "host",
		"http-port":  "server_http_port",
		"grpc-port":  "server_grpc_port",
		"rate-limit": "rate_limit",
		"rate-burst": "rate_burst",
		"watch":      "watch",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	cfg, err := config.LoadOrDefault(settings.ConfigPath, settings.SchemaPath)
	if err != nil {
		return err
	}
	slog.Info("Config loaded", "config", settings.ConfigPath, "models", len(cfg.Models))

	a, err := newApp(ctx, settings, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close backends", "error", err)
		}
	}()

	if env.Parse(settings.Env).IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	httpSrv := httpserver.NewServer(settings.HTTPAddr(), httpserver.NewRouter(a.translator, httpserver.Options{
		Version:   version,
		RateLimit: settings.RateLimit,
		RateBurst: settings.RateBurst,
	}))

	var grpcSrv *grpcserver.Server
	if settings.GRPCPort > 0 {
		grpcSrv = grpcserver.NewServer(a.translator)
	}

	if settings.Watch && xfs.NonEmptyFile(settings.ConfigPath) {
		watcher, err := config.NewWatcher(settings.ConfigPath, settings.SchemaPath, func(cfg *config.Config, err error) {
			if err != nil {
				return
			}
			a.reload(ctx, cfg)
			if grpcSrv != nil {
				grpcSrv.UpdateHealth()
			}
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Close()
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Serve() }()
	if grpcSrv != nil {
		go func() { errCh <- grpcSrv.ListenAndServe(settings.GRPCAddr()) }()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("Server failed", "error", serveErr)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.Stop(sctx)
	}
	if err := httpSrv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Failed to shut down HTTP server", "error", err)
	}

	return serveErr
}
