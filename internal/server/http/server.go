// Package http serves the browser page and the JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humagin"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ekisa-team/anubad/internal/service"
)

// Options configures the HTTP server.
type Options struct {
	Version   string
	RateLimit float64
	RateBurst int
}

// NewRouter builds the gin engine with the page, the JSON API and the
// middleware chain.
func NewRouter(svc *service.Translator, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger())

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	router.Use(rateLimit(limiter))

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	api := humagin.New(router, huma.DefaultConfig("anubad", version))
	NewTranslateHandler(api, svc)
	NewUIHandler(router, svc)

	return router
}

// Server wraps an http.Server around the router.
type Server struct {
	srv *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve listens on the configured address until Shutdown is called.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	slog.Info("HTTP server listening", "addr", ln.Addr().String())

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
