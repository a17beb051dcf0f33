// Package grpc exposes the translator as a gRPC service built on the
// protobuf well-known wrapper types, so no generated code is needed.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/model"
	"github.com/ekisa-team/anubad/internal/service"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "anubad.v1.Translator"

	// TranslateMethod is the full method name of Translate.
	TranslateMethod = "/" + ServiceName + "/Translate"

	// ModelIDKey selects a model through request metadata.
	ModelIDKey = "x-model-id"
)

// TranslatorServer is the server API for the Translator service.
type TranslatorServer interface {
	Translate(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

var translatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Translate",
			Handler:    translateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "anubad/v1/translator.proto",
}

func translateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranslatorServer).Translate(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TranslateMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TranslatorServer).Translate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Server serves the Translator and health services.
type Server struct {
	service *service.Translator
	grpc    *grpc.Server
	health  *health.Server
}

// NewServer creates a gRPC server for svc.
func NewServer(svc *service.Translator) *Server {
	s := &Server{
		service: svc,
		grpc:    grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary)),
		health:  health.NewServer(),
	}

	s.grpc.RegisterService(&translatorServiceDesc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.UpdateHealth()

	return s
}

// Translate implements TranslatorServer.
func (s *Server) Translate(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	var modelID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ModelIDKey); len(v) > 0 {
			modelID = v[0]
		}
	}

	result, err := s.service.Translate(ctx, modelID, in.GetValue())
	if err != nil {
		return nil, statusError(err)
	}

	if err := grpc.SetHeader(ctx, metadata.Pairs(ModelIDKey, result.ModelID)); err != nil {
		slog.Debug("Failed to set response header", "model_id", result.ModelID, "error", err)
	}
	return wrapperspb.String(result.Text), nil
}

// UpdateHealth reports SERVING while the default model is loaded.
func (s *Server) UpdateHealth() {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.service.LoadError(""); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop gracefully stops the server, forcing it after ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

func statusError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyInput),
		errors.Is(err, service.ErrInputTooLong),
		errors.Is(err, service.ErrInvalidUTF8):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrModelUnavailable), errors.Is(err, backend.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	level := slog.LevelInfo
	if status.Code(err) == codes.Internal {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "gRPC request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)

	return resp, err
}
