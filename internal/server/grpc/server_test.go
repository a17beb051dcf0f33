package grpc

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ekisa-team/anubad/internal/backend"
	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/model"
	"github.com/ekisa-team/anubad/internal/service"
	"github.com/ekisa-team/anubad/internal/testutil"
)

func newTestTranslator(t *testing.T, withBundle bool) (*service.Translator, *testutil.MockBackend) {
	t.Helper()

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

func setupTestServer(t *testing.T, withBundle bool) (*Client, *grpc.ClientConn, *testutil.MockBackend) {
	t.Helper()

	svc, mb := newTestTranslator(t, withBundle)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, client.conn, mb
}

func TestTranslate(t *testing.T) {
	client, _, mb := setupTestServer(t, true)
	mb.On("Infer", mock.Anything, config.DefaultModelID, "আপনি কেমন আছেন?").Return("How are you?", nil).Once()

	out, err := client.Translate(context.Background(), "", "আপনি কেমন আছেন?")
	require.NoError(t, err)
	assert.Equal(t, "How are you?", out)
	mb.AssertExpectations(t)
}

func TestTranslate_StatusCodes(t *testing.T) {
	client, _, mb := setupTestServer(t, true)
	mb.On("Infer", mock.Anything, config.DefaultModelID, "টম").Return("", errors.New("boom")).Once()

	_, err := client.Translate(context.Background(), "", " ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Translate(context.Background(), "missing", "টম")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Translate(context.Background(), "", "টম")
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "translation error: boom")

	mb.AssertNumberOfCalls(t, "Infer", 1)
}

func TestTranslate_ModelFailedToLoad(t *testing.T) {
	client, conn, _ := setupTestServer(t, false)

	_, err := client.Translate(context.Background(), "", "টম")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHealth_Serving(t *testing.T) {
	_, conn, _ := setupTestServer(t, true)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestTranslate_HeaderFailureIsLogged(t *testing.T) {
	svc, mb := newTestTranslator(t, true)
	mb.On("Infer", mock.Anything, config.DefaultModelID, "টম").Return("Tom", nil).Once()

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	// Outside a gRPC call there is no stream to attach the header to.
	out, err := NewServer(svc).Translate(context.Background(), wrapperspb.String("টম"))
	require.NoError(t, err)
	assert.Equal(t, "Tom", out.GetValue())
	assert.Contains(t, buf.String(), "Failed to set response header")
}
