package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestProbeFollowsDatabase(t *testing.T) {
	hs := NewHealth()
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, Probe(ctx, hs, pinger{}))
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, Probe(ctx, hs, pinger{err: errors.New("down")}))
	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHealthOverTheWire(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	hs := NewHealth()
	Probe(context.Background(), hs, pinger{})
	server := NewServer(zap.New(core), hs)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	entries := logs.FilterMessage("grpc unary call finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, healthpb.Health_Check_FullMethodName, entries[0].ContextMap()["method"])
}

func TestUnaryLoggerWarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	interceptor := UnaryLogger(zap.New(core))

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/harvest.Orders/Get"},
		func(context.Context, any) (any, error) { return nil, errors.New("boom") })
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}
