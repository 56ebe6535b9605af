//go:build integration

package realtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRedisBrokerFansOutAcrossInstances(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	newInstance := func() (*RedisBroker, *Hub) {
		client := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
		t.Cleanup(func() { _ = client.Close() })
		hub := NewHub(zap.NewNop())
		b := &RedisBroker{client: client, channel: "harvest.realtime", hub: hub, logger: zap.NewNop()}
		require.NoError(t, b.Start(ctx))
		t.Cleanup(func() { _ = b.Stop(ctx) })
		return b, hub
	}

	publisher, _ := newInstance()
	_, remoteHub := newInstance()

	c := NewClient(4)
	remoteHub.Join(c, OrderRoom(8))

	require.NoError(t, publisher.Publish(ctx, OrderRoom(8), Event{Name: EventOrderStatusChanged, Data: StatusChange{OrderID: 8, Status: "shipped"}}))

	select {
	case frame := <-c.Send():
		assert.Contains(t, string(frame), `"orderStatusChanged"`)
	case <-time.After(5 * time.Second):
		t.Fatal("event did not cross instances")
	}
}
