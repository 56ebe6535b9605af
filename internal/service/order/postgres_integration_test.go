//go:build integration

package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/migration"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

func postgresConnections(t *testing.T) *database.Connections {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "harvest",
				"POSTGRES_PASSWORD": "harvest",
				"POSTGRES_DB":       "harvest",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://harvest:harvest@%s:%s/harvest?sslmode=disable", host, port.Port())

	cfg := config.Config{Database: config.Database{
		Driver:       "postgres",
		WriterDSN:    dsn,
		ReaderDSN:    dsn,
		MaxOpenConns: 20,
		TxMaxRetries: 5,
	}}
	conns, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	m, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	return conns
}

func TestPostgresConcurrentCheckoutSellsLastUnitOnce(t *testing.T) {
	f := newFixtureOn(t, postgresConnections(t))
	farmer := dbtest.User(t, f.conns, entity.RoleFarmer)
	last := dbtest.Product(t, f.conns, farmer.ID, "120", 1)

	const buyers = 10
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes = make(chan int64, buyers)
		failures  = make(chan error, buyers)
	)
	for i := 0; i < buyers; i++ {
		buyer := dbtest.User(t, f.conns, entity.RoleBuyer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			order, err := f.svc.Place(context.Background(), actorOf(buyer), PlaceInput{
				Items:           []LineRequest{{ProductID: last.ID, Quantity: 1}},
				DeliveryAddress: "7 Mill Road",
			})
			if err != nil {
				failures <- err
				return
			}
			successes <- order.ID
		}()
	}
	close(start)
	wg.Wait()
	close(successes)
	close(failures)

	require.Len(t, successes, 1)
	for err := range failures {
		assert.True(t, errors.Is(err, productrepo.ErrInsufficientStock), "unexpected error: %v", err)
		var appErr *errorbank.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, []errorbank.Kind{errorbank.KindBadRequest, errorbank.KindConflict}, appErr.Kind())
	}
	assert.Equal(t, 0, dbtest.Reload(t, f.conns, last.ID).Quantity)

	orders, err := f.conns.Writer.NewSelect().Model((*entity.Order)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, orders)
}
