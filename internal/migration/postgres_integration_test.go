//go:build integration

package migration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/seeder"
)

func startPostgres(t *testing.T) string {
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
	return fmt.Sprintf("postgres://harvest:harvest@%s:%s/harvest?sslmode=disable", host, port.Port())
}

func TestPostgresMigrationsMatchModels(t *testing.T) {
	dsn := startPostgres(t)
	cfg := config.Config{Database: config.Database{Driver: "postgres", WriterDSN: dsn, ReaderDSN: dsn, TxMaxRetries: 3}}
	conns, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	m, err := New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))

	// Seeding exercises every column the models write.
	require.NoError(t, seeder.New(conns, zap.NewNop()).Marketplace(ctx))

	var products []*entity.Product
	require.NoError(t, conns.Reader.NewSelect().Model(&products).Relation("Category").Scan(ctx))
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.NotNil(t, p.Category, p.Name)
	}

	require.NoError(t, m.Down(ctx, 0, true))
	exists, err := conns.Writer.NewSelect().Table("information_schema.tables").
		Where("table_name = ?", "orders").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}
