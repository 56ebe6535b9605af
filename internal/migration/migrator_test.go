package migration

import (
	"context"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
)

func TestGooseDialect(t *testing.T) {
	cases := map[string]string{"pg": "postgres", "postgres": "postgres", "mysql": "mysql", "sqlite": "sqlite3"}
	for driver, want := range cases {
		got, err := gooseDialect(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, got)
	}

	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}

func TestEmbeddedScriptsAreVersioned(t *testing.T) {
	files, err := fs.Glob(migrations, "sql/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 5)

	seen := map[int64]bool{}
	for _, f := range files {
		v, err := goose.NumericComponent(f)
		require.NoError(t, err, f)
		assert.False(t, seen[v], "duplicate version %d", v)
		seen[v] = true
	}
}

func TestSQLiteUpAndDownUseModels(t *testing.T) {
	cfg := config.Config{Database: config.Database{
		Driver:    "sqlite",
		WriterDSN: "file:migrator_test?mode=memory&cache=shared",
		ReaderDSN: "file:migrator_test?mode=memory&cache=shared",
	}}
	conns, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	m, err := New(cfg, conns, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "second run is a no-op")

	var n int
	require.NoError(t, conns.Writer.NewRaw("SELECT COUNT(*) FROM orders").Scan(ctx, &n))
	assert.Zero(t, n)

	require.NoError(t, m.Down(ctx, 1, false))
	assert.Error(t, conns.Writer.NewRaw("SELECT COUNT(*) FROM orders").Scan(ctx, &n))
}
