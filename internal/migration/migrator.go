package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

//go:embed sql/*.sql
var migrations embed.FS

const migrationsDir = "sql"

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// Migrator applies the schema. Postgres runs the versioned goose scripts;
// other drivers get tables derived from the models, which suits local
// SQLite databases.
type Migrator struct {
	db     *bun.DB
	driver string
	logger *zap.Logger
}

// New constructs a migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	if dialect == "postgres" {
		goose.SetBaseFS(migrations)
		if err := goose.SetDialect(dialect); err != nil {
			return nil, err
		}
	}

	return &Migrator{
		db:     conns.Writer,
		driver: dialect,
		logger: logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if m.driver != "postgres" {
		return m.createFromModels(ctx)
	}

	if err := goose.UpContext(ctx, m.db.DB, migrationsDir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")

			return nil
		}
		return err
	}

	m.logger.Info("migrations applied")

	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if m.driver != "postgres" {
		return m.dropModels(ctx)
	}

	if all {
		if err := goose.DownToContext(ctx, m.db.DB, migrationsDir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, migrationsDir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")

				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))

	return nil
}

func (m *Migrator) createFromModels(ctx context.Context) error {
	for _, model := range entity.Models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	m.logger.Info("schema created from models", zap.String("driver", m.driver), zap.Int("tables", len(entity.Models)))

	return nil
}

func (m *Migrator) dropModels(ctx context.Context) error {
	for i := len(entity.Models) - 1; i >= 0; i-- {
		if _, err := m.db.NewDropTable().Model(entity.Models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	m.logger.Info("schema dropped", zap.String("driver", m.driver))

	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
