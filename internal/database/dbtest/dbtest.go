// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/entity"
)

var seq atomic.Int64

// Open returns connections to a fresh in-memory database with every table created.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    dsn,
		ReaderDSN:    dsn,
		TxMaxRetries: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	for _, model := range entity.Models {
		_, err := conns.Writer.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return conns
}

// User inserts an active user with role.
func User(t testing.TB, conns *database.Connections, role entity.Role) *entity.User {
	t.Helper()

	n := seq.Add(1)
	now := time.Now().UTC()
	u := &entity.User{
		Name:         fmt.Sprintf("%s %d", role, n),
		Email:        fmt.Sprintf("%s%d@example.test", role, n),
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := conns.Writer.NewInsert().Model(u).Exec(context.Background())
	require.NoError(t, err)
	return u
}

// Product inserts an active product owned by farmerID.
func Product(t testing.TB, conns *database.Connections, farmerID int64, price string, quantity int) *entity.Product {
	t.Helper()

	now := time.Now().UTC()
	p := &entity.Product{
		FarmerID:  farmerID,
		Name:      fmt.Sprintf("produce %d", seq.Add(1)),
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		Unit:      "kg",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := conns.Writer.NewInsert().Model(p).Exec(context.Background())
	require.NoError(t, err)
	return p
}

// Coupon inserts c after filling a validity window around now when unset.
func Coupon(t testing.TB, conns *database.Connections, c *entity.Coupon) *entity.Coupon {
	t.Helper()

	now := time.Now().UTC()
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now.Add(-24 * time.Hour)
	}
	if c.ValidTo.IsZero() {
		c.ValidTo = now.Add(24 * time.Hour)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := conns.Writer.NewInsert().Model(c).Exec(context.Background())
	require.NoError(t, err)
	return c
}

// Reload reads the current state of a product.
func Reload(t testing.TB, conns *database.Connections, id int64) *entity.Product {
	t.Helper()

	p := new(entity.Product)
	require.NoError(t, conns.Writer.NewSelect().Model(p).Where("id = ?", id).Scan(context.Background()))
	return p
}
