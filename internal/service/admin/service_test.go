package admin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/entity"
	orderrepo "github.com/Additional-Code/harvest/internal/repository/order"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	userrepo "github.com/Additional-Code/harvest/internal/repository/user"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

func newService(conns *database.Connections, now time.Time) *Service {
	svc := NewService(Params{
		Users:    userrepo.NewRepository(conns),
		Products: productrepo.NewRepository(conns),
		Orders:   orderrepo.NewRepository(conns),
		Logger:   zap.NewNop(),
	})
	svc.now = func() time.Time { return now }
	return svc
}

func insertOrder(t *testing.T, conns *database.Connections, buyerID int64, amount string, status entity.OrderStatus, at time.Time) {
	t.Helper()
	n := at.UnixNano()
	o := &entity.Order{
		Number:          fmt.Sprintf("ORD-%d", n),
		BuyerID:         buyerID,
		Subtotal:        decimal.RequireFromString(amount),
		DeliveryCharge:  decimal.Zero,
		Discount:        decimal.Zero,
		FinalAmount:     decimal.RequireFromString(amount),
		Status:          status,
		PaymentMethod:   entity.PaymentCOD,
		DeliveryAddress: "4 Mill Road",
		TrackingID:      fmt.Sprintf("TRK-%d", n),
		Version:         1,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	_, err := conns.Writer.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
}

func TestMonthlyBucketsNewestFirst(t *testing.T) {
	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return ts
	}
	sales := []orderrepo.Sale{
		{FinalAmount: decimal.NewFromInt(100), CreatedAt: at("2026-08-03T10:00:00Z")},
		{FinalAmount: decimal.NewFromInt(50), CreatedAt: at("2026-08-30T23:00:00Z")},
		{FinalAmount: decimal.NewFromInt(20), CreatedAt: at("2026-09-01T00:30:00+05:30")},
		{FinalAmount: decimal.NewFromInt(70), CreatedAt: at("2026-10-02T08:00:00Z")},
	}

	got := monthly(sales)

	require.Len(t, got, 2)
	assert.Equal(t, "2026-10", got[0].Month)
	assert.Equal(t, 1, got[0].Orders)
	assert.Equal(t, "2026-08", got[1].Month, "months are bucketed in UTC")
	assert.Equal(t, 3, got[1].Orders)
	assert.True(t, decimal.NewFromInt(170).Equal(got[1].Revenue))
	assert.Empty(t, monthly(nil))
}

func TestStatsExcludesCancelledRevenue(t *testing.T) {
	conns := dbtest.Open(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	svc := newService(conns, now)

	admin := dbtest.User(t, conns, entity.RoleAdmin)
	buyer := dbtest.User(t, conns, entity.RoleBuyer)
	farmer := dbtest.User(t, conns, entity.RoleFarmer)
	dbtest.Product(t, conns, farmer.ID, "10", 3)

	insertOrder(t, conns, buyer.ID, "120.00", entity.StatusDelivered, now.AddDate(0, -1, 0))
	insertOrder(t, conns, buyer.ID, "80.00", entity.StatusPending, now.Add(-time.Hour))
	insertOrder(t, conns, buyer.ID, "500.00", entity.StatusCancelled, now.Add(-2*time.Hour))
	insertOrder(t, conns, buyer.ID, "40.00", entity.StatusDelivered, now.AddDate(-2, 0, 0))

	_, err := svc.Stats(context.Background(), auth.Actor{UserID: buyer.ID, Role: entity.RoleBuyer})
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	stats, err := svc.Stats(context.Background(), auth.Actor{UserID: admin.ID, Role: entity.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 4, stats.TotalOrders)
	assert.True(t, decimal.RequireFromString("240").Equal(stats.TotalRevenue), stats.TotalRevenue.String())
	assert.Equal(t, 1, stats.OrdersByStatus[entity.StatusCancelled])
	assert.Equal(t, 2, stats.OrdersByStatus[entity.StatusDelivered])
	assert.Len(t, stats.RecentOrders, 4)

	require.Len(t, stats.MonthlyRevenue, 2, "orders older than twelve months are left out")
	assert.Equal(t, "2026-10", stats.MonthlyRevenue[0].Month)
	assert.True(t, decimal.NewFromInt(80).Equal(stats.MonthlyRevenue[0].Revenue))
	assert.Equal(t, "2026-09", stats.MonthlyRevenue[1].Month)
}

func TestSetUserActive(t *testing.T) {
	conns := dbtest.Open(t)
	svc := newService(conns, time.Now().UTC())
	ctx := context.Background()

	admin := dbtest.User(t, conns, entity.RoleAdmin)
	farmer := dbtest.User(t, conns, entity.RoleFarmer)
	operator := auth.Actor{UserID: admin.ID, Role: entity.RoleAdmin}

	u, err := svc.SetUserActive(ctx, operator, farmer.ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	users, total, err := svc.Users(ctx, operator, UserQuery{Role: " FARMER "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.False(t, users[0].IsActive)

	_, err = svc.SetUserActive(ctx, operator, admin.ID, false)
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.SetUserActive(ctx, operator, 987654, true)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	_, err = svc.SetUserActive(ctx, auth.Actor{UserID: farmer.ID, Role: entity.RoleFarmer}, farmer.ID, true)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
}
