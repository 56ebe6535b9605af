package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/entity"
	repo "github.com/Additional-Code/harvest/internal/repository/product"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

func ptr[T any](v T) *T { return &v }

func TestCreateAndUpdateOwnership(t *testing.T) {
	conns := dbtest.Open(t)
	svc := NewService(Params{Repository: repo.NewRepository(conns), Logger: zap.NewNop()})
	ctx := context.Background()

	farmer := dbtest.User(t, conns, entity.RoleFarmer)
	other := dbtest.User(t, conns, entity.RoleFarmer)
	buyer := dbtest.User(t, conns, entity.RoleBuyer)
	admin := dbtest.User(t, conns, entity.RoleAdmin)
	asFarmer := auth.Actor{UserID: farmer.ID, Role: entity.RoleFarmer}

	in := ProductInput{
		FarmerID: other.ID,
		Name:     ptr("Heirloom Tomatoes"),
		Price:    ptr(decimal.RequireFromString("80")),
		Quantity: ptr(25),
	}
	p, err := svc.Create(ctx, asFarmer, in)
	require.NoError(t, err)
	assert.Equal(t, farmer.ID, p.FarmerID, "farmers always list for themselves")
	assert.Equal(t, "kg", p.Unit)
	assert.True(t, p.IsActive)

	_, err = svc.Create(ctx, auth.Actor{UserID: buyer.ID, Role: entity.RoleBuyer}, in)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	_, err = svc.Create(ctx, auth.Actor{UserID: admin.ID, Role: entity.RoleAdmin}, ProductInput{Name: ptr("x"), Price: ptr(decimal.NewFromInt(1)), Quantity: ptr(1)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest), "admins must name the farmer")

	_, err = svc.Create(ctx, asFarmer, ProductInput{Name: ptr("x"), Price: ptr(decimal.Zero), Quantity: ptr(1)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Update(ctx, auth.Actor{UserID: other.ID, Role: entity.RoleFarmer}, p.ID, ProductInput{Quantity: ptr(1)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))

	updated, err := svc.Update(ctx, asFarmer, p.ID, ProductInput{Quantity: ptr(40), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Quantity)
	assert.Equal(t, "Heirloom Tomatoes", updated.Name)

	_, err = svc.Update(ctx, asFarmer, 9999, ProductInput{})
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestListHidesInactiveAndSearches(t *testing.T) {
	conns := dbtest.Open(t)
	svc := NewService(Params{Repository: repo.NewRepository(conns), Logger: zap.NewNop()})
	ctx := context.Background()
	farmer := dbtest.User(t, conns, entity.RoleFarmer)
	asFarmer := auth.Actor{UserID: farmer.ID, Role: entity.RoleFarmer}

	for _, name := range []string{"Red Apples", "Green Apples", "Carrots"} {
		_, err := svc.Create(ctx, asFarmer, ProductInput{Name: ptr(name), Price: ptr(decimal.NewFromInt(10)), Quantity: ptr(5)})
		require.NoError(t, err)
	}
	hidden, err := svc.Create(ctx, asFarmer, ProductInput{Name: ptr("Old Apples"), Price: ptr(decimal.NewFromInt(10)), Quantity: ptr(5), IsActive: ptr(false)})
	require.NoError(t, err)

	products, total, err := svc.List(ctx, Query{Search: "apples"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, p := range products {
		assert.NotEqual(t, hidden.ID, p.ID)
	}

	_, total, err = svc.List(ctx, Query{Search: "apples", IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	page, total, err := svc.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, total)
}
