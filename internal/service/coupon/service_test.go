package coupon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/entity"
	repo "github.com/Additional-Code/harvest/internal/repository/coupon"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *database.Connections) {
	t.Helper()
	conns := dbtest.Open(t)
	return NewService(Params{Repository: repo.NewRepository(conns), Logger: zap.NewNop()}), conns
}

func usedCount(t *testing.T, conns *database.Connections, id int64) int {
	t.Helper()
	var c entity.Coupon
	require.NoError(t, conns.Writer.NewSelect().Model(&c).Where("id = ?", id).Scan(context.Background()))
	return c.UsedCount
}

func TestRedeemAppliesAndConsumesOneUse(t *testing.T) {
	svc, conns := newTestService(t)
	c := dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "FRESH10", DiscountType: entity.DiscountPercentage, DiscountValue: d("10"), IsActive: true,
	})

	red, err := svc.Redeem(context.Background(), conns.Writer, "fresh10", d("400"), time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, red.Applied())
	assert.True(t, red.Discount.Equal(d("40")))
	assert.Equal(t, 1, usedCount(t, conns, c.ID))
}

func TestRedeemInapplicableCouponsYieldZero(t *testing.T) {
	svc, conns := newTestService(t)
	now := time.Now().UTC()
	limit := 1

	dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "EXPIRED", DiscountType: entity.DiscountFixed, DiscountValue: d("20"), IsActive: true,
		ValidFrom: now.Add(-48 * time.Hour), ValidTo: now.Add(-24 * time.Hour),
	})
	dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "OFF", DiscountType: entity.DiscountFixed, DiscountValue: d("20"), IsActive: false,
	})
	dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "USEDUP", DiscountType: entity.DiscountFixed, DiscountValue: d("20"), IsActive: true,
		UsageLimit: &limit, UsedCount: 1,
	})
	minimum := dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "BIGSPEND", DiscountType: entity.DiscountFixed, DiscountValue: d("20"), IsActive: true,
		MinOrderAmount: d("1000"),
	})

	for _, code := range []string{"", "MISSING", "EXPIRED", "OFF", "USEDUP", "BIGSPEND"} {
		red, err := svc.Redeem(context.Background(), conns.Writer, code, d("300"), now)
		require.NoError(t, err, code)
		assert.False(t, red.Applied(), code)
		assert.True(t, red.Discount.IsZero(), code)
	}
	assert.Equal(t, 0, usedCount(t, conns, minimum.ID), "a below-minimum order must not consume a use")
}

func TestRedeemConcurrentSingleUse(t *testing.T) {
	svc, conns := newTestService(t)
	limit := 1
	c := dbtest.Coupon(t, conns, &entity.Coupon{
		Code: "ONCE", DiscountType: entity.DiscountFixed, DiscountValue: d("25"), IsActive: true, UsageLimit: &limit,
	})

	const attempts = 2
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make(chan decimal.Decimal, attempts)
		errs    = make(chan error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := conns.RunInTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
				red, err := svc.Redeem(ctx, tx, "ONCE", d("100"), time.Now().UTC())
				if err != nil {
					return err
				}
				results <- red.Discount
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(results)
	close(errs)

	applied := 0
	for discount := range results {
		if discount.IsPositive() {
			applied++
		}
	}
	for err := range errs {
		assert.True(t, errorbank.IsKind(err, errorbank.KindConflict), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, usedCount(t, conns, c.ID))
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now().UTC()

	_, err := svc.Create(context.Background(), CreateInput{Code: "X", DiscountType: entity.DiscountPercentage, DiscountValue: d("150"), ValidTo: now.Add(time.Hour)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Create(context.Background(), CreateInput{Code: "X", DiscountType: entity.DiscountFixed, DiscountValue: d("10"), ValidFrom: now, ValidTo: now.Add(-time.Hour)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	created, err := svc.Create(context.Background(), CreateInput{Code: "new5", DiscountType: entity.DiscountFixed, DiscountValue: d("5"), ValidTo: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "NEW5", created.Code)
	assert.True(t, created.IsActive)

	_, err = svc.Create(context.Background(), CreateInput{Code: "NEW5", DiscountType: entity.DiscountFixed, DiscountValue: d("5"), ValidTo: now.Add(time.Hour)})
	assert.True(t, errorbank.IsKind(err, errorbank.KindConflict))

	toggled, err := svc.SetActive(context.Background(), created.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
}
