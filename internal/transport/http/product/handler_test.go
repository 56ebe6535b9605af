package product

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/entity"
	productrepo "github.com/Additional-Code/harvest/internal/repository/product"
	service "github.com/Additional-Code/harvest/internal/service/catalog"
)

type harness struct {
	t      *testing.T
	e      *echo.Echo
	conns  *database.Connections
	issuer *auth.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conns := dbtest.Open(t)
	issuer := auth.NewIssuer(config.Config{Auth: config.Auth{JWTSecret: "secret", Issuer: "harvest", TokenTTL: time.Hour}})
	svc := service.NewService(service.Params{Repository: productrepo.NewRepository(conns), Logger: zap.NewNop()})

	e := echo.New()
	Register(e, NewHandler(svc), issuer)
	return &harness{t: t, e: e, conns: conns, issuer: issuer}
}

func (h *harness) do(method, path string, as *entity.User, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if as != nil {
		token, _, err := h.issuer.Issue(auth.Actor{UserID: as.ID, Role: as.Role})
		require.NoError(h.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func ptr[T any](v T) *T { return &v }

func TestBrowseIsPublicAndHidesInactive(t *testing.T) {
	h := newHarness(t)
	farmer := dbtest.User(t, h.conns, entity.RoleFarmer)
	visible := dbtest.Product(t, h.conns, farmer.ID, "40", 5)
	hidden := dbtest.Product(t, h.conns, farmer.ID, "60", 5)
	_, err := h.conns.Writer.NewUpdate().Model((*entity.Product)(nil)).
		Set("is_active = ?", false).Where("id = ?", hidden.ID).Exec(context.Background())
	require.NoError(t, err)

	rec := h.do(http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := data[dto.ProductListResponse](t, rec)
	require.Len(t, page.Products, 1)
	assert.Equal(t, visible.ID, page.Products[0].ID)
	assert.Equal(t, 1, page.Total)

	rec = h.do(http.MethodGet, "/products?includeInactive=true", nil, nil)
	assert.Equal(t, 2, data[dto.ProductListResponse](t, rec).Total)

	rec = h.do(http.MethodGet, fmt.Sprintf("/products/%d", visible.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(40).Equal(data[dto.ProductResponse](t, rec).Price))

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/products/999999", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/products?limit=many", nil, nil).Code)
}

func TestFarmerListsAndEditsOwnProducts(t *testing.T) {
	h := newHarness(t)
	farmer := dbtest.User(t, h.conns, entity.RoleFarmer)
	rival := dbtest.User(t, h.conns, entity.RoleFarmer)
	buyer := dbtest.User(t, h.conns, entity.RoleBuyer)

	body := dto.ProductRequest{
		FarmerID: rival.ID,
		Name:     ptr("Heirloom tomatoes"),
		Price:    ptr(decimal.RequireFromString("85.5")),
		Quantity: ptr(12),
	}

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/products", nil, body).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/products", buyer, body).Code)

	rec := h.do(http.MethodPost, "/products", farmer, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := data[dto.ProductResponse](t, rec)
	assert.Equal(t, farmer.ID, created.FarmerID, "farmers always list for themselves")
	assert.Equal(t, "kg", created.Unit)

	path := fmt.Sprintf("/products/%d", created.ID)
	update := dto.ProductRequest{Price: ptr(decimal.NewFromInt(90))}
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, path, rival, update).Code)

	rec = h.do(http.MethodPut, path, farmer, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := data[dto.ProductResponse](t, rec)
	assert.True(t, decimal.NewFromInt(90).Equal(updated.Price))
	assert.Equal(t, "Heirloom tomatoes", updated.Name)

	rec = h.do(http.MethodPut, path, farmer, dto.ProductRequest{Price: ptr(decimal.Zero)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRemovesOrDeactivates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	farmer := dbtest.User(t, h.conns, entity.RoleFarmer)
	rival := dbtest.User(t, h.conns, entity.RoleFarmer)
	buyer := dbtest.User(t, h.conns, entity.RoleBuyer)
	unsold := dbtest.Product(t, h.conns, farmer.ID, "20", 5)
	sold := dbtest.Product(t, h.conns, farmer.ID, "35", 5)

	now := time.Now().UTC()
	order := &entity.Order{
		Number:          "ORD-DELETE-1",
		BuyerID:         buyer.ID,
		Subtotal:        decimal.NewFromInt(35),
		DeliveryCharge:  decimal.Zero,
		Discount:        decimal.Zero,
		FinalAmount:     decimal.NewFromInt(35),
		Status:          entity.StatusPending,
		PaymentMethod:   entity.PaymentCOD,
		DeliveryAddress: "12 Orchard Lane",
		TrackingID:      "TRK-DELETE-1",
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := h.conns.Writer.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)
	_, err = h.conns.Writer.NewInsert().Model(&entity.OrderItem{
		OrderID:    order.ID,
		ProductID:  sold.ID,
		FarmerID:   farmer.ID,
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(35),
		TotalPrice: decimal.NewFromInt(35),
		CreatedAt:  now,
	}).Exec(ctx)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, fmt.Sprintf("/products/%d", unsold.ID), rival, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, fmt.Sprintf("/products/%d", unsold.ID), buyer, nil).Code)

	rec := h.do(http.MethodDelete, fmt.Sprintf("/products/%d", unsold.ID), farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed := data[dto.ProductRemovedResponse](t, rec)
	assert.True(t, removed.Deleted)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, fmt.Sprintf("/products/%d", unsold.ID), farmer, nil).Code)

	rec = h.do(http.MethodDelete, fmt.Sprintf("/products/%d", sold.ID), farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	removed = data[dto.ProductRemovedResponse](t, rec)
	assert.False(t, removed.Deleted)
	assert.True(t, removed.Deactivated)
	assert.False(t, dbtest.Reload(t, h.conns, sold.ID).IsActive, "ordered products stay for order history")
}
