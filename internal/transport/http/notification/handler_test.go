package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/observability"
	repo "github.com/Additional-Code/harvest/internal/repository/notification"
	service "github.com/Additional-Code/harvest/internal/service/notification"
)

func TestInboxOverHTTP(t *testing.T) {
	conns := dbtest.Open(t)
	metrics, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	cfg := config.Config{
		Auth:     config.Auth{JWTSecret: "secret", Issuer: "harvest", TokenTTL: time.Hour},
		Realtime: config.Realtime{PublishTimeout: time.Second},
	}
	svc := service.NewService(service.Params{
		Repository: repo.NewRepository(conns),
		Metrics:    metrics,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	issuer := auth.NewIssuer(cfg)
	e := echo.New()
	Register(e, NewHandler(svc), issuer)

	owner := dbtest.User(t, conns, entity.RoleBuyer)
	other := dbtest.User(t, conns, entity.RoleBuyer)
	admin := dbtest.User(t, conns, entity.RoleAdmin)

	ctx := context.Background()
	first := svc.Notify(ctx, service.Notice{UserID: owner.ID, Title: "Order Placed", Message: "#1 placed"})
	require.NotNil(t, first)
	second := svc.Notify(ctx, service.Notice{UserID: owner.ID, Title: "Order Status Updated", Message: "#1 confirmed"})
	require.NotNil(t, second)

	do := func(method, path string, as *entity.User) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(method, path, nil)
		if as != nil {
			token, _, err := issuer.Issue(auth.Actor{UserID: as.ID, Role: as.Role})
			require.NoError(t, err)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	unread := func(as *entity.User) int {
		t.Helper()
		rec := do(http.MethodGet, fmt.Sprintf("/notifications/user/%d/unread-count", owner.ID), as)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var env struct {
			Data dto.UnreadCountResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return env.Data.Count
	}

	inbox := fmt.Sprintf("/notifications/user/%d", owner.ID)
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, inbox, nil).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, inbox, other).Code)

	rec := do(http.MethodGet, inbox, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listed struct {
		Data []dto.NotificationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 2)
	assert.Equal(t, second.ID, listed.Data[0].ID, "newest first")

	assert.Equal(t, http.StatusOK, do(http.MethodGet, inbox, admin).Code)
	assert.Equal(t, 2, unread(owner))
	assert.Equal(t, 2, unread(admin))

	firstPath := fmt.Sprintf("/notifications/%d", first.ID)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPut, firstPath+"/read", other).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, firstPath, other).Code)
	assert.Equal(t, 2, unread(owner))

	assert.Equal(t, http.StatusOK, do(http.MethodPut, firstPath+"/read", owner).Code)
	assert.Equal(t, 1, unread(owner))

	readAll := fmt.Sprintf("/notifications/user/%d/read-all", owner.ID)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPut, readAll, admin).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPut, readAll, owner).Code)
	assert.Equal(t, 0, unread(owner))

	assert.Equal(t, http.StatusOK, do(http.MethodDelete, firstPath, owner).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, firstPath, owner).Code)
}
