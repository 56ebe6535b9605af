package account

import (
	"bytes"
	"encoding/json"
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
	userrepo "github.com/Additional-Code/harvest/internal/repository/user"
	service "github.com/Additional-Code/harvest/internal/service/account"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	conns := dbtest.Open(t)
	issuer := auth.NewIssuer(config.Config{Auth: config.Auth{JWTSecret: "secret", Issuer: "harvest", TokenTTL: time.Hour}})
	svc := service.NewService(service.Params{Repository: userrepo.NewRepository(conns), Issuer: issuer, Logger: zap.NewNop()})

	e := echo.New()
	Register(e, NewHandler(svc), issuer)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func session(t *testing.T, rec *httptest.ResponseRecorder) dto.SessionResponse {
	t.Helper()
	var env struct {
		Data dto.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestRegisterLoginMe(t *testing.T) {
	e := newServer(t)
	reg := dto.RegisterRequest{Name: "Asha", Email: "asha@example.test", Password: "longenough", Role: "farmer"}

	rec := call(t, e, http.MethodPost, "/auth/register", "", reg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := session(t, rec)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "farmer", created.User.Role)

	rec = call(t, e, http.MethodPost, "/auth/register", "", reg)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, e, http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: reg.Email, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, e, http.MethodPost, "/auth/login", "", dto.LoginRequest{Email: reg.Email, Password: reg.Password})
	require.Equal(t, http.StatusOK, rec.Code)
	loggedIn := session(t, rec)

	rec = call(t, e, http.MethodGet, "/auth/me", loggedIn.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Data dto.UserResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, created.User.ID, me.Data.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = call(t, e, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	e := newServer(t)
	rec := call(t, e, http.MethodPost, "/auth/register", "", dto.RegisterRequest{
		Name: "Eve", Email: "eve@example.test", Password: "longenough", Role: "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
