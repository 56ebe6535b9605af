package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/dto"
	"github.com/Additional-Code/harvest/internal/presentation/http/request"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
	service "github.com/Additional-Code/harvest/internal/service/account"
)

// Handler exposes registration and login over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an account Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler, issuer *auth.Issuer) {
	g := e.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.GET("/me", h.me, auth.Middleware(issuer))
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)

	var payload dto.RegisterRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	session, err := h.svc.Register(c.Request().Context(), service.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Phone:    payload.Phone,
		Address:  payload.Address,
		Role:     payload.Role,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(toSession(session)).Build()
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var payload dto.LoginRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	session, err := h.svc.Login(c.Request().Context(), payload.Email, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toSession(session)).Build()
}

func (h *Handler) me(c echo.Context) error {
	b := response.New(c)

	actor, err := request.Actor(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	u, err := h.svc.Profile(c.Request().Context(), actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromUser(u)).Build()
}

func toSession(s service.Session) dto.SessionResponse {
	return dto.SessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: dto.FromUser(s.User)}
}
