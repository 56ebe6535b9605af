package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

const actorContextKey = "auth.actor"

// Middleware requires a valid bearer token and stores the actor on the
// echo and request contexts.
func Middleware(issuer *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return response.New(c).WithError(errorbank.Unauthorized("missing bearer token")).Build()
			}

			actor, err := issuer.Parse(strings.TrimSpace(raw))
			if err != nil {
				return response.New(c).WithError(errorbank.Unauthorized("invalid or expired token", errorbank.WithCause(err))).Build()
			}

			c.Set(actorContextKey, actor)
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}

// RequireRole rejects actors whose role is not listed. It must run after Middleware.
func RequireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return response.New(c).WithError(errorbank.Unauthorized("authentication required")).Build()
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return response.New(c).WithError(errorbank.Forbidden("insufficient role", errorbank.WithDetail("role", actor.Role))).Build()
		}
	}
}

// ActorFrom returns the actor set by Middleware.
func ActorFrom(c echo.Context) (Actor, bool) {
	actor, ok := c.Get(actorContextKey).(Actor)
	return actor, ok
}
