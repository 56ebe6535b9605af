// Package request extracts common inputs from echo requests.
package request

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

// ID parses a positive integer path parameter.
func ID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return id, nil
}

// Int parses an optional integer query parameter.
func Int(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return v, nil
}

// Int64 parses an optional int64 query parameter.
func Int64(c echo.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
	}
	return v, nil
}

// Time parses an optional RFC 3339 or YYYY-MM-DD query parameter as UTC.
func Time(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, raw))
}

// Actor returns the authenticated caller or an unauthorized error.
func Actor(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		return auth.Actor{}, errorbank.Unauthorized("authentication required")
	}
	return actor, nil
}

// Bind decodes the request body into v.
func Bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return nil
}
