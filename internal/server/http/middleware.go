package http

import (
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/presentation/http/response"
)

// RequestLogger attaches a request-scoped logger and logs every completed request.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			reqLogger := logger.With(zap.String("request_id", reqID))
			c.Set(response.LoggerKey, reqLogger)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}
			if actor, ok := auth.ActorFrom(c); ok {
				fields = append(fields, zap.Int64("user_id", actor.UserID))
			}
			reqLogger.Info("http request", fields...)
			return nil
		}
	}
}
