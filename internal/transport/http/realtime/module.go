// Package realtime mounts the websocket gateway on the HTTP server.
package realtime

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/harvest/internal/realtime"
)

// Module wires the websocket route.
var Module = fx.Invoke(Register)

// Register mounts the gateway at /ws.
func Register(e *echo.Echo, gateway *realtime.Gateway) {
	e.GET("/ws", gateway.Handle)
}
