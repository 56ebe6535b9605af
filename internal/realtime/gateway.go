package realtime

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/config"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client commands.
const (
	CommandTrackOrder   = "trackOrder"
	CommandUntrackOrder = "untrackOrder"
)

// Gateway upgrades HTTP requests to websocket subscribers of the hub.
type Gateway struct {
	hub      *Hub
	issuer   *auth.Issuer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewGateway builds a Gateway honouring the configured allowed origins.
func NewGateway(cfg config.Config, hub *Hub, issuer *auth.Issuer, logger *zap.Logger) *Gateway {
	allowed := make(map[string]struct{}, len(cfg.Realtime.AllowedOrigins))
	anyOrigin := false
	for _, o := range cfg.Realtime.AllowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return &Gateway{
		hub:    hub,
		issuer: issuer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if anyOrigin || origin == "" {
					return true
				}
				_, ok := allowed[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

// Handle serves GET /ws. A valid token query parameter joins the caller's
// private room so notifications reach them.
func (g *Gateway) Handle(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := NewClient(defaultClientBuffer)
	if token := c.QueryParam("token"); token != "" && g.issuer != nil {
		if actor, err := g.issuer.Parse(token); err == nil {
			g.hub.Join(client, UserRoom(actor.UserID))
		}
	}

	go g.writePump(conn, client)
	g.readPump(conn, client)
	return nil
}

type command struct {
	Event   string     `json:"event"`
	OrderID flexibleID `json:"orderId"`
}

// flexibleID accepts both 42 and "42".
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexibleID(n)
	return nil
}

func (g *Gateway) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		g.hub.Remove(client)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.OrderID <= 0 {
			continue
		}

		room := OrderRoom(int64(cmd.OrderID))
		switch cmd.Event {
		case CommandTrackOrder:
			g.hub.Join(client, room)
		case CommandUntrackOrder:
			g.hub.Leave(client, room)
		}
	}
}

func (g *Gateway) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
