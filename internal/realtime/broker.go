package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
)

// Module provides the hub, the configured broker and the websocket gateway.
var Module = fx.Options(
	fx.Provide(NewHub, NewBroker, NewGateway),
)

// BrokerParams collects broker dependencies.
type BrokerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Hub       *Hub
	Redis     *goredis.Client
	Logger    *zap.Logger
}

// NewBroker selects the local or redis broker.
func NewBroker(p BrokerParams) (Broker, error) {
	switch p.Config.Realtime.Driver {
	case "local":
		return NewLocalBroker(p.Hub), nil
	case "redis":
		b := &RedisBroker{client: p.Redis, channel: p.Config.Realtime.Channel, hub: p.Hub, logger: p.Logger}
		p.Lifecycle.Append(fx.Hook{
			OnStart: b.Start,
			OnStop:  b.Stop,
		})
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported realtime driver: %s", p.Config.Realtime.Driver)
	}
}

// LocalBroker delivers straight to the in-process hub.
type LocalBroker struct {
	hub *Hub
}

// NewLocalBroker wraps hub.
func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

// Publish encodes event and delivers it to room members on this instance.
func (b *LocalBroker) Publish(_ context.Context, room string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	b.hub.Deliver(room, payload)
	return nil
}

type envelope struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroker publishes events on a redis channel that every instance
// subscribes to, so clients connected anywhere receive them.
type RedisBroker struct {
	client  *goredis.Client
	channel string
	hub     *Hub
	logger  *zap.Logger

	sub  *goredis.PubSub
	done chan struct{}
}

// Publish sends event for room through redis.
func (b *RedisBroker) Publish(ctx context.Context, room string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	msg, err := json.Marshal(envelope{Room: room, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode realtime envelope: %w", err)
	}
	return b.client.Publish(ctx, b.channel, msg).Err()
}

// Start subscribes to the channel and relays messages into the local hub.
func (b *RedisBroker) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.sub = sub
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		for msg := range sub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discarding malformed realtime message", zap.Error(err))
				continue
			}
			b.hub.Deliver(env.Room, env.Payload)
		}
	}()

	b.logger.Info("realtime redis broker subscribed", zap.String("channel", b.channel))
	return nil
}

// Stop closes the subscription and waits for the relay to exit.
func (b *RedisBroker) Stop(ctx context.Context) error {
	if b.sub == nil {
		return nil
	}
	err := b.sub.Close()
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
