package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/messaging"
)

type feedClient struct {
	messaging.NoopClient
	msgs []messaging.Message
}

func (f *feedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for _, m := range f.msgs {
		_ = handler(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func recorder(name string, seen *[]string) messaging.Handler {
	return func(context.Context, messaging.Message) error {
		*seen = append(*seen, name)
		return nil
	}
}

func TestDispatchPrefersEventTypeThenTopic(t *testing.T) {
	var seen []string
	e := NewEngine(Params{
		Client: messaging.NoopClient{},
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{Topic: "orders", EventType: "order.created", Handler: recorder("created", &seen)},
			{Topic: "orders", Handler: recorder("fallback", &seen)},
			{Topic: "", Handler: recorder("ignored", &seen)},
		},
	})
	ctx := context.Background()

	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "orders", Headers: map[string]string{messaging.HeaderEventType: "order.created"}}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "orders", Headers: map[string]string{messaging.HeaderEventType: "order.status_changed"}}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "orders"}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "payments"}))

	assert.Equal(t, []string{"created", "fallback", "fallback"}, seen)
}

func TestEngineLifecycle(t *testing.T) {
	handled := make(chan string, 2)
	client := &feedClient{msgs: []messaging.Message{{Topic: "orders", Value: []byte("a")}, {Topic: "orders", Value: []byte("b")}}}

	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 1

	e := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []HandlerRegistration{{Topic: "orders", Handler: func(_ context.Context, m messaging.Message) error {
			handled <- string(m.Value)
			return nil
		}}},
	})

	require.NoError(t, e.start(context.Background()))
	for _, want := range []string{"a", "b"} {
		select {
		case got := <-handled:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("message not handled")
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.stop(stopCtx))
}

func TestEngineDisabledDoesNotConsume(t *testing.T) {
	e := NewEngine(Params{Client: messaging.NoopClient{}, Logger: zap.NewNop()})
	require.NoError(t, e.start(context.Background()))
	assert.Nil(t, e.cancel)
	require.NoError(t, e.stop(context.Background()))
}
