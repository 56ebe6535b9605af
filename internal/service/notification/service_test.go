package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/harvest/internal/auth"
	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/database"
	"github.com/Additional-Code/harvest/internal/database/dbtest"
	"github.com/Additional-Code/harvest/internal/entity"
	"github.com/Additional-Code/harvest/internal/observability"
	"github.com/Additional-Code/harvest/internal/realtime"
	repo "github.com/Additional-Code/harvest/internal/repository/notification"
	"github.com/Additional-Code/harvest/pkg/errorbank"
)

type published struct {
	room  string
	event realtime.Event
}

type recordingBroker struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroker) Publish(_ context.Context, room string, event realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{room: room, event: event})
	return nil
}

func newService(t *testing.T) (*Service, *database.Connections, *recordingBroker, *observer.ObservedLogs) {
	t.Helper()
	conns := dbtest.Open(t)
	metrics, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	core, logs := observer.New(zapcore.InfoLevel)
	broker := &recordingBroker{}

	svc := NewService(Params{
		Repository: repo.NewRepository(conns),
		Broker:     broker,
		Metrics:    metrics,
		Config:     config.Config{Realtime: config.Realtime{PublishTimeout: time.Second}},
		Logger:     zap.New(core),
	})
	return svc, conns, broker, logs
}

func TestNotifyStoresAndPushesToUserRoom(t *testing.T) {
	svc, conns, broker, _ := newService(t)
	user := dbtest.User(t, conns, entity.RoleBuyer)

	row := svc.Notify(context.Background(), Notice{UserID: user.ID, Title: "Order Placed", Message: "hi", Link: "/order-tracking/1"})
	require.NotNil(t, row)
	assert.NotZero(t, row.ID)
	assert.Equal(t, CategoryOrder, row.Category)

	require.Len(t, broker.events, 1)
	assert.Equal(t, realtime.UserRoom(user.ID), broker.events[0].room)
	assert.Equal(t, realtime.EventNotification, broker.events[0].event.Name)
}

func TestNotifyDropsAfterRetry(t *testing.T) {
	svc, conns, broker, logs := newService(t)
	_, err := conns.Writer.NewDropTable().Model((*entity.Notification)(nil)).Exec(context.Background())
	require.NoError(t, err)

	row := svc.Notify(context.Background(), Notice{UserID: 1, Title: "x", Message: "y"})
	assert.Nil(t, row)
	assert.Empty(t, broker.events)
	assert.Equal(t, storeAttempts, logs.FilterMessage("notification insert failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("notification dropped").Len())
}

func TestInboxOperations(t *testing.T) {
	svc, conns, _, _ := newService(t)
	ctx := context.Background()
	owner := dbtest.User(t, conns, entity.RoleBuyer)
	other := dbtest.User(t, conns, entity.RoleBuyer)
	me := auth.Actor{UserID: owner.ID, Role: entity.RoleBuyer}
	stranger := auth.Actor{UserID: other.ID, Role: entity.RoleBuyer}
	admin := auth.Actor{UserID: 999, Role: entity.RoleAdmin}

	first := svc.Notify(ctx, Notice{UserID: owner.ID, Title: "one", Message: "1"})
	second := svc.Notify(ctx, Notice{UserID: owner.ID, Title: "two", Message: "2"})
	svc.Notify(ctx, Notice{UserID: owner.ID, Title: "three", Message: "3"})
	require.NotNil(t, first)
	require.NotNil(t, second)

	items, err := svc.List(ctx, me, owner.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = svc.List(ctx, stranger, owner.ID, 0, 0)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
	all, err := svc.List(ctx, admin, owner.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := svc.UnreadCount(ctx, me, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, svc.MarkRead(ctx, me, first.ID))
	err = svc.MarkRead(ctx, stranger, second.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	n, err = svc.UnreadCount(ctx, me, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.MarkAllRead(ctx, admin, owner.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindForbidden))
	updated, err := svc.MarkAllRead(ctx, me, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	require.NoError(t, svc.Delete(ctx, me, second.ID))
	err = svc.Delete(ctx, me, second.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	n, err = svc.UnreadCount(ctx, me, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
