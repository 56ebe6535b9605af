package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRooms(t *testing.T) {
	h := NewHub(nil)
	a, b := NewClient(4), NewClient(4)

	h.Join(a, OrderRoom(1))
	h.Join(b, OrderRoom(1))
	h.Join(a, UserRoom(7))
	assert.Equal(t, 2, h.Members("order_1"))
	assert.Equal(t, 1, h.Members("user_7"))

	assert.Equal(t, 2, h.Deliver(OrderRoom(1), []byte("x")))
	assert.Equal(t, []byte("x"), <-a.Send())
	assert.Equal(t, []byte("x"), <-b.Send())

	h.Leave(b, OrderRoom(1))
	assert.Equal(t, 1, h.Deliver(OrderRoom(1), []byte("y")))
	assert.Equal(t, 0, h.Deliver(OrderRoom(2), []byte("z")))

	h.Remove(a)
	assert.Zero(t, h.Members(OrderRoom(1)))
	assert.Zero(t, h.Members(UserRoom(7)))
	<-a.Send()
	_, open := <-a.Send()
	assert.False(t, open, "queue is closed once removed")
}

func TestHubDropsSlowClients(t *testing.T) {
	h := NewHub(nil)
	slow := NewClient(1)
	h.Join(slow, OrderRoom(5))

	assert.Equal(t, 1, h.Deliver(OrderRoom(5), []byte("1")))
	assert.Equal(t, 0, h.Deliver(OrderRoom(5), []byte("2")))
	assert.Zero(t, h.Members(OrderRoom(5)))

	h.Remove(slow)
}

func TestLocalBrokerPublishesFrames(t *testing.T) {
	h := NewHub(nil)
	c := NewClient(2)
	h.Join(c, OrderRoom(3))

	b := NewLocalBroker(h)
	require.NoError(t, b.Publish(context.Background(), OrderRoom(3), Event{
		Name: EventOrderStatusChanged,
		Data: StatusChange{OrderID: 3, Status: "shipped"},
	}))

	var frame struct {
		Event string       `json:"event"`
		Data  StatusChange `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-c.Send(), &frame))
	assert.Equal(t, EventOrderStatusChanged, frame.Event)
	assert.Equal(t, int64(3), frame.Data.OrderID)
	assert.Equal(t, "shipped", frame.Data.Status)
}

func TestFlexibleID(t *testing.T) {
	for raw, want := range map[string]int64{`42`: 42, `"42"`: 42, `null`: 0, `""`: 0} {
		var id flexibleID
		require.NoError(t, json.Unmarshal([]byte(raw), &id), raw)
		assert.Equal(t, want, int64(id), raw)
	}

	var id flexibleID
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
}
