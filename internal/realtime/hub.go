package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const defaultClientBuffer = 32

// Client is one connected subscriber. Frames are queued on a bounded buffer;
// a client that falls behind is disconnected.
type Client struct {
	send      chan []byte
	closeOnce sync.Once
	rooms     map[string]struct{}
}

// NewClient allocates a client with the given queue size.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Send exposes queued frames. It is closed once the client is removed.
func (c *Client) Send() <-chan []byte { return c.send }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks room membership for clients connected to this instance.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *zap.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{rooms: make(map[string]map[*Client]struct{}), logger: logger}
}

// Join adds c to room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Remove drops c from every room and closes its queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
	c.close()
}

// Members returns how many clients are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Deliver queues payload for every member of room and returns how many
// clients accepted it. Clients with a full queue are removed.
func (h *Hub) Deliver(room string, payload []byte) int {
	h.mu.RLock()
	var slow []*Client
	delivered := 0
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", zap.String("room", room))
		h.Remove(c)
	}
	return delivered
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
