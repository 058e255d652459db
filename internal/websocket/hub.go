package websocket

import (
	"context"
	"sync"
)

type requestKind int

const (
	requestRegister requestKind = iota
	requestUnregister
	requestSubscribe
	requestUnsubscribe
)

type hubRequest struct {
	kind    requestKind
	client  *Client
	channel string
}

// Hub fans venue feed messages out to connected managers. Channels are
// named after the Redis channel they mirror.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	channels map[string]map[*Client]struct{}

	// requests is a single queue so a client's operations apply in order.
	requests chan hubRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan hubRequest, 256),
	}
}

// Run serializes membership changes until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			switch req.kind {
			case requestRegister:
				h.addClient(req.client)
			case requestUnregister:
				h.removeClient(req.client)
			case requestSubscribe:
				h.join(req.client, req.channel)
			case requestUnsubscribe:
				h.leave(req.client, req.channel)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.requests <- hubRequest{kind: requestRegister, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.requests <- hubRequest{kind: requestUnregister, client: client}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.requests <- hubRequest{kind: requestSubscribe, client: client, channel: channel}
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.requests <- hubRequest{kind: requestUnsubscribe, client: client, channel: channel}
}

// Broadcast queues payload for every subscriber of channel. Slow clients drop
// messages instead of blocking the bridge.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// removeClient drops every subscription and closes Send exactly once.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.GetChannels() {
		h.dropLocked(client, channel)
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) join(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	subscribers, ok := h.channels[channel]
	if !ok {
		subscribers = make(map[*Client]struct{})
		h.channels[channel] = subscribers
	}
	subscribers[client] = struct{}{}
	client.Subscribe(channel)
}

func (h *Hub) leave(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client, channel)
	client.Unsubscribe(channel)
}

func (h *Hub) dropLocked(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
}
