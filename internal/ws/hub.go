package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans progress payloads out to subscribers keyed by run ID.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	closeOnce sync.Once
}

type message struct {
	runID   string
	payload []byte
}

type subscription struct {
	runID  string
	client Subscriber
}

type countRequest struct {
	runID string
	reply chan int
}

// NewHub creates an initialized Hub. buffer bounds pending broadcasts;
// Broadcast drops payloads once it is full.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, buffer),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.runID]; !ok {
				h.clients[sub.runID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.runID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.runID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.runID)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.runID])
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.runID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.runID)
				}
			}
		}
	}
}

// Register adds a client to a run stream.
func (h *Hub) Register(runID string, client Subscriber) {
	select {
	case h.register <- subscription{runID: runID, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(runID string, client Subscriber) {
	select {
	case h.unreg <- subscription{runID: runID, client: client}:
	case <-h.done:
	}
}

// Broadcast queues payload for all run clients. It reports false when the
// payload was dropped because the hub is full or closed.
func (h *Hub) Broadcast(runID string, payload []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- message{runID: runID, payload: payload}:
		return true
	default:
		return false
	}
}

// Subscribers returns the number of clients following runID.
func (h *Hub) Subscribers(runID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{runID: runID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close stops the hub and closes every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
