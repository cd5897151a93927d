package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/suzukibelltree/SampleToDoApp/internal/flow"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
)

// Client represents a single websocket client connection.
// The network conn itself is managed by the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub keeps the clients subscribed to each topic together with the last
// message broadcast on it. A client registering on a topic first receives
// that message, so it always starts from the current state.
//
// Every message on a topic is a full state, so each client only ever needs
// the newest one. Sends run on a per-client goroutine outside the hub lock;
// a slow client skips intermediate messages and never holds up the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Client]*subscriber
	latest  map[string][]byte
	log     *logrus.Entry
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[string]map[Client]*subscriber),
		latest:  make(map[string][]byte),
		log:     logging.Component(log, "hub"),
	}
}

// Register adds a client under a topic and replays the topic's last message.
func (h *Hub) Register(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[Client]*subscriber)
	}
	if _, ok := h.clients[topic][client]; ok {
		return
	}
	sub := newSubscriber(client, h.log.WithField("topic", topic))
	h.clients[topic][client] = sub
	if msg, ok := h.latest[topic]; ok {
		sub.offer(msg)
	}
}

// Unregister removes a client; an empty topic keeps its last message.
func (h *Hub) Unregister(topic string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[topic]; ok {
		if sub, ok := clients[client]; ok {
			sub.stop()
			delete(clients, client)
		}
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Broadcast records message as the topic's latest and queues it for every
// client. It does not wait for the sends.
func (h *Hub) Broadcast(topic string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[topic] = message
	for _, sub := range h.clients[topic] {
		sub.offer(message)
	}
}

// Drop forgets a topic and closes its clients.
func (h *Hub) Drop(topic string) {
	h.mu.Lock()
	clients := h.clients[topic]
	delete(h.clients, topic)
	delete(h.latest, topic)
	for _, sub := range clients {
		sub.stop()
	}
	h.mu.Unlock()

	for c := range clients {
		c.Close()
	}
}

// Latest returns the last message broadcast on topic.
func (h *Hub) Latest(topic string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, ok := h.latest[topic]
	return msg, ok
}

func (h *Hub) Clients(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// subscriber delivers the newest pending message to one client.
type subscriber struct {
	client Client
	log    *logrus.Entry

	mu      sync.Mutex
	pending []byte
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newSubscriber(client Client, log *logrus.Entry) *subscriber {
	s := &subscriber{
		client: client,
		log:    log,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// offer replaces any message the client has not been sent yet.
func (s *subscriber) offer(message []byte) {
	s.mu.Lock()
	s.pending = message
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		msg := s.pending
		s.pending = nil
		s.mu.Unlock()
		if msg == nil {
			continue
		}
		if !s.client.Send(msg) {
			// the ws handler unregisters the client once its reader fails
			s.log.Debug("dropped message for slow or closed client")
		}
	}
}

// Publish broadcasts every value of src on topic, JSON-encoded after encode,
// until src ends or ctx is cancelled.
func Publish[T any](ctx context.Context, h *Hub, topic string, src flow.Flow[T], encode func(T) any) error {
	return src.Collect(ctx, func(v T) error {
		message, err := json.Marshal(encode(v))
		if err != nil {
			return err
		}
		h.Broadcast(topic, message)
		return nil
	})
}
