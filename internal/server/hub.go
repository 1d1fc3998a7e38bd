package server

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriberBuffer = 64

// Subscriber is one live viewer connection. Readings arrive on C in ingestion
// order; C is closed when the subscriber is removed from the hub.
type Subscriber struct {
	ID uuid.UUID
	C  chan Reading
}

// Hub tracks connected subscribers and fans ingested readings out to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[uuid.UUID]*Subscriber),
		logger:      logger,
	}
}

func (hub *Hub) Subscribe() *Subscriber {
	subscriber := &Subscriber{
		ID: uuid.New(),
		C:  make(chan Reading, subscriberBuffer),
	}

	hub.mu.Lock()
	hub.subscribers[subscriber.ID] = subscriber
	hub.mu.Unlock()

	return subscriber
}

// Unsubscribe removes a subscriber and closes its channel. Removing an
// already-removed subscriber is a no-op.
func (hub *Hub) Unsubscribe(id uuid.UUID) {
	hub.mu.Lock()
	if subscriber, exists := hub.subscribers[id]; exists {
		delete(hub.subscribers, id)
		close(subscriber.C)
	}
	hub.mu.Unlock()
}

func (hub *Hub) Count() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscribers)
}

// Broadcast delivers a reading to every open subscriber. Sends happen under
// the read lock so a channel can never be closed mid-send. A subscriber whose
// buffer is full has stopped draining: it is dropped so the rest keep
// receiving, and the channel close tells its transport to hang up.
func (hub *Hub) Broadcast(reading Reading) {
	var stalled []uuid.UUID

	hub.mu.RLock()
	for id, subscriber := range hub.subscribers {
		select {
		case subscriber.C <- reading:
		default:
			stalled = append(stalled, id)
		}
	}
	hub.mu.RUnlock()

	for _, id := range stalled {
		hub.logger.Warn("dropping stalled subscriber", zap.String("subscriber", id.String()))
		hub.Unsubscribe(id)
	}
}
