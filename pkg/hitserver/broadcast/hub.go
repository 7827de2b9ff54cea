// Fan-out of accepted change events to live stream subscribers. Delivery is
// at-most-once per subscriber with a small bounded buffer and no publisher
// backpressure: a subscriber that has fallen behind misses events rather
// than slowing ingestion down.
package broadcast

import (
	"log"
	"sync"

	"github.com/function61/gokit/logex"
	"github.com/function61/hitsync/pkg/hittypes"
)

const subscriberBufferSize = 16

type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	log         *logex.Leveled
}

type Subscriber struct {
	C   chan hittypes.ChangeEvent
	hub *Hub
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		subscribers: map[*Subscriber]struct{}{},
		log:         logex.Levels(logex.NonNil(logger)),
	}
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		C:   make(chan hittypes.ChangeEvent, subscriberBufferSize),
		hub: h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub] = struct{}{}

	return sub
}

func (s *Subscriber) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if _, stillSubscribed := s.hub.subscribers[s]; stillSubscribed {
		delete(s.hub.subscribers, s)
		close(s.C)
	}
}

// one delivery attempt per live subscriber. never blocks: a full buffer
// means that subscriber misses this event.
func (h *Hub) Publish(event hittypes.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.C <- event:
		default:
			h.log.Error.Printf("subscriber buffer full; dropping event for record %d", event.CommitID)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}
