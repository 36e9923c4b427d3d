package notify

import "sync"

// Hub fans job event payloads out to in-process subscribers by topic
// (one topic per owner). Subscriber channels are owned by the caller; the
// hub only ever sends on them and drops messages for slow readers.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan []byte]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan []byte]bool)}
}

// Subscribe registers ch for the topic. Callers should pass a buffered
// channel and must Unsubscribe before closing it.
func (h *Hub) Subscribe(topic string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[chan []byte]bool)
		h.topics[topic] = subs
	}
	subs[ch] = true
}

// Unsubscribe removes ch from the topic.
func (h *Hub) Unsubscribe(topic string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish delivers msg to every subscriber of topic. Subscribers that are
// not reading miss the message rather than blocking the publisher.
func (h *Hub) Publish(topic string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers reports how many channels are registered for topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
