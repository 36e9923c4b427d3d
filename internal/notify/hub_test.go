package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubDeliversPerTopic(t *testing.T) {
	hub := NewHub()
	alice := make(chan []byte, 1)
	bob := make(chan []byte, 1)
	hub.Subscribe("alice", alice)
	hub.Subscribe("bob", bob)

	hub.Publish("alice", []byte("event"))

	assert.Equal(t, []byte("event"), <-alice)
	assert.Empty(t, bob)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	slow := make(chan []byte, 1)
	hub.Subscribe("alice", slow)

	hub.Publish("alice", []byte("one"))
	hub.Publish("alice", []byte("two")) // buffer full, dropped

	assert.Equal(t, []byte("one"), <-slow)
	assert.Empty(t, slow)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	ch := make(chan []byte, 1)
	hub.Subscribe("alice", ch)
	assert.Equal(t, 1, hub.Subscribers("alice"))

	hub.Unsubscribe("alice", ch)
	assert.Equal(t, 0, hub.Subscribers("alice"))

	hub.Publish("alice", []byte("event"))
	assert.Empty(t, ch)
}
