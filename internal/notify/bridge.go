package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"scenestudio/internal/infra"
)

// Bridge relays every owner-channel event from redis into the in-process
// hub that feeds SSE connections. One bridge runs per API process.
type Bridge struct {
	bus    *Bus
	hub    *Hub
	logger infra.Logger
}

// NewBridge wires a bridge; call Run to start relaying.
func NewBridge(bus *Bus, hub *Hub, logger infra.Logger) *Bridge {
	return &Bridge{bus: bus, hub: hub, logger: logger}
}

// Run blocks relaying events until ctx is cancelled. The pattern
// subscription is re-opened after transient redis failures.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if err := b.relay(ctx); err != nil {
			b.logger.Warn().Err(err).Msg("notify: owner event relay interrupted")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (b *Bridge) relay(ctx context.Context) error {
	sub := b.bus.client.PSubscribe(ctx, ownerChannelPrefix+"*")
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ownerID := strings.TrimPrefix(msg.Channel, ownerChannelPrefix)
			if ownerID == "" || !json.Valid([]byte(msg.Payload)) {
				continue
			}
			b.hub.Publish(ownerID, []byte(msg.Payload))
		}
	}
}
