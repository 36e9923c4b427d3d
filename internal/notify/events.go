package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"scenestudio/internal/domain"
	"scenestudio/internal/infra"
)

// JobEvent is one row-level change notification for a job. Delivery is
// best-effort: not exactly-once and not ordered relative to direct reads,
// which is why the orchestrator keeps a poll fallback.
type JobEvent struct {
	JobID    string           `json:"job_id"`
	OwnerID  string           `json:"owner_id"`
	Status   domain.JobStatus `json:"status"`
	AssetIDs []string         `json:"asset_ids,omitempty"`
	Error    string           `json:"error,omitempty"`
	At       time.Time        `json:"at"`
}

const (
	jobChannelPrefix   = "jobs:"
	ownerChannelPrefix = "owners:"
)

// Bus publishes and subscribes job events over redis pub/sub. The worker
// publishes on completion; the API process subscribes per job id for
// reconciliation and per owner for the SSE stream.
type Bus struct {
	client *redis.Client
	logger infra.Logger
}

// NewBus wraps the redis client as an event bus.
func NewBus(client *redis.Client, logger infra.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

// Publish fans the event out on the per-job and per-owner channels.
func (b *Bus) Publish(ctx context.Context, event JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, jobChannelPrefix+event.JobID, body).Err(); err != nil {
		return fmt.Errorf("notify: publish job event: %w", err)
	}
	if event.OwnerID != "" {
		if err := b.client.Publish(ctx, ownerChannelPrefix+event.OwnerID, body).Err(); err != nil {
			return fmt.Errorf("notify: publish owner event: %w", err)
		}
	}
	return nil
}

// SubscribeJob opens a push subscription for one job id. The returned cancel
// function must be called to tear the subscription down.
func (b *Bus) SubscribeJob(ctx context.Context, jobID string) (<-chan JobEvent, func(), error) {
	return b.subscribe(ctx, jobChannelPrefix+jobID)
}

// SubscribeOwner opens a push subscription for every job event belonging to
// one owner.
func (b *Bus) SubscribeOwner(ctx context.Context, ownerID string) (<-chan JobEvent, func(), error) {
	return b.subscribe(ctx, ownerChannelPrefix+ownerID)
}

// SubscribeAllJobs opens a pattern subscription covering every job channel.
func (b *Bus) SubscribeAllJobs(ctx context.Context) (<-chan JobEvent, func(), error) {
	sub := b.client.PSubscribe(ctx, jobChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("notify: pattern subscribe jobs: %w", err)
	}

	out := make(chan JobEvent, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("notify: dropped malformed event")
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

func (b *Bus) subscribe(ctx context.Context, channel string) (<-chan JobEvent, func(), error) {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("notify: subscribe %s: %w", channel, err)
	}

	out := make(chan JobEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("notify: dropped malformed event")
				continue
			}
			select {
			case out <- event:
			default:
				// Drop when the consumer is not reading; poll covers the gap.
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
