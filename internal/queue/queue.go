package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"

	"scenestudio/internal/infra"
)

// Handler processes one queued job payload. A nil return acknowledges the
// message. Returning a PermanentError drops the message instead of requeueing.
type Handler func(ctx context.Context, body []byte) error

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer will not requeue the message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// JobQueue is a durable AMQP work queue carrying generation job payloads
// between the submitter and the local worker.
type JobQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	name   string
	logger infra.Logger
}

// NewJobQueue dials the broker and declares the durable queue.
func NewJobQueue(cfg *infra.Config, logger infra.Logger) (*JobQueue, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.JobQueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	// Prefetch bounds how many unacked jobs one worker holds.
	if err := ch.Qos(4, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &JobQueue{conn: conn, ch: ch, name: q.Name, logger: logger}, nil
}

// Publish enqueues one persistent JSON payload.
func (q *JobQueue) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.ch.Publish("", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// Consume runs the delivery loop until ctx is cancelled. Failed messages are
// requeued once; redelivered failures and permanent errors are dropped.
func (q *JobQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("queue: delivery channel closed")
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *JobQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	err := handler(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		q.logger.Error().Err(err).Msg("queue: permanent failure, dropping message")
		_ = d.Nack(false, false)
		return
	}
	if d.Redelivered {
		q.logger.Error().Err(err).Msg("queue: repeated failure, dropping message")
		_ = d.Nack(false, false)
		return
	}
	q.logger.Warn().Err(err).Msg("queue: transient failure, requeueing once")
	_ = d.Nack(false, true)
}

// Close tears down the channel and connection.
func (q *JobQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
