package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicportal/internal/metrics"
)

// Notifier queues a message for delivery. Delivery is fire-and-forget:
// callers are never told whether the message went out.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// StreamPublisher appends messages to a Redis stream read by the worker.
type StreamPublisher struct {
	client *redis.Client
	stream string
	log    zerolog.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, log zerolog.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, log: log}
}

func (p *StreamPublisher) Notify(ctx context.Context, msg Message) {
	if err := p.Publish(ctx, msg); err != nil {
		metrics.NotificationsPublished.WithLabelValues(string(msg.Kind), "error").Inc()
		p.log.Error().Err(err).
			Str("message_id", msg.ID).
			Str("kind", string(msg.Kind)).
			Msg("queue notification failed")
		return
	}
	metrics.NotificationsPublished.WithLabelValues(string(msg.Kind), "queued").Inc()
}

func (p *StreamPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":    string(msg.Kind),
			"id":      msg.ID,
			"payload": string(payload),
		},
	}).Err()
}

// Decode extracts a Message from a stream entry written by Publish.
func Decode(values map[string]any) (Message, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Message{}, fmt.Errorf("stream entry has no payload")
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, fmt.Errorf("decode payload: %w", err)
	}
	return msg, nil
}
