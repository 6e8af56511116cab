package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	readCount     = 10
	retryDelay    = 2 * time.Second
	maxDeliveries = 5
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

// Consumer reads a Redis stream as a member of a consumer group. Messages
// are acked only after the handler succeeds; messages left pending longer
// than the claim interval are claimed and retried. A message delivered
// maxDeliveries times is moved to the dead-letter stream "<stream>:dead".
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	block         time.Duration
	maxDeliveries int64
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		block:         5 * time.Second,
		maxDeliveries: maxDeliveries,
		logger:        logger,
		handler:       handler,
	}
}

// EnsureGroup creates the stream and the consumer group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := c.ReadOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Msg("stream read error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.ClaimStalled(ctx); err != nil {
				c.logger.Error().Err(err).Msg("claim stalled messages failed")
			}
		default:
		}
	}
}

// ReadOnce reads and handles one batch of new messages and returns how many
// were acked.
func (c *Consumer) ReadOnce(ctx context.Context) (int, error) {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    readCount,
		Block:    c.block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	acked := 0
	for _, stream := range result {
		for _, msg := range stream.Messages {
			if c.process(ctx, msg) {
				acked++
			}
		}
	}
	return acked, nil
}

// ClaimStalled takes over messages another consumer left unacked and
// returns how many were acked. It walks the whole pending list a page at a
// time, so failing entries at its head cannot hide later ones.
func (c *Consumer) ClaimStalled(ctx context.Context) (int, error) {
	acked := 0
	start := "-"
	for {
		pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: c.stream,
			Group:  c.group,
			Start:  start,
			End:    "+",
			Count:  readCount,
		}).Result()
		if err != nil {
			return acked, err
		}

		for _, entry := range pending {
			if entry.Idle < c.claimInterval {
				continue
			}
			msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   c.stream,
				Group:    c.group,
				Consumer: c.consumer,
				MinIdle:  c.claimInterval,
				Messages: []string{entry.ID},
			}).Result()
			if err != nil {
				c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("claim error")
				continue
			}
			for _, msg := range msgs {
				if entry.RetryCount >= c.maxDeliveries {
					c.deadLetter(ctx, msg, entry.RetryCount)
					continue
				}
				if c.process(ctx, msg) {
					acked++
				}
			}
		}

		if len(pending) < readCount {
			return acked, nil
		}
		next, err := nextStreamID(pending[len(pending)-1].ID)
		if err != nil {
			return acked, err
		}
		start = next
	}
}

// deadLetter parks a message that keeps failing on the dead-letter stream
// and acks it on the main one.
func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage, deliveries int64) {
	values := make(map[string]any, len(msg.Values)+1)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["origin_id"] = msg.ID

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.stream + ":dead", Values: values}).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter failed")
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
		return
	}
	c.logger.Warn().
		Str("message_id", msg.ID).
		Int64("deliveries", deliveries).
		Msg("message moved to dead-letter stream")
}

// nextStreamID returns the smallest stream id greater than id.
func nextStreamID(id string) (string, error) {
	msPart, seqPart, ok := strings.Cut(id, "-")
	if !ok {
		return "", fmt.Errorf("malformed stream id %q", id)
	}
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	if seq == math.MaxUint64 {
		return fmt.Sprintf("%d-0", ms+1), nil
	}
	return fmt.Sprintf("%d-%d", ms, seq+1), nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) bool {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("handle message failed")
		return false
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
		return false
	}
	return true
}
