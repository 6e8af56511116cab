package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicportal/internal/notify"
)

// Processor delivers notification messages taken off the stream.
type Processor struct {
	sender notify.Sender
	logger zerolog.Logger
}

func NewProcessor(sender notify.Sender, logger zerolog.Logger) *Processor {
	return &Processor{
		sender: sender,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	payload, err := notify.Decode(msg.Values)
	if err != nil {
		// a malformed entry will never decode; drop it instead of retrying forever
		p.logger.Warn().Err(err).Str("stream_id", msg.ID).Msg("dropping malformed notification")
		return nil
	}

	switch payload.Kind {
	case notify.KindUserApproved, notify.KindSuggestionApproved, notify.KindSuggestionForwarded:
	default:
		p.logger.Warn().Str("kind", string(payload.Kind)).Str("stream_id", msg.ID).Msg("unknown notification kind")
		return nil
	}

	if payload.To == "" {
		p.logger.Warn().Str("message_id", payload.ID).Msg("notification without recipient")
		return nil
	}

	if err := p.sender.Send(ctx, payload); err != nil {
		return fmt.Errorf("send %s: %w", payload.ID, err)
	}
	return nil
}
