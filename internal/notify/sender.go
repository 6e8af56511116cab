package notify

import (
	"context"

	"github.com/rs/zerolog"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes outgoing mail to the log instead of a mail relay.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("message_id", msg.ID).
		Str("kind", string(msg.Kind)).
		Str("from", msg.From).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Bool("html", msg.IsHTML).
		Int("body_bytes", len(msg.Body)).
		Msg("email sent")
	return nil
}
