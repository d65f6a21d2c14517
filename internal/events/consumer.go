package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-reminders/internal/dto"
	"github.com/noah-isme/gema-reminders/internal/service"
)

const queueGroup = "gema-reminders"

// Reply is the envelope sent back to request/reply producers.
type Reply struct {
	Success bool            `json:"success"`
	Data    dto.EventResult `json:"data"`
	Message string          `json:"message,omitempty"`
}

// Consumer applies domain events published on NATS.
type Consumer struct {
	conn    *nats.Conn
	subject string
	decoder *Decoder
	service service.EventService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewConsumer builds a consumer listening on "<prefix>.events.>".
func NewConsumer(conn *nats.Conn, prefix string, decoder *Decoder, svc service.EventService, timeout time.Duration, logger zerolog.Logger) *Consumer {
	prefix = strings.Trim(strings.ReplaceAll(prefix, ":", "."), ".")
	if prefix == "" {
		prefix = "gema"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Consumer{
		conn:    conn,
		subject: prefix + ".events.>",
		decoder: decoder,
		service: svc,
		timeout: timeout,
		logger:  logger.With().Str("component", "event_consumer").Logger(),
	}
}

// Subject returns the wildcard subject the consumer listens on.
func (c *Consumer) Subject() string {
	return c.subject
}

// Start subscribes in the shared queue group and drains the subscription when ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, queueGroup, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return err
	}

	c.logger.Info().Str("subject", c.subject).Msg("listening for domain events")

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to drain domain event subscription")
		}
	}()

	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	event, err := c.decoder.Decode(msg.Data, subjectType(msg.Subject))
	if err != nil {
		c.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("rejected domain event")
		c.reply(msg, Reply{Success: false, Message: err.Error()})
		return
	}

	handleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	result, err := c.service.Handle(handleCtx, event)
	if err != nil {
		message := "event could not be applied; retry later"
		if errors.Is(err, service.ErrInvalidEvent) || errors.Is(err, service.ErrAssessmentNotFound) {
			message = err.Error()
		}
		c.reply(msg, Reply{Success: false, Data: result, Message: message})
		return
	}

	c.reply(msg, Reply{Success: true, Data: result})
}

func (c *Consumer) reply(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode event reply")
		return
	}
	if err := msg.Respond(payload); err != nil {
		c.logger.Warn().Err(err).Msg("failed to reply to domain event")
	}
}

// subjectType returns the last subject token, e.g. "SubmissionReceived" for
// "gema.events.SubmissionReceived".
func subjectType(subject string) string {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 || idx == len(subject)-1 {
		return ""
	}
	return subject[idx+1:]
}
