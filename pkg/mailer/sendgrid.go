package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridConfig configures the SendGrid sender.
type SendGridConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	Host        string
}

// SendGridSender delivers messages through the SendGrid v3 mail API.
type SendGridSender struct {
	key    string
	host   string
	from   *sgmail.Email
	logger zerolog.Logger
}

// NewSendGridSender constructs a SendGrid backed sender.
func NewSendGridSender(cfg SendGridConfig, logger zerolog.Logger) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key must not be empty")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("sendgrid from address must not be empty")
	}
	host := cfg.Host
	if host == "" {
		host = sendGridHost
	}

	return &SendGridSender{
		key:    cfg.APIKey,
		host:   host,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		logger: logger.With().Str("component", "sendgrid_sender").Logger(),
	}, nil
}

func (s *SendGridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	return m
}

// Send posts the message. 4xx responses other than 429 are reported as permanent.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("sendgrid responded %d", res.StatusCode)
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: sendgrid responded %d: %s", ErrPermanent, res.StatusCode, res.Body)
	}

	s.logger.Debug().Int("status", res.StatusCode).Msg("email accepted by sendgrid")
	return nil
}
