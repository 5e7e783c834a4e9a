// Package email sends transactional email.
//
// Bodies are HTML templates embedded in the binary and rendered with
// html/template plus the sprig function map. Delivery goes through the
// Resend API by default, or plain SMTP when
// integration.email_provider is "smtp".
package email

import (
	"fmt"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/rs/zerolog"
)

// Message is one rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered Message.
type Sender interface {
	Send(msg Message) error
}

// Client renders templates and hands them to a Sender.
type Client struct {
	sender Sender
	from   string
	logger *zerolog.Logger
}

// NewClient picks the transport from config.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	var sender Sender
	switch cfg.Integration.EmailProvider {
	case "smtp":
		sender = newSMTPSender(cfg.Integration.SMTP)
	default:
		sender = newResendSender(cfg.Integration.ResendAPIKey)
	}

	return NewClientWithSender(sender, cfg.Integration.EmailFrom, logger)
}

func NewClientWithSender(sender Sender, from string, logger *zerolog.Logger) *Client {
	return &Client{sender: sender, from: from, logger: logger}
}

// SendEmail renders templateName with data and sends it to one recipient.
func (c *Client) SendEmail(to, subject string, templateName Template, data map[string]string) error {
	body, err := Render(templateName, data)
	if err != nil {
		return err
	}

	if err := c.sender.Send(Message{
		From:    c.from,
		To:      to,
		Subject: subject,
		HTML:    body,
	}); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug().
		Str("template", string(templateName)).
		Str("to", to).
		Msg("email sent")
	return nil
}
