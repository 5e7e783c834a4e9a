package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/resend/resend-go/v2"
)

type resendSender struct {
	client *resend.Client
}

func newResendSender(apiKey string) *resendSender {
	return &resendSender{client: resend.NewClient(apiKey)}
}

func (s *resendSender) Send(msg Message) error {
	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	return err
}

type smtpSender struct {
	addr string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newSMTPSender(cfg config.SMTPConfig) *smtpSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &smtpSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		send: smtp.SendMail,
	}
}

func (s *smtpSender) Send(msg Message) error {
	return s.send(s.addr, s.auth, envelopeAddress(msg.From), []string{msg.To}, buildMIME(msg))
}

// envelopeAddress pulls "a@b" out of "Name <a@b>".
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}

func buildMIME(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
