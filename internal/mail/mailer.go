package mail

import (
	"context"
	"errors"
	"strings"

	"github.com/memories-social/apiserver/config"
	gomail "gopkg.in/gomail.v2"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, subject, htmlBody, to, from string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer constructs an SMTP mailer from config.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, errors.New("smtp host is required")
	}

	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return &SMTPMailer{dialer: dialer}, nil
}

// Send delivers a single HTML message. The context deadline is not
// honored mid-dial; gomail does not take a context.
func (m *SMTPMailer) Send(ctx context.Context, subject, htmlBody, to, from string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	return m.dialer.DialAndSend(msg)
}
