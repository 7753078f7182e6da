// Package notify delivers best-effort user notifications. Callers never fail
// an operation because a notification could not be sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Nop is used when no mail transport is configured.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

type SMTP struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", s.cfg.Sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := s.send(addr, auth, s.cfg.Sender, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	slog.Info("email sent", "to", to, "subject", subject)
	return nil
}

// FromConfig returns an SMTP notifier when a host is configured, Nop otherwise.
func FromConfig(cfg SMTPConfig) Notifier {
	if cfg.Host == "" {
		return Nop{}
	}
	return NewSMTP(cfg)
}
