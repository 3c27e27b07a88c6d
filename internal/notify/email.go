package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c EmailConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Password) != ""
}

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailChannel sends plain-text mail over SMTP, or logs it when SMTP is not
// configured.
type EmailChannel struct {
	cfg    EmailConfig
	sender mailSender
	log    *slog.Logger
}

func NewEmailChannel(cfg EmailConfig, logger *slog.Logger) *EmailChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	ch := &EmailChannel{cfg: cfg, log: logger.With("channel", "email")}
	if cfg.Configured() {
		dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		dialer.Timeout = 10 * time.Second
		ch.sender = dialer
	} else {
		ch.log.Warn("smtp credentials missing, emails will be simulated")
	}
	return ch
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Simulated() bool {
	return c.sender == nil
}

func (c *EmailChannel) Accepts(msg Message) bool {
	return strings.TrimSpace(msg.Email) != ""
}

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if c.sender == nil {
		c.log.Info("[SIMULATION] email", "to", msg.Email, "subject", msg.Subject, "message_id", msg.ID)
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", msg.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- c.sender.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
