package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type WhatsAppConfig struct {
	AccountSID  string
	AuthToken   string
	From        string
	CountryCode string
}

// Configured reports whether real credentials are present. Empty values and
// the YOUR_... placeholders from sample env files both count as missing.
func (c WhatsAppConfig) Configured() bool {
	for _, v := range []string{c.AccountSID, c.AuthToken, c.From} {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(strings.ToUpper(v), "YOUR_") {
			return false
		}
	}
	return true
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// WhatsAppChannel sends chat messages through Twilio. Without credentials it
// runs in simulation mode and only logs what it would have sent.
type WhatsAppChannel struct {
	cfg    WhatsAppConfig
	client messageCreator
	log    *slog.Logger
}

func NewWhatsAppChannel(cfg WhatsAppConfig, logger *slog.Logger) *WhatsAppChannel {
	if logger == nil {
		logger = slog.Default()
	}
	ch := &WhatsAppChannel{cfg: cfg, log: logger.With("channel", "whatsapp")}
	if cfg.Configured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		ch.client = client.Api
	} else {
		ch.log.Warn("twilio credentials missing, whatsapp messages will be simulated")
	}
	return ch
}

func (c *WhatsAppChannel) Name() string {
	return "whatsapp"
}

func (c *WhatsAppChannel) Simulated() bool {
	return c.client == nil
}

func (c *WhatsAppChannel) Accepts(msg Message) bool {
	return strings.TrimSpace(msg.Phone) != ""
}

func (c *WhatsAppChannel) Send(ctx context.Context, msg Message) error {
	to := FormatWhatsApp(msg.Phone, c.cfg.CountryCode)
	if c.client == nil {
		c.log.Info("[SIMULATION] whatsapp message", "to", to, "body", msg.Body, "message_id", msg.ID)
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(FormatWhatsApp(c.cfg.From, c.cfg.CountryCode))
	params.SetBody(msg.Body)

	// the Twilio client takes no context; run it aside so a hung call only
	// costs this attempt its timeout
	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.client.CreateMessage(params)
		r := result{err: err}
		if err == nil && resp != nil && resp.Sid != nil {
			r.sid = *resp.Sid
		}
		done <- r
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		c.log.Debug("twilio accepted message", "to", to, "sid", r.sid, "message_id", msg.ID)
		return nil
	}
}
