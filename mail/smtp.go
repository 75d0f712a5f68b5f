package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	deliveryretry "github.com/coregx/notify/retry"
)

// SMTPConfig holds SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromAddr string
	FromName string
	Timeout  time.Duration
}

// SMTPProvider sends emails through an SMTP relay.
type SMTPProvider struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPProvider creates a new SMTP email provider.
func NewSMTPProvider(cfg SMTPConfig, logger *slog.Logger) (*SMTPProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.FromAddr == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPProvider{cfg: cfg, logger: logger}, nil
}

// Send sends a multipart (text + HTML) email.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.FromFormat(p.cfg.FromName, p.cfg.FromAddr); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return deliveryretry.Permanent(fmt.Errorf("set recipient: %w", err))
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	opts := []gomail.Option{
		gomail.WithPort(p.cfg.Port),
		gomail.WithTimeout(p.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if p.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(p.cfg.Username),
			gomail.WithPassword(p.cfg.Password),
		)
	}

	client, err := gomail.NewClient(p.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		p.logger.Warn("SMTP send failed",
			"to", msg.To,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		if isRejectedRecipient(err) {
			return deliveryretry.Permanent(fmt.Errorf("smtp send: %w", err))
		}
		return fmt.Errorf("smtp send: %w", err)
	}

	p.logger.Info("SMTP send completed",
		"to", msg.To,
		"subject", msg.Subject,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// isRejectedRecipient reports a permanent RCPT TO rejection (5xx).
func isRejectedRecipient(err error) bool {
	var sendErr *gomail.SendError
	if !errors.As(err, &sendErr) {
		return false
	}
	return sendErr.Reason == gomail.ErrSMTPRcptTo && !sendErr.IsTemp()
}
