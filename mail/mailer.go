package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coregx/notify/model"
	deliveryretry "github.com/coregx/notify/retry"
)

// Mailer renders and sends the emails of the notification system.
type Mailer struct {
	provider Provider
	renderer *Renderer
	logger   *slog.Logger
}

// NewMailer creates a mailer.
func NewMailer(provider Provider, renderer *Renderer, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{provider: provider, renderer: renderer, logger: logger}
}

// SendDigest emails a digest to its recipient. Empty digests are not sent.
func (m *Mailer) SendDigest(ctx context.Context, d *model.Digest) error {
	if d == nil || d.Empty() {
		return nil
	}
	if d.Recipient.Email == "" {
		return deliveryretry.Permanent(fmt.Errorf("user %d has no email address", d.Recipient.UserID))
	}

	rendered, err := m.renderer.Digest(d)
	if err != nil {
		return deliveryretry.Permanent(err)
	}

	m.logger.Info("Sending digest email",
		"to", d.Recipient.Email,
		"user_id", d.Recipient.UserID)

	return m.provider.Send(ctx, Message{
		To:      d.Recipient.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// SendActivation emails the account activation link.
func (m *Mailer) SendActivation(ctx context.Context, user model.User, key string) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.Username)
	}

	rendered, err := m.renderer.Activation(user, key)
	if err != nil {
		return err
	}

	m.logger.Info("Sending activation email", "to", user.Email, "username", user.Username)

	return m.provider.Send(ctx, Message{
		To:      user.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}
