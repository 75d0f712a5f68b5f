package mail

import (
	"context"
	"log/slog"
	"sync"
)

// MockProvider logs emails instead of sending them and keeps a copy for
// inspection. Used for local development and tests.
type MockProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
	err  error
}

// NewMockProvider creates a new mock email provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockProvider{logger: logger}
}

// Send records the email.
func (m *MockProvider) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.logger.Info("MOCK EMAIL",
		"to", msg.To,
		"subject", msg.Subject,
		"body_length", len(msg.HTML))
	m.sent = append(m.sent, msg)
	return nil
}

// FailWith makes subsequent sends return err. A nil err restores success.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns a copy of every recorded email.
func (m *MockProvider) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
