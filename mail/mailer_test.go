package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify/model"
	deliveryretry "github.com/coregx/notify/retry"
)

func newTestMailer(t *testing.T) (*Mailer, *MockProvider) {
	t.Helper()
	r, err := NewRenderer(Site{Name: "Councilmatic", BaseURL: "https://example.org"})
	require.NoError(t, err)
	mock := NewMockProvider(nil)
	return NewMailer(mock, r, nil), mock
}

func TestMailer_SendDigest(t *testing.T) {
	m, mock := newTestMailer(t)

	require.NoError(t, m.SendDigest(context.Background(), sampleDigest()))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.org", sent[0].To)
	assert.Equal(t, "Councilmatic Updates!", sent[0].Subject)
	assert.NotEmpty(t, sent[0].HTML)
	assert.NotEmpty(t, sent[0].Text)
}

func TestMailer_SkipsEmptyDigest(t *testing.T) {
	m, mock := newTestMailer(t)

	empty := model.NewDigest(model.Recipient{UserID: 1, Email: "a@example.org"}, time.Now())
	require.NoError(t, m.SendDigest(context.Background(), empty))
	assert.Empty(t, mock.Sent())
}

func TestMailer_RequiresEmail(t *testing.T) {
	m, _ := newTestMailer(t)

	d := sampleDigest()
	d.Recipient.Email = ""
	err := m.SendDigest(context.Background(), d)
	require.Error(t, err)
	assert.True(t, deliveryretry.IsPermanent(err))
}

func TestMailer_ProviderFailure(t *testing.T) {
	m, mock := newTestMailer(t)
	mock.FailWith(errors.New("relay down"))

	err := m.SendDigest(context.Background(), sampleDigest())
	assert.EqualError(t, err, "relay down")

	mock.FailWith(nil)
	require.NoError(t, m.SendActivation(context.Background(), model.User{Username: "ada", Email: "ada@example.org"}, "k"))
	assert.Len(t, mock.Sent(), 1)
}
