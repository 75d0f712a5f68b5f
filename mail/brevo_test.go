package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deliveryretry "github.com/coregx/notify/retry"
)

func newTestBrevo(t *testing.T, handler http.HandlerFunc) *BrevoProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b := NewBrevoProvider("key-123", "updates@example.org", "Councilmatic", nil)
	b.endpoint = srv.URL
	return b
}

func TestBrevoProvider_Send(t *testing.T) {
	var got brevoSendRequest
	b := newTestBrevo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := b.Send(context.Background(), Message{To: "alice@example.org", Subject: "Councilmatic Updates!", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "updates@example.org", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "alice@example.org", got.To[0].Email)
	assert.Equal(t, "Councilmatic Updates!", got.Subject)
}

func TestBrevoProvider_RejectedIsPermanent(t *testing.T) {
	calls := 0
	b := newTestBrevo(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	err := b.Send(context.Background(), Message{To: "not-an-address", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.True(t, deliveryretry.IsPermanent(err))
	assert.Equal(t, 1, calls)
}
