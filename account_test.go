package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

type activationRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *activationRecorder) SendActivation(_ context.Context, _ model.User, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (r *activationRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[len(r.keys)-1]
}

func newAccounts(t *testing.T, f *fixture, mailer notify.ActivationMailer) *notify.AccountService {
	t.Helper()
	s, err := notify.NewAccountService(
		notify.WithAccountRepositories(f.repos.User, f.repos.Profile),
		notify.WithActivationMailer(mailer),
		notify.WithAccountClock(f.clock),
	)
	require.NoError(t, err)
	return s
}

func TestAccountService_Signup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := &activationRecorder{}
	accounts := newAccounts(t, f, mailer)

	user, err := accounts.Signup(ctx, notify.SignupRequest{Username: "bob", Email: "bob@example.org", Password: "correct horse"})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))

	profile, err := f.repos.Profile.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, mailer.last(), profile.ActivationKey)
	assert.Equal(t, t0.Add(24*time.Hour), profile.KeyExpires)
}

func TestAccountService_SignupValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	accounts := newAccounts(t, f, &activationRecorder{})

	tests := []struct {
		name string
		req  notify.SignupRequest
	}{
		{"missing username", notify.SignupRequest{Email: "x@example.org", Password: "longenough"}},
		{"bad email", notify.SignupRequest{Username: "x", Email: "not-an-email", Password: "longenough"}},
		{"short password", notify.SignupRequest{Username: "x", Email: "x@example.org", Password: "short"}},
		{"taken username", notify.SignupRequest{Username: "alice", Email: "new@example.org", Password: "longenough"}},
		{"taken email", notify.SignupRequest{Username: "new", Email: "alice@example.org", Password: "longenough"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Signup(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, notify.IsValidation(err))
		})
	}
}

func TestAccountService_Activate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := &activationRecorder{}
	accounts := newAccounts(t, f, mailer)

	user, err := accounts.Signup(ctx, notify.SignupRequest{Username: "bob", Email: "bob@example.org", Password: "correct horse"})
	require.NoError(t, err)
	key := mailer.last()

	_, err = accounts.Activate(ctx, "unknown")
	assert.True(t, notify.IsNotFound(err))

	outcome, err := accounts.Activate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, notify.ActivationOK, outcome)

	loaded, err := f.repos.User.Load(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)

	outcome, err = accounts.Activate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, notify.ActivationAlreadyActive, outcome)
}

func TestAccountService_ActivateExpiredKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mailer := &activationRecorder{}
	accounts := newAccounts(t, f, mailer)

	_, err := accounts.Signup(ctx, notify.SignupRequest{Username: "bob", Email: "bob@example.org", Password: "correct horse"})
	require.NoError(t, err)
	key := mailer.last()

	f.clock.Advance(25 * time.Hour)
	outcome, err := accounts.Activate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, notify.ActivationExpired, outcome)
	assert.NotEmpty(t, outcome.Message())

	fresh := mailer.last()
	assert.NotEqual(t, key, fresh)

	_, err = accounts.Activate(ctx, key)
	assert.True(t, notify.IsNotFound(err))

	outcome, err = accounts.Activate(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, notify.ActivationOK, outcome)
}
