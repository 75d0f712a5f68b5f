package notify_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify"
	"github.com/coregx/notify/adapters/memory"
	"github.com/coregx/notify/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repos *memory.Repositories
	clock *testclock.Clock
	user  model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := memory.NewRepositories()
	user, err := repos.User.Save(context.Background(), model.User{
		Username: "alice",
		Email:    "alice@example.org",
		IsActive: true,
	})
	require.NoError(t, err)
	return &fixture{repos: repos, clock: testclock.NewClock(t0), user: user}
}

func (f *fixture) threshold() notify.Threshold {
	return notify.NewThreshold(f.clock, 15*time.Minute)
}

func (f *fixture) subs(t *testing.T) model.UserSubscriptions {
	t.Helper()
	subs, err := f.repos.Subscription.ListForUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	return subs
}

func (f *fixture) recipient() model.Recipient {
	return model.Recipient{UserID: f.user.ID, Username: f.user.Username, Email: f.user.Email}
}

func (f *fixture) manager(t *testing.T) *notify.SubscriptionManager {
	t.Helper()
	sm, err := notify.NewSubscriptionManager(
		notify.WithSubscriptionManagerRepositories(f.repos.Subscription, f.repos.Legislation, f.repos.Subscription),
		notify.WithSubscriptionManagerLogger(&notify.NoopLogger{}),
		notify.WithSubscriptionManagerClock(f.clock),
	)
	require.NoError(t, err)
	return sm
}

func (f *fixture) addBill(id, slug string, created time.Time) model.Bill {
	b := model.Bill{
		ID:          id,
		Identifier:  "O2024-" + slug,
		Description: "An ordinance about " + slug,
		Slug:        slug,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	f.repos.Legislation.AddBill(b)
	return b
}

func (f *fixture) addAction(billID, orgID, desc string, order int, date time.Time) {
	f.repos.Legislation.AddAction(model.Action{
		ID:             billID + "/" + desc,
		BillID:         billID,
		OrganizationID: orgID,
		Description:    desc,
		Date:           sql.NullTime{Time: date, Valid: !date.IsZero()},
		Order:          order,
	})
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// recordingDispatcher remembers every digest it was given.
type recordingDispatcher struct {
	mu      sync.Mutex
	digests []*model.Digest
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, digest *model.Digest) (*notify.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.digests = append(d.digests, digest)
	return &notify.DispatchResult{JobID: int64(len(d.digests)), QueueID: int64(len(d.digests))}, nil
}

func (d *recordingDispatcher) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.digests)
}

// failingFinder always fails for its kind.
type failingFinder struct {
	kind model.Kind
}

func (f failingFinder) Kind() model.Kind { return f.kind }

func (f failingFinder) FindUpdates(context.Context, model.UserSubscriptions, notify.Threshold) (notify.Findings, error) {
	return notify.Findings{Kind: f.kind}, errors.New("connection reset by peer")
}

// stubSearcher returns fixed ids or an error.
type stubSearcher struct {
	ids   []string
	err   error
	calls int
	since []time.Time
}

func (s *stubSearcher) SearchBillIDs(_ context.Context, _ model.SearchParams, since time.Time) ([]string, error) {
	s.calls++
	s.since = append(s.since, since)
	return s.ids, s.err
}
