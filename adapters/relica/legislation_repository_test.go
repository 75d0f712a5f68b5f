package relica

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

// legislationSchema stands in for the host application's tables.
var legislationSchema = []string{
	`CREATE TABLE bill (id TEXT PRIMARY KEY, identifier TEXT NOT NULL DEFAULT '', title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '', slug TEXT NOT NULL DEFAULT '', created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL)`,
	`CREATE TABLE bill_action (id TEXT PRIMARY KEY, bill_id TEXT NOT NULL, organization_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '', date DATETIME NULL, "order" INTEGER NOT NULL)`,
	`CREATE TABLE bill_sponsorship (id TEXT PRIMARY KEY, bill_id TEXT NOT NULL, person_id TEXT NOT NULL, created_at DATETIME NOT NULL)`,
	`CREATE TABLE organization (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', slug TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE person (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', slug TEXT NOT NULL DEFAULT '')`,
	`CREATE TABLE event (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', slug TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '', start_date DATETIME NULL, end_date DATETIME NULL,
		created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL)`,
	`CREATE TABLE event_participant (id INTEGER PRIMARY KEY AUTOINCREMENT, event_id TEXT NOT NULL, organization_id TEXT NOT NULL)`,
}

func openLegislation(t *testing.T) *sql.DB {
	t.Helper()
	db := openSQLite(t)
	for _, stmt := range legislationSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func insertBill(t *testing.T, db *sql.DB, id, slug string, created time.Time) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO bill (id, identifier, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, slug, slug, created, created)
	require.NoError(t, err)
}

func insertAction(t *testing.T, db *sql.DB, id, billID, orgID string, order int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO bill_action (id, bill_id, organization_id, description, "order") VALUES (?, ?, ?, ?, ?)`,
		id, billID, orgID, "action "+id, order)
	require.NoError(t, err)
}

func insertEvent(t *testing.T, db *sql.DB, id string, start, created, updated time.Time) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO event (id, name, slug, start_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, "Event "+id, id, start, created, updated)
	require.NoError(t, err)
}

func actionOrders(actions []model.Action) []int {
	out := make([]int, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Order)
	}
	return out
}

func TestLegislationRepository_Actions(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")
	created := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	insertBill(t, db, "ocd-bill/1", "o2024-1", created)
	insertBill(t, db, "ocd-bill/2", "o2024-2", created)
	// Inserted out of order so the result order comes from ORDER BY.
	insertAction(t, db, "a3", "ocd-bill/1", "ocd-organization/zoning", 3)
	insertAction(t, db, "a1", "ocd-bill/1", "ocd-organization/zoning", 1)
	insertAction(t, db, "a2", "ocd-bill/1", "ocd-organization/finance", 2)
	insertAction(t, db, "b1", "ocd-bill/2", "ocd-organization/zoning", 1)

	actions, err := repos.Legislation.FindActionsAfter(ctx, "ocd-bill/1", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, actionOrders(actions))

	actions, err = repos.Legislation.FindActionsAfter(ctx, "ocd-bill/1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, actionOrders(actions))

	latest, err := repos.Legislation.MaxActionOrder(ctx, "ocd-bill/1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	latest, err = repos.Legislation.MaxActionOrder(ctx, "ocd-bill/unknown")
	require.NoError(t, err)
	assert.Equal(t, model.NoOrderSeen, latest)

	committee, err := repos.Legislation.FindCommitteeActions(ctx, "ocd-organization/zoning")
	require.NoError(t, err)
	require.Len(t, committee, 3)
	assert.Equal(t, "a1", committee[0].ID)
	assert.Equal(t, "a3", committee[1].ID)
	assert.Equal(t, "b1", committee[2].ID)
}

func TestLegislationRepository_BillsBySlugAndIDs(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")
	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	insertBill(t, db, "ocd-bill/old", "old", since.Add(-24*time.Hour))
	insertBill(t, db, "ocd-bill/new", "new", since.Add(time.Hour))
	insertBill(t, db, "ocd-bill/newer", "newer", since.Add(2*time.Hour))

	bill, err := repos.Legislation.FindBillBySlug(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "ocd-bill/new", bill.ID)

	_, err = repos.Legislation.FindBillBySlug(ctx, "missing")
	assert.True(t, notify.IsNoData(err))

	bills, err := repos.Legislation.FindBillsByIDs(ctx, []string{"ocd-bill/old", "ocd-bill/new", "ocd-bill/newer"}, since)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "ocd-bill/newer", bills[0].ID)
	assert.Equal(t, "ocd-bill/new", bills[1].ID)

	bills, err = repos.Legislation.FindBillsByIDs(ctx, []string{"ocd-bill/old"}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bills, 1)

	bills, err = repos.Legislation.FindBillsByIDs(ctx, nil, since)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestLegislationRepository_Events(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")
	since := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	start := since.Add(7 * 24 * time.Hour)

	insertEvent(t, db, "e-new", start, since.Add(time.Hour), since.Add(time.Hour))
	insertEvent(t, db, "e-updated", start, since.Add(-time.Hour), since.Add(2*time.Hour))
	insertEvent(t, db, "e-stale", start, since.Add(-time.Hour), since.Add(-time.Hour))
	_, err := db.Exec(`INSERT INTO event_participant (event_id, organization_id) VALUES (?, ?), (?, ?)`,
		"e-new", "ocd-organization/zoning", "e-stale", "ocd-organization/zoning")
	require.NoError(t, err)

	events, err := repos.Legislation.FindParticipantEvents(ctx, "ocd-organization/zoning", since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e-new", events[0].ID)
	assert.True(t, events[0].StartDate.Valid)

	events, err = repos.Legislation.FindEventsChangedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e-new", events[0].ID)
	assert.Equal(t, "e-updated", events[1].ID)
}

func TestLegislationRepository_Sponsorships(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")
	created := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	_, err := db.Exec(`INSERT INTO bill_sponsorship (id, bill_id, person_id, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?)`,
		"s2", "ocd-bill/2", "ocd-person/1", created.Add(time.Hour),
		"s1", "ocd-bill/1", "ocd-person/1", created)
	require.NoError(t, err)

	sponsorships, err := repos.Legislation.FindSponsorships(ctx, "ocd-person/1")
	require.NoError(t, err)
	require.Len(t, sponsorships, 2)
	assert.Equal(t, "s1", sponsorships[0].ID)
	assert.Equal(t, "s2", sponsorships[1].ID)
}

func TestSubscribeBill_StartsAtLatestAction(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")

	insertBill(t, db, "ocd-bill/1", "o2024-1", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	insertAction(t, db, "a1", "ocd-bill/1", "ocd-organization/zoning", 1)
	insertAction(t, db, "a2", "ocd-bill/1", "ocd-organization/zoning", 2)

	manager, err := notify.NewSubscriptionManager(
		notify.WithSubscriptionManagerRepositories(repos.Subscription, repos.Legislation, repos.Subscription),
		notify.WithSubscriptionManagerLogger(&notify.NoopLogger{}),
	)
	require.NoError(t, err)

	_, err = manager.SubscribeBill(ctx, 7, "o2024-1")
	require.NoError(t, err)

	subs, err := repos.Subscription.ListForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, subs.BillActions, 1)
	assert.Equal(t, 2, subs.BillActions[0].LastSeenOrder)
}

func TestRunner_AllSubscribedUsers(t *testing.T) {
	ctx := context.Background()
	db := openLegislation(t)
	repos := NewRepositories(db, "sqlite3")

	insertBill(t, db, "ocd-bill/1", "o2024-1", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	insertAction(t, db, "a1", "ocd-bill/1", "ocd-organization/zoning", 1)

	user, err := repos.User.Save(ctx, model.NewUser("alice", "alice@example.org", "hash", time.Now()))
	require.NoError(t, err)

	manager, err := notify.NewSubscriptionManager(
		notify.WithSubscriptionManagerRepositories(repos.Subscription, repos.Legislation, repos.Subscription),
		notify.WithSubscriptionManagerLogger(&notify.NoopLogger{}),
	)
	require.NoError(t, err)
	_, err = manager.SubscribeBill(ctx, user.ID, "o2024-1")
	require.NoError(t, err)

	insertAction(t, db, "a2", "ocd-bill/1", "ocd-organization/zoning", 2)

	dispatcher, err := notify.NewQueueDispatcher(
		notify.WithDispatcherRepositories(repos.Job, repos.Queue),
		notify.WithDispatcherLogger(&notify.NoopLogger{}),
	)
	require.NoError(t, err)
	assembler, err := notify.NewAssembler(
		notify.WithFinders(notify.NewBillActionFinder(repos.Legislation, repos.Subscription)),
		notify.WithDispatcher(dispatcher),
	)
	require.NoError(t, err)
	runner, err := notify.NewRunner(
		notify.WithRunnerRepositories(repos.Subscription, repos.User),
		notify.WithAssembler(assembler),
	)
	require.NoError(t, err)

	report, err := runner.Run(ctx, notify.RunRequest{Window: 15 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsersScanned)
	assert.Equal(t, 1, report.Dispatched)
	assert.Zero(t, report.Failures)

	subs, err := repos.Subscription.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, subs.BillActions, 1)
	assert.Equal(t, 2, subs.BillActions[0].LastSeenOrder)
}
