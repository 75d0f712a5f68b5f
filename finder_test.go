package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/notify/search"
)

func TestBillActionFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBill("ocd-bill/1", "o2024-1", t0.Add(-48*time.Hour))
	f.addAction("ocd-bill/1", "ocd-org/council", "introduced", 0, t0.Add(-48*time.Hour))

	_, err := f.manager(t).SubscribeBill(ctx, f.user.ID, "o2024-1")
	require.NoError(t, err)

	f.addAction("ocd-bill/1", "ocd-org/council", "referred", 2, t0.Add(-time.Hour))
	f.addAction("ocd-bill/1", "ocd-org/council", "read", 1, t0.Add(-2*time.Hour))

	finder := notify.NewBillActionFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)

	update := findings.Updates[0].(model.BillActionUpdate)
	require.Len(t, update.Actions, 2)
	assert.Equal(t, 1, update.Actions[0].Action.Order)
	assert.Equal(t, 2, update.Actions[1].Action.Order)
	assert.Equal(t, "o2024-1", update.Actions[0].Bill.Slug)

	// Finding is read-only until committed.
	assert.Equal(t, 0, f.subs(t).BillActions[0].LastSeenOrder)

	applied, conflicts, err := findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 0, conflicts)
	assert.Equal(t, 2, f.subs(t).BillActions[0].LastSeenOrder)

	again, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	assert.Empty(t, again.Updates)
	assert.Equal(t, 0, again.Pending())
}

func TestBillActionFinder_Conflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addBill("ocd-bill/1", "o2024-1", t0)
	_, err := f.manager(t).SubscribeBill(ctx, f.user.ID, "o2024-1")
	require.NoError(t, err)
	f.addAction("ocd-bill/1", "", "introduced", 0, t0)

	finder := notify.NewBillActionFinder(f.repos.Legislation, f.repos.Subscription)
	first, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	second, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)

	_, _, err = first.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	applied, conflicts, err := second.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, f.subs(t).BillActions[0].LastSeenOrder)
}

func TestPersonFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddPerson(model.Person{ID: "ocd-person/1", Name: "Ald. Reyes", Slug: "reyes"})
	f.addBill("ocd-bill/old", "old", t0.Add(-72*time.Hour))
	f.addBill("ocd-bill/a", "a", t0.Add(-time.Hour))
	f.addBill("ocd-bill/b", "b", t0.Add(-time.Hour))
	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-old", BillID: "ocd-bill/old", PersonID: "ocd-person/1"})

	_, err := f.manager(t).SubscribePerson(ctx, f.user.ID, "reyes")
	require.NoError(t, err)

	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-a", BillID: "ocd-bill/a", PersonID: "ocd-person/1"})
	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-b", BillID: "ocd-bill/b", PersonID: "ocd-person/1"})
	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-b2", BillID: "ocd-bill/b", PersonID: "ocd-person/1"})

	finder := notify.NewPersonFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)

	update := findings.Updates[0].(model.PersonUpdate)
	assert.Equal(t, "Ald. Reyes", update.NewSponsorships.Name)
	require.Len(t, update.NewSponsorships.Bills, 2)
	assert.Equal(t, "a", update.NewSponsorships.Bills[0].Slug)
	assert.Equal(t, "b", update.NewSponsorships.Bills[1].Slug)

	_, _, err = findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)

	seen, err := f.repos.Subscription.SeenSponsorshipIDs(ctx, f.subs(t).People[0].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"sp-old": true, "sp-a": true, "sp-b": true, "sp-b2": true}, seen)

	again, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	assert.Empty(t, again.Updates)
}

func TestCommitteeActionFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddOrganization(model.Organization{ID: "ocd-org/fin", Name: "Committee on Finance", Slug: "finance"})
	f.addBill("ocd-bill/1", "o2024-1", t0.Add(-time.Hour))

	_, err := f.manager(t).SubscribeCommitteeActions(ctx, f.user.ID, "finance")
	require.NoError(t, err)

	f.addAction("ocd-bill/1", "ocd-org/fin", "referred", 3, t0.Add(-2*time.Hour))
	f.addAction("ocd-bill/1", "ocd-org/fin", "recommended", 5, t0.Add(-time.Hour))

	finder := notify.NewCommitteeActionFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)

	update := findings.Updates[0].(model.CommitteeActionUpdate)
	assert.Equal(t, "Committee on Finance", update.Name)
	require.Len(t, update.Bills, 1)
	require.Len(t, update.Bills[0].Actions, 2)
	assert.Equal(t, "recommended", update.Bills[0].Actions[0].Description)
	assert.Equal(t, "referred", update.Bills[0].Actions[1].Description)

	_, _, err = findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)

	seen, err := f.repos.Subscription.SeenBills(ctx, f.subs(t).CommitteeActions[0].ID)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 5, seen[0].LastSeenOrder)

	again, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	assert.Empty(t, again.Updates)

	f.addAction("ocd-bill/1", "ocd-org/fin", "passed", 6, t0)
	next, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, next.Updates, 1)

	bills := next.Updates[0].(model.CommitteeActionUpdate).Bills
	require.Len(t, bills, 1)
	require.Len(t, bills[0].Actions, 1)
	assert.Equal(t, "passed", bills[0].Actions[0].Description)
}

func TestCommitteeActionFinder_PrimedBillsAreNotReplayed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddOrganization(model.Organization{ID: "ocd-org/fin", Name: "Finance", Slug: "finance"})
	f.addBill("ocd-bill/1", "o2024-1", t0.Add(-time.Hour))
	f.addAction("ocd-bill/1", "ocd-org/fin", "referred", 0, t0.Add(-time.Hour))

	_, err := f.manager(t).SubscribeCommitteeActions(ctx, f.user.ID, "finance")
	require.NoError(t, err)

	finder := notify.NewCommitteeActionFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	assert.Empty(t, findings.Updates)
}

func TestPersonFinder_UnloadedBillStaysUnseen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddPerson(model.Person{ID: "ocd-person/1", Name: "Ald. Reyes", Slug: "reyes"})
	_, err := f.manager(t).SubscribePerson(ctx, f.user.ID, "reyes")
	require.NoError(t, err)

	f.addBill("ocd-bill/a", "a", t0.Add(-time.Hour))
	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-a", BillID: "ocd-bill/a", PersonID: "ocd-person/1"})
	f.repos.Legislation.AddSponsorship(model.Sponsorship{ID: "sp-late", BillID: "ocd-bill/late", PersonID: "ocd-person/1"})

	finder := notify.NewPersonFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)
	bills := findings.Updates[0].(model.PersonUpdate).NewSponsorships.Bills
	require.Len(t, bills, 1)
	assert.Equal(t, "a", bills[0].Slug)

	_, _, err = findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	seen, err := f.repos.Subscription.SeenSponsorshipIDs(ctx, f.subs(t).People[0].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"sp-a": true}, seen)

	f.addBill("ocd-bill/late", "late", t0)
	next, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, next.Updates, 1)
	bills = next.Updates[0].(model.PersonUpdate).NewSponsorships.Bills
	require.Len(t, bills, 1)
	assert.Equal(t, "late", bills[0].Slug)
}

func TestCommitteeActionFinder_UnloadedBillStaysUnseen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddOrganization(model.Organization{ID: "ocd-org/fin", Name: "Finance", Slug: "finance"})
	_, err := f.manager(t).SubscribeCommitteeActions(ctx, f.user.ID, "finance")
	require.NoError(t, err)

	f.addBill("ocd-bill/1", "o2024-1", t0.Add(-time.Hour))
	f.addAction("ocd-bill/1", "ocd-org/fin", "referred", 0, t0.Add(-time.Hour))
	f.addAction("ocd-bill/late", "ocd-org/fin", "referred", 0, t0.Add(-time.Hour))

	finder := notify.NewCommitteeActionFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)
	require.Len(t, findings.Updates[0].(model.CommitteeActionUpdate).Bills, 1)
	assert.Equal(t, 1, findings.Pending())

	_, _, err = findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	seen, err := f.repos.Subscription.SeenBills(ctx, f.subs(t).CommitteeActions[0].ID)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "ocd-bill/1", seen[0].BillID)

	f.addBill("ocd-bill/late", "late", t0)
	next, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, next.Updates, 1)
	bills := next.Updates[0].(model.CommitteeActionUpdate).Bills
	require.Len(t, bills, 1)
	assert.Equal(t, "late", bills[0].Slug)
	require.Len(t, bills[0].Actions, 1)
}

func TestCommitteeEventFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repos.Legislation.AddOrganization(model.Organization{ID: "ocd-org/fin", Name: "Finance", Slug: "finance"})

	_, err := f.manager(t).SubscribeCommitteeEvents(ctx, f.user.ID, "finance")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	now := f.clock.Now()
	events := []model.Event{
		{ID: "e-past", Slug: "past", Name: "Past hearing", StartDate: nullTime(now.Add(-time.Hour)), CreatedAt: now.Add(-time.Minute)},
		{ID: "e-soon", Slug: "soon", Name: "Soon", StartDate: nullTime(now.Add(24 * time.Hour)), CreatedAt: now.Add(-time.Minute)},
		{ID: "e-later", Slug: "later", Name: "Later", StartDate: nullTime(now.Add(72 * time.Hour)), CreatedAt: now.Add(-time.Minute)},
		{ID: "e-undated", Slug: "undated", Name: "Undated", CreatedAt: now.Add(-time.Minute)},
		{ID: "e-stale", Slug: "stale", Name: "Stale", StartDate: nullTime(now.Add(time.Hour)), CreatedAt: t0.Add(-time.Hour)},
	}
	for _, e := range events {
		e.UpdatedAt = e.CreatedAt
		f.repos.Legislation.AddEvent(e)
		f.repos.Legislation.AddParticipant(e.ID, "ocd-org/fin")
	}

	finder := notify.NewCommitteeEventFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)

	update := findings.Updates[0].(model.CommitteeEventUpdate)
	require.Len(t, update.Events, 2)
	assert.Equal(t, "later", update.Events[0].Slug)
	assert.Equal(t, "soon", update.Events[1].Slug)

	_, _, err = findings.Commit(ctx, &notify.NoopLogger{})
	require.NoError(t, err)
	assert.Equal(t, now, f.subs(t).CommitteeEvents[0].LastDatetimeUpdated)
}

func TestEventsFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager(t).SubscribeEvents(ctx, f.user.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	now := f.clock.Now()
	f.repos.Legislation.AddEvent(model.Event{ID: "e1", Slug: "new", StartDate: nullTime(now.Add(time.Hour)), CreatedAt: now, UpdatedAt: now})
	f.repos.Legislation.AddEvent(model.Event{ID: "e2", Slug: "moved", StartDate: nullTime(now.Add(2 * time.Hour)), CreatedAt: t0.Add(-24 * time.Hour), UpdatedAt: now})
	f.repos.Legislation.AddEvent(model.Event{ID: "e3", Slug: "untouched", CreatedAt: t0.Add(-24 * time.Hour), UpdatedAt: t0.Add(-24 * time.Hour)})

	finder := notify.NewEventsFinder(f.repos.Legislation, f.repos.Subscription)
	findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
	require.NoError(t, err)
	require.Len(t, findings.Updates, 1)

	update := findings.Updates[0].(model.EventsUpdate)
	require.Len(t, update.New, 1)
	require.Len(t, update.Updated, 1)
	assert.Equal(t, "new", update.New[0].Slug)
	assert.Equal(t, "moved", update.Updated[0].Slug)
}

func TestBillSearchFinder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager(t).SubscribeSearch(ctx, f.user.ID, model.SearchParams{Term: "water"})
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	f.addBill("ocd-bill/new", "new", f.clock.Now())
	f.addBill("ocd-bill/old", "old", t0.Add(-24*time.Hour))

	t.Run("maps ids to new bills", func(t *testing.T) {
		searcher := &stubSearcher{ids: []string{"ocd-bill/old", "ocd-bill/new", "ocd-bill/unknown"}}
		finder := notify.NewBillSearchFinder(f.repos.Legislation, f.repos.Subscription, searcher, &notify.NoopLogger{})

		findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
		require.NoError(t, err)
		require.Len(t, findings.Updates, 1)

		update := findings.Updates[0].(model.BillSearchUpdate)
		assert.Equal(t, "water", update.Params.Term)
		require.Len(t, update.Bills, 1)
		assert.Equal(t, "new", update.Bills[0].Slug)
		assert.Equal(t, []time.Time{t0}, searcher.since)
	})

	t.Run("no documents", func(t *testing.T) {
		finder := notify.NewBillSearchFinder(f.repos.Legislation, f.repos.Subscription, &stubSearcher{}, &notify.NoopLogger{})
		findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
		require.NoError(t, err)
		assert.Empty(t, findings.Updates)
		assert.Equal(t, 1, findings.Pending())
	})

	t.Run("unconfigured", func(t *testing.T) {
		for _, searcher := range []notify.BillSearcher{nil, &stubSearcher{err: search.ErrUnconfigured}} {
			finder := notify.NewBillSearchFinder(f.repos.Legislation, f.repos.Subscription, searcher, &notify.NoopLogger{})
			findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
			require.NoError(t, err)
			assert.Empty(t, findings.Updates)
			assert.Equal(t, 0, findings.Pending())
		}
	})

	t.Run("search failure skips subscription", func(t *testing.T) {
		searcher := &stubSearcher{err: errors.New("search returned 503")}
		finder := notify.NewBillSearchFinder(f.repos.Legislation, f.repos.Subscription, searcher, &notify.NoopLogger{})
		findings, err := finder.FindUpdates(ctx, f.subs(t), f.threshold())
		require.NoError(t, err)
		assert.Empty(t, findings.Updates)
		assert.Equal(t, 0, findings.Pending())
		assert.Equal(t, 1, searcher.calls)
	})
}
