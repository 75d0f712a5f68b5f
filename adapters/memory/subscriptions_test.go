package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

func TestSubscriptions_AdvanceBillActionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptions()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sub, err := s.SaveBillAction(ctx, model.NewBillActionSubscription(1, "ocd-bill/1", 0, now))
	require.NoError(t, err)

	require.NoError(t, s.AdvanceBillActionOrder(ctx, sub.ID, 0, 3, now))
	err = s.AdvanceBillActionOrder(ctx, sub.ID, 0, 2, now)
	assert.True(t, notify.IsConflict(err))

	subs, err := s.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, subs.BillActions[0].LastSeenOrder)
}

func TestSubscriptions_DuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptions()
	now := time.Now()

	_, err := s.SaveEvents(ctx, model.NewEventsSubscription(1, now))
	require.NoError(t, err)
	_, err = s.SaveEvents(ctx, model.NewEventsSubscription(1, now))
	assert.True(t, notify.IsConflict(err))

	_, err = s.SaveEvents(ctx, model.NewEventsSubscription(2, now))
	assert.NoError(t, err)

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestSubscriptions_AdvanceTimestampNeverRegresses(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptions()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	sub, err := s.SaveEvents(ctx, model.NewEventsSubscription(1, now))
	require.NoError(t, err)

	require.NoError(t, s.AdvanceTimestamp(ctx, model.KindEvents, sub.ID, now.Add(time.Hour)))
	require.NoError(t, s.AdvanceTimestamp(ctx, model.KindEvents, sub.ID, now.Add(time.Minute)))

	subs, err := s.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), subs.Events[0].LastDatetimeUpdated)

	err = s.AdvanceTimestamp(ctx, model.KindEvents, 999, now)
	assert.True(t, notify.IsNoData(err))
}

func TestSubscriptions_SeenSets(t *testing.T) {
	ctx := context.Background()
	s := NewSubscriptions()
	now := time.Now()

	person, err := s.SavePerson(ctx, model.NewPersonSubscription(1, "ocd-person/1", now))
	require.NoError(t, err)
	require.NoError(t, s.AddSeenSponsorships(ctx, person.ID, []string{"a", "b"}, now))
	require.NoError(t, s.AddSeenSponsorships(ctx, person.ID, []string{"b", "c"}, now))

	seen, err := s.SeenSponsorshipIDs(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)

	committee, err := s.SaveCommitteeAction(ctx, model.NewCommitteeActionSubscription(1, "ocd-org/1", now))
	require.NoError(t, err)
	sb, err := s.CreateSeenBill(ctx, model.SeenBill{SubscriptionID: committee.ID, BillID: "ocd-bill/1", LastSeenOrder: 2})
	require.NoError(t, err)
	_, err = s.CreateSeenBill(ctx, model.SeenBill{SubscriptionID: committee.ID, BillID: "ocd-bill/1", LastSeenOrder: 4})
	assert.True(t, notify.IsConflict(err))

	require.NoError(t, s.AdvanceSeenBillOrder(ctx, sb.ID, 2, 4))
	assert.True(t, notify.IsConflict(s.AdvanceSeenBillOrder(ctx, sb.ID, 2, 5)))

	require.NoError(t, s.Delete(ctx, model.SubscriptionRef{Kind: model.KindPerson, ID: person.ID, UserID: 1}))
	seen, err = s.SeenSponsorshipIDs(ctx, person.ID)
	require.NoError(t, err)
	assert.Empty(t, seen)
}
