package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/notify/retry"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*model.Digest
	err  error
}

func (m *fakeMailer) SendDigest(_ context.Context, d *model.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, d)
	return nil
}

type countingNotifications struct {
	notify.NoOpNotificationService
	failures int
	dlq      []model.DeadLetterQueue
}

func (n *countingNotifications) NotifyDeliveryFailure(context.Context, *model.Queue, error) error {
	n.failures++
	return nil
}

func (n *countingNotifications) NotifyDLQItemAdded(_ context.Context, d model.DeadLetterQueue) error {
	n.dlq = append(n.dlq, d)
	return nil
}

func sampleDigest(f *fixture) *model.Digest {
	d := model.NewDigest(f.recipient(), t0)
	d.BillActions = []model.BillAction{{
		Bill:   model.BillSummary{ID: "ocd-bill/b", Identifier: "O2024-1", Slug: "b"},
		Action: model.ActionSummary{Description: "test action 1", Order: 1},
	}}
	return d
}

func newDispatcher(t *testing.T, f *fixture) *notify.QueueDispatcher {
	t.Helper()
	d, err := notify.NewQueueDispatcher(
		notify.WithDispatcherRepositories(f.repos.Job, f.repos.Queue),
		notify.WithDispatcherLogger(&notify.NoopLogger{}),
		notify.WithDispatcherClock(f.clock),
	)
	require.NoError(t, err)
	return d
}

func TestQueueDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	job, err := f.repos.Job.Load(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, job.UserID)
	assert.Equal(t, "alice@example.org", job.Recipient)

	decoded, err := job.Digest()
	require.NoError(t, err)
	require.Len(t, decoded.BillActions, 1)
	assert.Equal(t, "test action 1", decoded.BillActions[0].Action.Description)

	item, err := f.repos.Queue.Load(ctx, result.QueueID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusPending, item.Status)
	assert.Equal(t, job.ID, item.JobID)
}

func TestQueueDispatcher_RejectsEmptyDigest(t *testing.T) {
	f := newFixture(t)
	_, err := newDispatcher(t, f).Dispatch(context.Background(), model.NewDigest(f.recipient(), t0))
	require.Error(t, err)
	assert.True(t, notify.IsValidation(err))
}

func newWorker(t *testing.T, f *fixture, mailer notify.DigestMailer, opts ...notify.Option) *notify.DeliveryWorker {
	t.Helper()
	base := []notify.Option{
		notify.WithRepositories(f.repos.Queue, f.repos.Job, f.repos.DLQ),
		notify.WithMailer(mailer),
		notify.WithLogger(&notify.NoopLogger{}),
		notify.WithNotificationLog(f.repos.NotificationLog),
	}
	w, err := notify.NewDeliveryWorker(append(base, opts...)...)
	require.NoError(t, err)
	return w
}

func TestDeliveryWorker_SendsPendingDigest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	mailer := &fakeMailer{}
	processed, err := newWorker(t, f, mailer).ProcessPendingItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.org", mailer.sent[0].Recipient.Email)

	item, err := f.repos.Queue.Load(ctx, result.QueueID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusSent, item.Status)

	logs, err := f.repos.NotificationLog.FindByUser(ctx, f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.LogStatusSent, logs[0].Status)
	assert.Equal(t, result.JobID, logs[0].JobID)
}

func TestDeliveryWorker_FailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	notifications := &countingNotifications{}
	mailer := &fakeMailer{err: errors.New("smtp: 421 service not available")}
	worker := newWorker(t, f, mailer, notify.WithNotifications(notifications))

	processed, err := worker.ProcessPendingItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, notifications.failures)

	item, err := f.repos.Queue.Load(ctx, result.QueueID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusFailed, item.Status)
	assert.Equal(t, 1, item.AttemptCount)
	assert.Equal(t, "smtp: 421 service not available", item.LastError.String)
	assert.True(t, item.NextRetryAt.Time.After(time.Now()))
}

func TestDeliveryWorker_MovesToDLQ(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	strategy := retry.Strategy{
		MaxAttempts:     3,
		BaseDelay:       0,
		MaxDelay:        0,
		ExponentialBase: 2,
		DLQThreshold:    2,
	}
	notifications := &countingNotifications{}
	mailer := &fakeMailer{err: errors.New("mailbox unavailable")}
	worker := newWorker(t, f, mailer, notify.WithRetryStrategy(strategy), notify.WithNotifications(notifications))

	_, err = worker.ProcessPendingItems(ctx)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = worker.ProcessRetryableItems(ctx)
	require.NoError(t, err)

	_, err = f.repos.Queue.Load(ctx, result.QueueID)
	assert.True(t, notify.IsNoData(err))

	require.Len(t, notifications.dlq, 1)
	entry := notifications.dlq[0]
	assert.Equal(t, result.JobID, entry.JobID)
	assert.Equal(t, 2, entry.AttemptCount)
	assert.Equal(t, "mailbox unavailable", entry.LastError)
	assert.NotEmpty(t, entry.Payload)

	stats, err := worker.GetDLQStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnresolvedItems)
}

func TestDeliveryWorker_CleanupExpiredItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := model.NewQueue(f.user.ID, 99)
	item.ExpiresAt = time.Now().Add(-time.Minute)
	_, err := f.repos.Queue.Save(ctx, &item)
	require.NoError(t, err)

	deleted, err := newWorker(t, f, &fakeMailer{}).CleanupExpiredItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestDeliveryWorker_ExpiredDigestIsParkedInDLQ(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	item, err := f.repos.Queue.Load(ctx, result.QueueID)
	require.NoError(t, err)
	item.MarkFailed(errors.New("smtp: 421 service not available"), time.Hour)
	item.ExpiresAt = time.Now().Add(-time.Minute)
	_, err = f.repos.Queue.Save(ctx, &item)
	require.NoError(t, err)

	notifications := &countingNotifications{}
	worker := newWorker(t, f, &fakeMailer{}, notify.WithNotifications(notifications))
	cleaned, err := worker.CleanupExpiredItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	_, err = f.repos.Queue.Load(ctx, result.QueueID)
	assert.True(t, notify.IsNoData(err))

	require.Len(t, notifications.dlq, 1)
	entry := notifications.dlq[0]
	assert.Equal(t, result.JobID, entry.JobID)
	assert.Equal(t, "Expired before delivery", entry.FailureReason)
	assert.Equal(t, "smtp: 421 service not available", entry.LastError)
	assert.NotEmpty(t, entry.Payload)

	stats, err := worker.GetDLQStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnresolvedItems)
}

func TestNewDeliveryWorker_RequiresDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := notify.NewDeliveryWorker(notify.WithLogger(&notify.NoopLogger{}))
	require.Error(t, err)

	_, err = notify.NewDeliveryWorker(
		notify.WithRepositories(f.repos.Queue, f.repos.Job, f.repos.DLQ),
		notify.WithLogger(&notify.NoopLogger{}),
	)
	require.Error(t, err)

	_, err = notify.NewDeliveryWorker(notify.WithBatchSize(0))
	require.Error(t, err)
}

func TestDeliveryWorker_PermanentFailureSkipsRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	result, err := newDispatcher(t, f).Dispatch(ctx, sampleDigest(f))
	require.NoError(t, err)

	notifications := &countingNotifications{}
	mailer := &fakeMailer{err: retry.Permanent(errors.New("550 no such user"))}
	worker := newWorker(t, f, mailer, notify.WithNotifications(notifications))

	_, err = worker.ProcessPendingItems(ctx)
	require.NoError(t, err)

	_, err = f.repos.Queue.Load(ctx, result.QueueID)
	assert.True(t, notify.IsNoData(err))
	require.Len(t, notifications.dlq, 1)
	assert.Equal(t, 1, notifications.dlq[0].AttemptCount)
	assert.Contains(t, notifications.dlq[0].FailureReason, "Permanent failure")
}
