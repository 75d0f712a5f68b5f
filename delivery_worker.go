package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/notify/model"
	"github.com/coregx/notify/retry"
)

const expiredReason = "Expired before delivery"

// DigestMailer renders and sends one digest email.
// Implemented by mail.Mailer.
type DigestMailer interface {
	SendDigest(ctx context.Context, d *model.Digest) error
}

// DeliveryWorker processes the digest delivery queue with automatic retry logic.
// It handles pending digests, failed retries, and Dead Letter Queue management.
//
// The worker runs continuously in the background, processing batches at regular intervals.
// Failed sends are retried with exponential backoff and digests that keep failing
// are moved to the Dead Letter Queue (DLQ) for manual inspection.
//
// Key responsibilities:
//   - Send pending digests (first delivery attempt)
//   - Retry failed sends with exponential backoff
//   - Move exhausted retries to DLQ
//   - Clean up expired queue items
//   - Send notifications for delivery failures and DLQ additions
//
// Thread safety: Safe for concurrent use. Each batch is processed sequentially.
type DeliveryWorker struct {
	qr                  QueueRepository
	jr                  JobRepository
	dlqr                DLQRepository
	logs                NotificationLogRepository
	mailer              DigestMailer
	retryStrategy       retry.Strategy
	logger              Logger
	notificationService NotificationService
	batchSize           int
	jobRetentionDays    int
}

// NewDeliveryWorker creates a new delivery worker with the provided options.
//
// Required options:
//   - WithRepositories: queue, job, and DLQ repositories
//   - WithMailer: digest mailer
//   - WithLogger: logger instance
//
// Optional options:
//   - WithRetryStrategy: custom retry strategy (default: retry.DefaultStrategy())
//   - WithBatchSize: batch processing size (default: 100)
//   - WithNotifications: failure and DLQ callbacks
//   - WithNotificationLog: per-send outcome log
//   - WithJobRetention: days to keep delivered jobs (default: 7, 0 disables purging)
//
// Example:
//
//	worker, err := notify.NewDeliveryWorker(
//	    notify.WithRepositories(repos.Queue, repos.Job, repos.DLQ),
//	    notify.WithMailer(mailer),
//	    notify.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewDeliveryWorker(opts ...Option) (*DeliveryWorker, error) {
	w := &DeliveryWorker{
		retryStrategy:       retry.DefaultStrategy(),
		batchSize:           100,
		jobRetentionDays:    DefaultJobRetentionDays,
		notificationService: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if w.qr == nil {
		return nil, NewError(ErrCodeConfiguration, "QueueRepository is required (use WithRepositories)")
	}
	if w.jr == nil {
		return nil, NewError(ErrCodeConfiguration, "JobRepository is required (use WithRepositories)")
	}
	if w.dlqr == nil {
		return nil, NewError(ErrCodeConfiguration, "DLQRepository is required (use WithRepositories)")
	}
	if w.mailer == nil {
		return nil, NewError(ErrCodeConfiguration, "DigestMailer is required (use WithMailer)")
	}
	if w.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	return w, nil
}

// ProcessPendingItems sends queued digests ready for their first attempt.
// Individual item failures are logged but don't stop batch processing.
func (w *DeliveryWorker) ProcessPendingItems(ctx context.Context) (int, error) {
	items, err := w.qr.FindPendingItems(ctx, w.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to find pending items: %w", err)
	}

	processed := 0
	for i := range items {
		if err := w.processQueueItem(ctx, &items[i]); err != nil {
			w.logger.Errorf("Failed to process queue item %d: %v", items[i].ID, err)
			continue
		}
		processed++
	}

	return processed, nil
}

// ProcessRetryableItems retries failed digests whose backoff has elapsed.
// Individual item failures are logged but don't stop batch processing.
func (w *DeliveryWorker) ProcessRetryableItems(ctx context.Context) (int, error) {
	items, err := w.qr.FindRetryableItems(ctx, w.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to find retryable items: %w", err)
	}

	processed := 0
	for i := range items {
		if err := w.processQueueItem(ctx, &items[i]); err != nil {
			w.logger.Errorf("Failed to process retryable item %d: %v", items[i].ID, err)
			continue
		}
		processed++
	}

	return processed, nil
}

// processQueueItem sends a single digest with retry bookkeeping.
func (w *DeliveryWorker) processQueueItem(ctx context.Context, queueItem *model.Queue) error {
	if err := queueItem.CanAttemptDelivery(w.retryStrategy.MaxAttempts); err != nil {
		w.logger.Debugf("Cannot attempt delivery for queue item %d: %v", queueItem.ID, err)
		return err
	}

	job, err := w.jr.Load(ctx, queueItem.JobID)
	if err != nil {
		return fmt.Errorf("failed to load digest job: %w", err)
	}

	digest, err := job.Digest()
	if err != nil {
		w.handleDeliveryFailure(ctx, queueItem, job, retry.Permanent(err))
		return err
	}

	if err := w.mailer.SendDigest(ctx, digest); err != nil {
		w.handleDeliveryFailure(ctx, queueItem, job, err)
		return NewErrorWithCause(ErrCodeDelivery, "delivery failed", err)
	}

	w.handleDeliverySuccess(ctx, queueItem, job)
	return nil
}

// handleDeliverySuccess handles a sent digest.
func (w *DeliveryWorker) handleDeliverySuccess(ctx context.Context, queueItem *model.Queue, job model.DigestJob) {
	queueItem.MarkSent()
	deliveries.WithLabelValues(model.LogStatusSent).Inc()

	if _, err := w.qr.Save(ctx, queueItem); err != nil {
		w.logger.Errorf("Failed to mark queue item %d as sent: %v", queueItem.ID, err)
		return
	}
	w.recordOutcome(ctx, model.NewNotificationLog(job.UserID, job.ID, job.Recipient, model.LogStatusSent))

	w.logger.Infof("Delivered digest %d to %s (queue_id=%d, attempts=%d)",
		job.ID, job.Recipient, queueItem.ID, queueItem.AttemptCount)
}

// handleDeliveryFailure records a failed send and either schedules the next
// attempt or parks the digest in the DLQ.
func (w *DeliveryWorker) handleDeliveryFailure(ctx context.Context, queueItem *model.Queue, job model.DigestJob, deliveryErr error) {
	decision := w.retryStrategy.Decide(queueItem.AttemptCount+1, deliveryErr)
	queueItem.MarkFailed(deliveryErr, decision.Delay)
	deliveries.WithLabelValues(model.LogStatusFailed).Inc()

	if _, err := w.qr.Save(ctx, queueItem); err != nil {
		w.logger.Errorf("Failed to update queue item %d after failure: %v", queueItem.ID, err)
		return
	}
	w.recordOutcome(ctx, model.NewNotificationLog(job.UserID, job.ID, job.Recipient, model.LogStatusFailed))

	if err := w.notificationService.NotifyDeliveryFailure(ctx, queueItem, deliveryErr); err != nil {
		w.logger.Warnf("Failed to send delivery failure notification: %v", err)
	}

	if decision.Action == retry.DeadLetter {
		w.logger.Warnf("Moving queue item %d to DLQ (attempts=%d): %s",
			queueItem.ID, queueItem.AttemptCount, decision.Reason)

		if err := w.moveToDLQ(ctx, queueItem, job, decision.Reason); err != nil {
			w.logger.Errorf("Failed to move queue item %d to DLQ: %v", queueItem.ID, err)
		}
		return
	}

	w.logger.Warnf("Delivery failed for digest %d (queue_id=%d, attempts=%d, next_retry=%v): %v",
		job.ID, queueItem.ID, queueItem.AttemptCount, decision.Delay, deliveryErr)
}

func (w *DeliveryWorker) recordOutcome(ctx context.Context, entry model.NotificationLog) {
	if w.logs == nil {
		return
	}
	if _, err := w.logs.Save(ctx, entry); err != nil {
		w.logger.Warnf("Failed to record notification log for user %d: %v", entry.UserID, err)
	}
}

// CleanupExpiredItems parks expired queue items in the DLQ.
// Items are considered expired when expires_at <= now and status != SENT.
// An item whose job is gone has nothing to park and is deleted.
func (w *DeliveryWorker) CleanupExpiredItems(ctx context.Context) (int, error) {
	items, err := w.qr.FindExpiredItems(ctx, w.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to find expired items: %w", err)
	}

	cleaned := 0
	for i := range items {
		item := &items[i]
		job, err := w.jr.Load(ctx, item.JobID)
		if err != nil {
			if !IsNoData(err) {
				w.logger.Errorf("Failed to load job %d of expired queue item %d: %v", item.JobID, item.ID, err)
				continue
			}
			if err := w.qr.Delete(ctx, item); err != nil {
				w.logger.Errorf("Failed to delete orphaned queue item %d: %v", item.ID, err)
				continue
			}
			cleaned++
			continue
		}

		if err := w.moveToDLQ(ctx, item, job, expiredReason); err != nil {
			w.logger.Errorf("Failed to move expired queue item %d to DLQ: %v", item.ID, err)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		w.logger.Infof("Cleaned up %d expired queue items", cleaned)
	}
	return cleaned, nil
}

// Run starts the worker loop. It blocks until ctx is canceled, processing
// one batch per interval.
//
// Example:
//
//	go worker.Run(ctx, 30*time.Second)
func (w *DeliveryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("Delivery worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Delivery worker stopped")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch sends pending and retryable items, parks expired ones and
// purges old jobs.
func (w *DeliveryWorker) ProcessBatch(ctx context.Context) {
	pendingCount, err := w.ProcessPendingItems(ctx)
	if err != nil {
		w.logger.Errorf("Error processing pending items: %v", err)
	}

	retryCount, err := w.ProcessRetryableItems(ctx)
	if err != nil {
		w.logger.Errorf("Error processing retryable items: %v", err)
	}

	expiredCount, err := w.CleanupExpiredItems(ctx)
	if err != nil {
		w.logger.Errorf("Error cleaning up expired items: %v", err)
	}

	purged := 0
	if w.jobRetentionDays > 0 {
		purged, err = w.PurgeOutdatedJobs(ctx, w.jobRetentionDays)
		if err != nil {
			w.logger.Errorf("Error purging outdated jobs: %v", err)
		}
	}

	if pendingCount > 0 || retryCount > 0 || expiredCount > 0 || purged > 0 {
		w.logger.Infof("Batch processed: pending=%d, retries=%d, expired=%d, purged=%d",
			pendingCount, retryCount, expiredCount, purged)
	}
}

// GetRetrySchedule returns a human-readable description of the retry schedule.
func (w *DeliveryWorker) GetRetrySchedule() string {
	return w.retryStrategy.Schedule()
}

// moveToDLQ moves a failed digest to the Dead Letter Queue and removes it
// from the queue.
func (w *DeliveryWorker) moveToDLQ(ctx context.Context, queueItem *model.Queue, job model.DigestJob, failureReason string) error {
	dlqEntry, err := w.dlqr.Save(ctx, model.NewDeadLetterQueue(*queueItem, job, failureReason))
	if err != nil {
		return fmt.Errorf("failed to save DLQ entry: %w", err)
	}

	if err := w.qr.Delete(ctx, queueItem); err != nil {
		w.logger.Errorf("Failed to delete queue item %d after moving to DLQ: %v", queueItem.ID, err)
	}

	w.logger.Infof("Moved digest %d to DLQ (queue_id=%d, dlq_id=%d, attempts=%d, reason=%s)",
		job.ID, queueItem.ID, dlqEntry.ID, queueItem.AttemptCount, failureReason)

	if err := w.notificationService.NotifyDLQItemAdded(ctx, dlqEntry); err != nil {
		w.logger.Warnf("Failed to send DLQ notification: %v", err)
	}

	return nil
}

// GetDLQStats retrieves Dead Letter Queue statistics for monitoring.
func (w *DeliveryWorker) GetDLQStats(ctx context.Context) (model.DLQStats, error) {
	return w.dlqr.GetStats(ctx)
}
