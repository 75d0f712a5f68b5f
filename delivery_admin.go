package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/notify/model"
)

// DefaultJobRetentionDays is how long delivered digest jobs are kept.
const DefaultJobRetentionDays = 7

// DeliveryHistory is what the queue, the DLQ and the log know about one user.
type DeliveryHistory struct {
	Queue       []model.Queue           `json:"queue"`
	DeadLetters []model.DeadLetterQueue `json:"deadLetters"`
	Log         []model.NotificationLog `json:"log"`
}

// History collects the delivery state of a user, newest first.
func (w *DeliveryWorker) History(ctx context.Context, userID int64, limit int) (DeliveryHistory, error) {
	var h DeliveryHistory

	items, err := w.qr.FindByUserID(ctx, userID)
	if err = noData(err); err != nil {
		return h, fmt.Errorf("failed to load queue items: %w", err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	h.Queue = items

	dead, err := w.dlqr.FindByUser(ctx, userID, limit)
	if err = noData(err); err != nil {
		return h, fmt.Errorf("failed to load DLQ items: %w", err)
	}
	h.DeadLetters = dead

	if w.logs != nil {
		entries, err := w.logs.FindByUser(ctx, userID, limit)
		if err = noData(err); err != nil {
			return h, fmt.Errorf("failed to load notification log: %w", err)
		}
		h.Log = entries
	}
	return h, nil
}

// PurgeOutdatedJobs deletes digest jobs older than days together with their
// sent queue items. Jobs still queued or parked in an unresolved DLQ entry
// are kept.
func (w *DeliveryWorker) PurgeOutdatedJobs(ctx context.Context, days int) (int, error) {
	jobs, err := w.jr.FindOutdatedJobs(ctx, days)
	if err = noData(err); err != nil {
		return 0, fmt.Errorf("failed to find outdated jobs: %w", err)
	}

	purged := 0
	for _, job := range jobs {
		item, err := w.qr.FindByJobID(ctx, job.ID)
		switch {
		case err == nil && item.Status != model.QueueStatusSent:
			continue
		case err == nil:
			if err := w.qr.Delete(ctx, &item); err != nil {
				w.logger.Errorf("Failed to delete sent queue item %d: %v", item.ID, err)
				continue
			}
		case !IsNoData(err):
			w.logger.Errorf("Failed to look up queue item of job %d: %v", job.ID, err)
			continue
		}

		dead, err := w.dlqr.FindByJobID(ctx, job.ID)
		if err == nil && !dead.IsResolved {
			continue
		}
		if err != nil && !IsNoData(err) {
			w.logger.Errorf("Failed to look up DLQ entry of job %d: %v", job.ID, err)
			continue
		}

		if err := w.jr.Delete(ctx, job); err != nil {
			w.logger.Errorf("Failed to delete job %d: %v", job.ID, err)
			continue
		}
		purged++
	}

	if purged > 0 {
		w.logger.Infof("Purged %d digest jobs older than %d days", purged, days)
	}
	return purged, nil
}

// UnresolvedDLQ lists unresolved DLQ entries, oldest first.
func (w *DeliveryWorker) UnresolvedDLQ(ctx context.Context, limit int) ([]model.DeadLetterQueue, error) {
	items, err := w.dlqr.FindUnresolved(ctx, limit)
	return items, noData(err)
}

// StaleDLQ lists unresolved DLQ entries that have waited longer than age.
func (w *DeliveryWorker) StaleDLQ(ctx context.Context, age time.Duration, limit int) ([]model.DeadLetterQueue, error) {
	items, err := w.dlqr.FindOlderThan(ctx, age, limit)
	return items, noData(err)
}

// CountUnresolvedDLQ returns how many DLQ entries wait for an operator.
func (w *DeliveryWorker) CountUnresolvedDLQ(ctx context.Context) (int, error) {
	return w.dlqr.CountUnresolved(ctx)
}

// ResolveDLQItem marks a DLQ entry as handled without sending it again.
func (w *DeliveryWorker) ResolveDLQItem(ctx context.Context, id int64, resolvedBy, note string) (model.DeadLetterQueue, error) {
	entry, err := w.dlqr.Load(ctx, id)
	if IsNoData(err) {
		return entry, NewError(ErrCodeNotFound, fmt.Sprintf("DLQ item %d not found", id))
	}
	if err != nil {
		return entry, err
	}
	if entry.IsResolved {
		return entry, nil
	}

	entry.Resolve(resolvedBy, note)
	return w.dlqr.Save(ctx, entry)
}

// RequeueDLQItem puts the digest of a DLQ entry back on the queue and
// resolves the entry. The job is recreated from the stored payload when it
// was already purged.
func (w *DeliveryWorker) RequeueDLQItem(ctx context.Context, id int64, resolvedBy string) (model.Queue, error) {
	entry, err := w.dlqr.Load(ctx, id)
	if IsNoData(err) {
		return model.Queue{}, NewError(ErrCodeNotFound, fmt.Sprintf("DLQ item %d not found", id))
	}
	if err != nil {
		return model.Queue{}, err
	}
	if entry.IsResolved {
		return model.Queue{}, NewError(ErrCodeValidation, fmt.Sprintf("DLQ item %d is already resolved", id))
	}

	job, err := w.jr.Load(ctx, entry.JobID)
	if IsNoData(err) {
		job, err = w.jr.Save(ctx, model.DigestJob{
			UserID:    entry.UserID,
			Recipient: entry.Recipient,
			Payload:   entry.Payload,
			CreatedAt: time.Now(),
		})
	}
	if err != nil {
		return model.Queue{}, fmt.Errorf("failed to restore job: %w", err)
	}

	item := model.NewQueue(entry.UserID, job.ID)
	saved, err := w.qr.Save(ctx, &item)
	if err != nil {
		return model.Queue{}, fmt.Errorf("failed to requeue digest: %w", err)
	}

	entry.Resolve(resolvedBy, fmt.Sprintf("requeued as queue item %d", saved.ID))
	if _, err := w.dlqr.Save(ctx, entry); err != nil {
		w.logger.Warnf("Requeued DLQ item %d but failed to resolve it: %v", entry.ID, err)
	}

	w.logger.Infof("Requeued DLQ item %d for user %d (queue_id=%d)", entry.ID, entry.UserID, saved.ID)
	return *saved, nil
}
