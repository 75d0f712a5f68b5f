package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// QueueRepository implements notify.QueueRepository using Relica.
type QueueRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewQueueRepository creates a new QueueRepository with default table prefix.
func NewQueueRepository(sqlDB *sql.DB, driverName string) *QueueRepository {
	return NewQueueRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewQueueRepositoryWithPrefix creates a new QueueRepository with custom table prefix.
func NewQueueRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *QueueRepository {
	return &QueueRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		tablePrefix: prefix,
	}
}

func (r *QueueRepository) tableName() string {
	return r.tablePrefix + "queue"
}

// Load retrieves a queue item by ID.
func (r *QueueRepository) Load(ctx context.Context, id int64) (model.Queue, error) {
	var item model.Queue
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&item)
	if err != nil {
		return item, loadErr(err, "failed to load queue item")
	}
	return item, nil
}

// Save creates or updates a queue item. Insert populates m.ID.
func (r *QueueRepository) Save(ctx context.Context, m *model.Queue) (*model.Queue, error) {
	if m.ID == 0 {
		if err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Insert(); err != nil {
			return m, insertErr(err, "failed to insert queue item")
		}
		return m, nil
	}

	if err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Update(); err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to update queue item", err)
	}
	return m, nil
}

// Delete removes a queue item.
func (r *QueueRepository) Delete(ctx context.Context, m *model.Queue) error {
	if err := r.db.WithContext(ctx).Model(m).Table(r.tableName()).Delete(); err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete queue item", err)
	}
	return nil
}

// FindByJobID retrieves the queue item of a digest job.
func (r *QueueRepository) FindByJobID(ctx context.Context, jobID int64) (model.Queue, error) {
	var item model.Queue
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("job_id = ?", jobID).One(&item)
	if err != nil {
		return item, loadErr(err, "failed to find queue item by job")
	}
	return item, nil
}

// FindByUserID retrieves all queue items of a user, newest first.
func (r *QueueRepository) FindByUserID(ctx context.Context, userID int64) ([]model.Queue, error) {
	return r.find(ctx, "failed to find queue items by user", 0, "created_at DESC",
		"user_id = ?", userID)
}

// FindPendingItems retrieves pending items ready for their first send.
func (r *QueueRepository) FindPendingItems(ctx context.Context, limit int) ([]model.Queue, error) {
	return r.find(ctx, "failed to find pending items", limit, "created_at ASC",
		"status = ? AND next_retry_at <= ?", model.QueueStatusPending, time.Now())
}

// FindRetryableItems retrieves failed items whose retry time has come.
func (r *QueueRepository) FindRetryableItems(ctx context.Context, limit int) ([]model.Queue, error) {
	return r.find(ctx, "failed to find retryable items", limit, "created_at ASC",
		"status = ? AND next_retry_at <= ?", model.QueueStatusFailed, time.Now())
}

// FindExpiredItems retrieves undelivered items past their expiry.
func (r *QueueRepository) FindExpiredItems(ctx context.Context, limit int) ([]model.Queue, error) {
	return r.find(ctx, "failed to find expired items", limit, "expires_at ASC",
		"expires_at <= ? AND status != ?", time.Now(), model.QueueStatusSent)
}

// find runs a filtered select. A zero limit means no limit.
// Returns ErrNoData when nothing matches.
func (r *QueueRepository) find(ctx context.Context, message string, limit int, orderBy, where string, args ...interface{}) ([]model.Queue, error) {
	var items []model.Queue

	q := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where(where, args...).
		OrderBy(orderBy)
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.WithContext(ctx).All(&items); err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, message, err)
	}

	if len(items) == 0 {
		return nil, notify.ErrNoData
	}
	return items, nil
}
