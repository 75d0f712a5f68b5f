package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// DLQRepository implements notify.DLQRepository using Relica.
type DLQRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewDLQRepository creates a new DLQRepository with default table prefix.
func NewDLQRepository(sqlDB *sql.DB, driverName string) *DLQRepository {
	return NewDLQRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewDLQRepositoryWithPrefix creates a new DLQRepository with custom table prefix.
func NewDLQRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DLQRepository {
	return &DLQRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *DLQRepository) tableName() string {
	return r.tablePrefix + "dlq"
}

// Load retrieves a DLQ item by ID.
func (r *DLQRepository) Load(ctx context.Context, id int64) (model.DeadLetterQueue, error) {
	var dlq model.DeadLetterQueue
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&dlq)
	if err != nil {
		return dlq, loadErr(err, "failed to load DLQ item")
	}
	return dlq, nil
}

// Save creates or updates a DLQ item.
func (r *DLQRepository) Save(ctx context.Context, m model.DeadLetterQueue) (model.DeadLetterQueue, error) {
	if m.ID == 0 {
		if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
			return m, insertErr(err, "failed to insert DLQ item")
		}
		return m, nil
	}

	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to update DLQ", err)
	}
	return m, nil
}

// Delete removes a DLQ item.
func (r *DLQRepository) Delete(ctx context.Context, m model.DeadLetterQueue) error {
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Delete()
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete DLQ", err)
	}
	return nil
}

// FindByUser retrieves the DLQ items of a user, newest first.
func (r *DLQRepository) FindByUser(ctx context.Context, userID int64, limit int) ([]model.DeadLetterQueue, error) {
	var dlqs []model.DeadLetterQueue
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ?", userID).
		OrderBy("moved_to_dlq_at DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&dlqs)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find DLQ items by user", err)
	}
	if len(dlqs) == 0 {
		return nil, notify.ErrNoData
	}
	return dlqs, nil
}

// FindUnresolved retrieves unresolved DLQ items.
func (r *DLQRepository) FindUnresolved(ctx context.Context, limit int) ([]model.DeadLetterQueue, error) {
	var dlqs []model.DeadLetterQueue
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("is_resolved = ?", false).
		OrderBy("moved_to_dlq_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&dlqs)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find unresolved DLQ items", err)
	}
	if len(dlqs) == 0 {
		return nil, notify.ErrNoData
	}
	return dlqs, nil
}

// FindOlderThan retrieves unresolved DLQ items that have waited longer than threshold.
func (r *DLQRepository) FindOlderThan(ctx context.Context, threshold time.Duration, limit int) ([]model.DeadLetterQueue, error) {
	var dlqs []model.DeadLetterQueue
	cutoffTime := time.Now().Add(-threshold)
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("is_resolved = ? AND moved_to_dlq_at < ?", false, cutoffTime).
		OrderBy("moved_to_dlq_at ASC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&dlqs)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find old DLQ items", err)
	}
	if len(dlqs) == 0 {
		return nil, notify.ErrNoData
	}
	return dlqs, nil
}

// FindByJobID retrieves the most recent DLQ item of a digest job.
func (r *DLQRepository) FindByJobID(ctx context.Context, jobID int64) (model.DeadLetterQueue, error) {
	var dlq model.DeadLetterQueue
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("job_id = ?", jobID).
		OrderBy("id DESC").
		Limit(1).
		One(&dlq)
	if err != nil {
		return dlq, loadErr(err, "failed to find DLQ item by job")
	}
	return dlq, nil
}

// GetStats retrieves DLQ statistics.
func (r *DLQRepository) GetStats(ctx context.Context) (model.DLQStats, error) {
	var stats model.DLQStats
	var total, unresolved countRow

	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").From(r.tableName()).WithContext(ctx).One(&total)
	if err != nil {
		return stats, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to count total DLQ items", err)
	}
	stats.TotalItems = int(total.N)

	err = r.db.WithContext(ctx).Select("COUNT(*) AS n").From(r.tableName()).
		Where("is_resolved = ?", false).WithContext(ctx).One(&unresolved)
	if err != nil {
		return stats, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to count unresolved DLQ items", err)
	}
	stats.UnresolvedItems = int(unresolved.N)
	stats.ResolvedItems = stats.TotalItems - stats.UnresolvedItems
	stats.LastUpdated = time.Now()
	if stats.UnresolvedItems == 0 {
		return stats, nil
	}

	var oldest, newest model.DeadLetterQueue
	err = r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("is_resolved = ?", false).OrderBy("moved_to_dlq_at ASC").Limit(1).One(&oldest)
	if err != nil {
		return stats, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to load oldest DLQ item", err)
	}
	err = r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("is_resolved = ?", false).OrderBy("moved_to_dlq_at DESC").Limit(1).One(&newest)
	if err != nil {
		return stats, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to load newest DLQ item", err)
	}
	stats.OldestItemAge = int64(oldest.GetAge().Seconds())
	stats.NewestItemAge = int64(newest.GetAge().Seconds())
	stats.TopFailureReason = newest.FailureReason
	return stats, nil
}

// CountUnresolved returns the count of unresolved DLQ items.
func (r *DLQRepository) CountUnresolved(ctx context.Context) (int, error) {
	var count countRow
	err := r.db.WithContext(ctx).Select("COUNT(*) AS n").From(r.tableName()).
		Where("is_resolved = ?", false).WithContext(ctx).One(&count)
	if err != nil {
		return 0, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to count unresolved DLQ items", err)
	}
	return int(count.N), nil
}
