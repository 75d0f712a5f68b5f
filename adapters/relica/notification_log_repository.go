package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// NotificationLogRepository implements notify.NotificationLogRepository using Relica.
type NotificationLogRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewNotificationLogRepository creates a new NotificationLogRepository with default table prefix.
func NewNotificationLogRepository(sqlDB *sql.DB, driverName string) *NotificationLogRepository {
	return NewNotificationLogRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewNotificationLogRepositoryWithPrefix creates a new NotificationLogRepository with custom table prefix.
func NewNotificationLogRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *NotificationLogRepository {
	return &NotificationLogRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *NotificationLogRepository) tableName() string {
	return r.tablePrefix + "notification_log"
}

// Save appends a log entry.
func (r *NotificationLogRepository) Save(ctx context.Context, m model.NotificationLog) (model.NotificationLog, error) {
	if err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert(); err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to insert notification log", err)
	}
	return m, nil
}

// FindByUser returns the latest entries of a user.
func (r *NotificationLogRepository) FindByUser(ctx context.Context, userID int64, limit int) ([]model.NotificationLog, error) {
	var entries []model.NotificationLog
	q := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("user_id = ?", userID).
		OrderBy("id DESC")
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.WithContext(ctx).All(&entries); err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find notification log", err)
	}
	return entries, nil
}
