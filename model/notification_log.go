package model

import (
	"database/sql"
	"time"
)

// Delivery outcomes recorded in the notification log.
const (
	LogStatusSent    = "sent"
	LogStatusFailed  = "failed"
	LogStatusSkipped = "skipped"
)

// NotificationLog records one digest outcome for one user.
// Skipped entries have no job: the digest was empty.
type NotificationLog struct {
	ID            int64          `json:"id" db:"id"`
	UserID        int64          `json:"userID" db:"user_id"`
	JobID         int64          `json:"jobID" db:"job_id"`
	Recipient     string         `json:"recipient" db:"recipient"`
	Status        string         `json:"status" db:"status"`
	SkippedReason sql.NullString `json:"skippedReason" db:"skipped_reason"`
	SentAt        sql.NullTime   `json:"sentAt" db:"sent_at"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for NotificationLog.
func (t NotificationLog) TableName() string {
	return tablePrefix + "notification_log"
}

// NewNotificationLog creates a log entry for a job.
func NewNotificationLog(userID, jobID int64, recipient, status string) NotificationLog {
	now := time.Now()
	l := NotificationLog{
		UserID:    userID,
		JobID:     jobID,
		Recipient: recipient,
		Status:    status,
		CreatedAt: now,
	}
	if status == LogStatusSent {
		l.SentAt = sql.NullTime{Time: now, Valid: true}
	}
	return l
}

// NewSkippedLog records that no digest was produced for a user.
func NewSkippedLog(userID int64, recipient, reason string) NotificationLog {
	l := NewNotificationLog(userID, 0, recipient, LogStatusSkipped)
	l.SkippedReason = sql.NullString{String: reason, Valid: reason != ""}
	return l
}
