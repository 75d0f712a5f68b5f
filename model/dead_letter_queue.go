package model

import (
	"time"
)

// DeadLetterQueue is a digest that could not be delivered after the retry
// threshold was reached. Entries stay until an operator resolves them.
type DeadLetterQueue struct {
	ID              int64  `json:"id" db:"id"`
	UserID          int64  `json:"userID" db:"user_id"`
	JobID           int64  `json:"jobID" db:"job_id"`
	OriginalQueueID int64  `json:"originalQueueId" db:"original_queue_id"`
	Recipient       string `json:"recipient" db:"recipient"`

	AttemptCount  int    `json:"attemptCount" db:"attempt_count"`
	LastError     string `json:"lastError" db:"last_error"`
	FailureReason string `json:"failureReason" db:"failure_reason"`

	FirstAttemptAt time.Time `json:"firstAttemptAt" db:"first_attempt_at"`
	LastAttemptAt  time.Time `json:"lastAttemptAt" db:"last_attempt_at"`
	MovedToDLQAt   time.Time `json:"movedToDlqAt" db:"moved_to_dlq_at"`

	// Payload is the serialized digest, copied so the entry survives job cleanup.
	Payload string `json:"payload" db:"payload"`

	IsResolved     bool       `json:"isResolved" db:"is_resolved"`
	ResolvedAt     *time.Time `json:"resolvedAt" db:"resolved_at"`
	ResolvedBy     string     `json:"resolvedBy" db:"resolved_by"`
	ResolutionNote string     `json:"resolutionNote" db:"resolution_note"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for DeadLetterQueue.
func (d DeadLetterQueue) TableName() string {
	return tablePrefix + "dlq"
}

// NewDeadLetterQueue builds a DLQ entry from a failed queue item and its job.
func NewDeadLetterQueue(item Queue, job DigestJob, failureReason string) DeadLetterQueue {
	now := time.Now()
	lastAttempt := now
	if item.LastAttemptAt.Valid {
		lastAttempt = item.LastAttemptAt.Time
	}

	return DeadLetterQueue{
		UserID:          item.UserID,
		JobID:           item.JobID,
		OriginalQueueID: item.ID,
		Recipient:       job.Recipient,
		AttemptCount:    item.AttemptCount,
		LastError:       item.LastError.String,
		FailureReason:   failureReason,
		FirstAttemptAt:  item.CreatedAt,
		LastAttemptAt:   lastAttempt,
		MovedToDLQAt:    now,
		Payload:         job.Payload,
		CreatedAt:       now,
	}
}

// Resolve marks the entry as handled by an operator.
func (d *DeadLetterQueue) Resolve(resolvedBy, note string) {
	now := time.Now()
	d.IsResolved = true
	d.ResolvedAt = &now
	d.ResolvedBy = resolvedBy
	d.ResolutionNote = note
}

// GetAge returns how long the entry has been in the DLQ.
func (d *DeadLetterQueue) GetAge() time.Duration {
	return time.Since(d.MovedToDLQAt)
}

// IsOld reports whether the entry has waited longer than threshold.
func (d *DeadLetterQueue) IsOld(threshold time.Duration) bool {
	return d.GetAge() > threshold
}

// DLQStats summarizes the dead letter queue.
type DLQStats struct {
	TotalItems       int       `json:"totalItems"`
	UnresolvedItems  int       `json:"unresolvedItems"`
	ResolvedItems    int       `json:"resolvedItems"`
	OldestItemAge    int64     `json:"oldestItemAge"` // Seconds
	NewestItemAge    int64     `json:"newestItemAge"` // Seconds
	TopFailureReason string    `json:"topFailureReason"`
	LastUpdated      time.Time `json:"lastUpdated"`
}
