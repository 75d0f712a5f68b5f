package model

import (
	"database/sql"
	"time"
)

// QueueStatus represents the lifecycle state of a queue item.
type QueueStatus string

const (
	// QueueStatusPending indicates the digest is awaiting its first send attempt.
	QueueStatusPending QueueStatus = "pending"

	// QueueStatusSent indicates the digest email was handed to the mail transport.
	QueueStatusSent QueueStatus = "sent"

	// QueueStatusFailed indicates sending failed and the item is awaiting retry.
	QueueStatusFailed QueueStatus = "failed"
)

// DefaultQueueTTL is how long a digest stays deliverable. An undelivered
// digest older than this is dropped; the next run produces a fresh one.
const DefaultQueueTTL = 24 * time.Hour

// Queue represents a digest job queued for email delivery to one user.
// It carries the retry state, timing information and error tracking.
//
// Queue items follow this lifecycle:
//  1. Created with status=PENDING by the dispatcher
//  2. Send attempted → either SENT (success) or FAILED (retry)
//  3. FAILED items retry with exponential backoff
//  4. After exceeding retry threshold → moved to Dead Letter Queue (DLQ)
type Queue struct {
	ID            int64          `json:"id" db:"id"`
	UserID        int64          `json:"userID" db:"user_id"`
	JobID         int64          `json:"jobID" db:"job_id"`
	Status        QueueStatus    `json:"status" db:"status"`
	AttemptCount  int            `json:"attemptCount" db:"attempt_count"`
	LastAttemptAt sql.NullTime   `json:"lastAttemptAt" db:"last_attempt_at"`
	NextRetryAt   sql.NullTime   `json:"nextRetryAt" db:"next_retry_at"`
	LastError     sql.NullString `json:"lastError" db:"last_error"`
	ExpiresAt     time.Time      `json:"expiresAt" db:"expires_at"`
	CompletedAt   sql.NullTime   `json:"completedAt" db:"completed_at"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for Queue.
func (t *Queue) TableName() string {
	return tablePrefix + "queue"
}

// NewQueue creates a new queue item for a digest job.
// Initial state: PENDING, AttemptCount=0, NextRetryAt=now (ready immediately).
func NewQueue(userID, jobID int64) Queue {
	now := time.Now()

	return Queue{
		UserID:      userID,
		JobID:       jobID,
		Status:      QueueStatusPending,
		NextRetryAt: sql.NullTime{Time: now, Valid: true},
		ExpiresAt:   now.Add(DefaultQueueTTL),
		CreatedAt:   now,
	}
}

// MarkFailed marks the queue item as failed and schedules the next retry attempt.
// Increments attempt count, records error message, and calculates next retry time.
func (t *Queue) MarkFailed(err error, retryAfter time.Duration) {
	now := time.Now()
	t.Status = QueueStatusFailed
	t.AttemptCount++
	t.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	t.NextRetryAt = sql.NullTime{Time: now.Add(retryAfter), Valid: true}
	if err != nil {
		t.LastError = sql.NullString{String: err.Error(), Valid: true}
	}
}

// MarkSent marks the queue item as delivered.
func (t *Queue) MarkSent() {
	now := time.Now()
	t.Status = QueueStatusSent
	t.AttemptCount++
	t.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	t.CompletedAt = sql.NullTime{Time: now, Valid: true}
}

// IsExpired checks if the queue item has passed its expiration time.
func (t *Queue) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// ShouldRetry checks if the item is ready for retry attempt.
func (t *Queue) ShouldRetry() bool {
	if t.Status != QueueStatusFailed {
		return false
	}
	if !t.NextRetryAt.Valid {
		return false
	}
	return time.Now().After(t.NextRetryAt.Time)
}

// CanAttemptDelivery validates whether a send can be attempted.
//
// Returns error if delivery cannot be attempted:
//   - ErrQueueItemExpired: Item has expired
//   - ErrQueueItemAlreadySent: Already delivered
//   - ErrMaxAttemptsExceeded: Exceeded retry limit
//   - ErrNotReadyForRetry: Too soon for retry
func (t *Queue) CanAttemptDelivery(maxAttempts int) error {
	if t.IsExpired() {
		return ErrQueueItemExpired
	}
	if t.Status == QueueStatusSent {
		return ErrQueueItemAlreadySent
	}
	if t.AttemptCount >= maxAttempts {
		return ErrMaxAttemptsExceeded
	}
	if t.Status == QueueStatusFailed && !t.ShouldRetry() {
		return ErrNotReadyForRetry
	}
	return nil
}

// GetTimeUntilRetry returns the duration until the next retry attempt.
// Returns 0 if ready for retry now, or error if no retry is scheduled.
func (t *Queue) GetTimeUntilRetry() (time.Duration, error) {
	if !t.NextRetryAt.Valid {
		return 0, ErrNoRetryScheduled
	}
	duration := time.Until(t.NextRetryAt.Time)
	if duration < 0 {
		return 0, nil
	}
	return duration, nil
}

// GetAge returns how long the queue item has existed since creation.
func (t *Queue) GetAge() time.Duration {
	return time.Since(t.CreatedAt)
}

// Domain errors returned by Queue business logic methods.
var (
	// ErrQueueItemExpired indicates the queue item has passed its expiration time.
	ErrQueueItemExpired = DomainError{Code: "QUEUE_EXPIRED", Message: "Queue item has expired"}

	// ErrQueueItemAlreadySent indicates the digest was already delivered.
	ErrQueueItemAlreadySent = DomainError{Code: "ALREADY_SENT", Message: "Queue item already sent"}

	// ErrMaxAttemptsExceeded indicates the item has reached the maximum retry attempts.
	ErrMaxAttemptsExceeded = DomainError{Code: "MAX_ATTEMPTS", Message: "Maximum delivery attempts exceeded"}

	// ErrNotReadyForRetry indicates the retry delay hasn't elapsed yet.
	ErrNotReadyForRetry = DomainError{Code: "NOT_READY", Message: "Not ready for retry yet"}

	// ErrNoRetryScheduled indicates no retry time has been set for this item.
	ErrNoRetryScheduled = DomainError{Code: "NO_RETRY", Message: "No retry scheduled"}
)

// DomainError represents a domain-level business rule violation.
type DomainError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
}

func (e DomainError) Error() string {
	return e.Message
}
