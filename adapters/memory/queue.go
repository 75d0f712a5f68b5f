package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

// Queue is an in-memory notify.QueueRepository.
type Queue struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.Queue
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{rows: make(map[int64]model.Queue)}
}

// Load implements notify.QueueRepository.
func (r *Queue) Load(_ context.Context, id int64) (model.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.rows[id]
	if !ok {
		return model.Queue{}, notify.ErrNoData
	}
	return q, nil
}

// Save implements notify.QueueRepository.
func (r *Queue) Save(_ context.Context, m *model.Queue) (*model.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.ID] = *m
	return m, nil
}

// Delete implements notify.QueueRepository.
func (r *Queue) Delete(_ context.Context, m *model.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, m.ID)
	return nil
}

// FindByJobID implements notify.QueueRepository.
func (r *Queue) FindByJobID(_ context.Context, jobID int64) (model.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, q := range r.rows {
		if q.JobID == jobID {
			return q, nil
		}
	}
	return model.Queue{}, notify.ErrNoData
}

// FindByUserID implements notify.QueueRepository.
func (r *Queue) FindByUserID(_ context.Context, userID int64) ([]model.Queue, error) {
	return r.filter(0, func(q model.Queue) bool { return q.UserID == userID }, byCreated), nil
}

// FindPendingItems implements notify.QueueRepository.
func (r *Queue) FindPendingItems(_ context.Context, limit int) ([]model.Queue, error) {
	now := time.Now()
	return r.filter(limit, func(q model.Queue) bool {
		return q.Status == model.QueueStatusPending && q.NextRetryAt.Valid && !q.NextRetryAt.Time.After(now)
	}, byCreated), nil
}

// FindRetryableItems implements notify.QueueRepository.
func (r *Queue) FindRetryableItems(_ context.Context, limit int) ([]model.Queue, error) {
	now := time.Now()
	return r.filter(limit, func(q model.Queue) bool {
		return q.Status == model.QueueStatusFailed && q.NextRetryAt.Valid && !q.NextRetryAt.Time.After(now)
	}, byCreated), nil
}

// FindExpiredItems implements notify.QueueRepository.
func (r *Queue) FindExpiredItems(_ context.Context, limit int) ([]model.Queue, error) {
	now := time.Now()
	return r.filter(limit, func(q model.Queue) bool {
		return q.Status != model.QueueStatusSent && !q.ExpiresAt.After(now)
	}, func(a, b model.Queue) bool { return a.ExpiresAt.Before(b.ExpiresAt) }), nil
}

func byCreated(a, b model.Queue) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r *Queue) filter(limit int, keep func(model.Queue) bool, less func(a, b model.Queue) bool) []model.Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Queue
	for _, q := range r.rows {
		if keep(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Jobs is an in-memory notify.JobRepository.
type Jobs struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.DigestJob
}

// NewJobs creates an empty store.
func NewJobs() *Jobs {
	return &Jobs{rows: make(map[int64]model.DigestJob)}
}

// Load implements notify.JobRepository.
func (r *Jobs) Load(_ context.Context, id int64) (model.DigestJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.rows[id]
	if !ok {
		return model.DigestJob{}, notify.ErrNoData
	}
	return j, nil
}

// Save implements notify.JobRepository.
func (r *Jobs) Save(_ context.Context, m model.DigestJob) (model.DigestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.ID] = m
	return m, nil
}

// Delete implements notify.JobRepository.
func (r *Jobs) Delete(_ context.Context, m model.DigestJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, m.ID)
	return nil
}

// FindOutdatedJobs implements notify.JobRepository.
func (r *Jobs) FindOutdatedJobs(_ context.Context, days int) ([]model.DigestJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []model.DigestJob
	for _, j := range r.rows {
		if j.CreatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// All returns every stored job ordered by id.
func (r *Jobs) All() []model.DigestJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DigestJob, 0, len(r.rows))
	for _, j := range r.rows {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DLQ is an in-memory notify.DLQRepository.
type DLQ struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]model.DeadLetterQueue
}

// NewDLQ creates an empty dead letter queue.
func NewDLQ() *DLQ {
	return &DLQ{rows: make(map[int64]model.DeadLetterQueue)}
}

// Load implements notify.DLQRepository.
func (r *DLQ) Load(_ context.Context, id int64) (model.DeadLetterQueue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.rows[id]
	if !ok {
		return model.DeadLetterQueue{}, notify.ErrNoData
	}
	return d, nil
}

// Save implements notify.DLQRepository.
func (r *DLQ) Save(_ context.Context, m model.DeadLetterQueue) (model.DeadLetterQueue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	}
	r.rows[m.ID] = m
	return m, nil
}

// Delete implements notify.DLQRepository.
func (r *DLQ) Delete(_ context.Context, m model.DeadLetterQueue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, m.ID)
	return nil
}

// FindByUser implements notify.DLQRepository.
func (r *DLQ) FindByUser(_ context.Context, userID int64, limit int) ([]model.DeadLetterQueue, error) {
	out := r.filter(func(d model.DeadLetterQueue) bool { return d.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].MovedToDLQAt.After(out[j].MovedToDLQAt) })
	return truncate(out, limit), nil
}

// FindUnresolved implements notify.DLQRepository.
func (r *DLQ) FindUnresolved(_ context.Context, limit int) ([]model.DeadLetterQueue, error) {
	out := r.filter(func(d model.DeadLetterQueue) bool { return !d.IsResolved })
	sort.Slice(out, func(i, j int) bool { return out[i].MovedToDLQAt.Before(out[j].MovedToDLQAt) })
	return truncate(out, limit), nil
}

// FindOlderThan implements notify.DLQRepository.
func (r *DLQ) FindOlderThan(_ context.Context, threshold time.Duration, limit int) ([]model.DeadLetterQueue, error) {
	out := r.filter(func(d model.DeadLetterQueue) bool { return !d.IsResolved && d.IsOld(threshold) })
	sort.Slice(out, func(i, j int) bool { return out[i].MovedToDLQAt.Before(out[j].MovedToDLQAt) })
	return truncate(out, limit), nil
}

// FindByJobID implements notify.DLQRepository.
func (r *DLQ) FindByJobID(_ context.Context, jobID int64) (model.DeadLetterQueue, error) {
	out := r.filter(func(d model.DeadLetterQueue) bool { return d.JobID == jobID })
	if len(out) == 0 {
		return model.DeadLetterQueue{}, notify.ErrNoData
	}
	return out[0], nil
}

// GetStats implements notify.DLQRepository.
func (r *DLQ) GetStats(_ context.Context) (model.DLQStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	stats := model.DLQStats{LastUpdated: now}
	var oldest, newest time.Time
	for _, d := range r.rows {
		stats.TotalItems++
		if d.IsResolved {
			stats.ResolvedItems++
			continue
		}
		stats.UnresolvedItems++
		if oldest.IsZero() || d.MovedToDLQAt.Before(oldest) {
			oldest = d.MovedToDLQAt
		}
		if newest.IsZero() || d.MovedToDLQAt.After(newest) {
			newest = d.MovedToDLQAt
			stats.TopFailureReason = d.FailureReason
		}
	}
	if !oldest.IsZero() {
		stats.OldestItemAge = int64(now.Sub(oldest).Seconds())
		stats.NewestItemAge = int64(now.Sub(newest).Seconds())
	}
	return stats, nil
}

// CountUnresolved implements notify.DLQRepository.
func (r *DLQ) CountUnresolved(_ context.Context) (int, error) {
	return len(r.filter(func(d model.DeadLetterQueue) bool { return !d.IsResolved })), nil
}

func (r *DLQ) filter(keep func(model.DeadLetterQueue) bool) []model.DeadLetterQueue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.DeadLetterQueue
	for _, d := range r.rows {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// NotificationLogs is an in-memory notify.NotificationLogRepository.
type NotificationLogs struct {
	mu     sync.RWMutex
	nextID int64
	rows   []model.NotificationLog
}

// NewNotificationLogs creates an empty log.
func NewNotificationLogs() *NotificationLogs {
	return &NotificationLogs{}
}

// Save implements notify.NotificationLogRepository.
func (r *NotificationLogs) Save(_ context.Context, m model.NotificationLog) (model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.rows = append(r.rows, m)
	return m, nil
}

// FindByUser implements notify.NotificationLogRepository.
func (r *NotificationLogs) FindByUser(_ context.Context, userID int64, limit int) ([]model.NotificationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.NotificationLog
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID {
			out = append(out, r.rows[i])
		}
	}
	return truncate(out, limit), nil
}
