package notify

import (
	"context"
	"fmt"

	"github.com/juju/clock"

	"github.com/coregx/notify/model"
)

// Dispatcher hands a finished digest over for asynchronous delivery.
// Dispatch returns once the digest is durably queued; sending happens later.
type Dispatcher interface {
	Dispatch(ctx context.Context, d *model.Digest) (*DispatchResult, error)
}

// DispatchResult identifies the queued digest.
type DispatchResult struct {
	JobID   int64
	QueueID int64
}

// QueueDispatcher stores digests as jobs and creates a queue item for the
// DeliveryWorker to pick up.
type QueueDispatcher struct {
	jobRepo   JobRepository
	queueRepo QueueRepository
	clock     clock.Clock
	logger    Logger
}

// DispatcherOption configures a QueueDispatcher.
type DispatcherOption func(*QueueDispatcher) error

// NewQueueDispatcher creates a new QueueDispatcher with the provided options.
//
// Required options:
//   - WithDispatcherRepositories: job and queue repositories
//   - WithDispatcherLogger: logger instance
//
// Example:
//
//	dispatcher, err := notify.NewQueueDispatcher(
//	    notify.WithDispatcherRepositories(repos.Job, repos.Queue),
//	    notify.WithDispatcherLogger(logger),
//	)
func NewQueueDispatcher(opts ...DispatcherOption) (*QueueDispatcher, error) {
	d := &QueueDispatcher{clock: clock.WallClock}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply dispatcher option", err)
		}
	}

	if d.jobRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "JobRepository is required (use WithDispatcherRepositories)")
	}
	if d.queueRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "QueueRepository is required (use WithDispatcherRepositories)")
	}
	if d.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithDispatcherLogger)")
	}

	return d, nil
}

// WithDispatcherRepositories sets the required repository dependencies.
func WithDispatcherRepositories(jobRepo JobRepository, queueRepo QueueRepository) DispatcherOption {
	return func(d *QueueDispatcher) error {
		if jobRepo == nil {
			return fmt.Errorf("jobRepo cannot be nil")
		}
		if queueRepo == nil {
			return fmt.Errorf("queueRepo cannot be nil")
		}

		d.jobRepo = jobRepo
		d.queueRepo = queueRepo
		return nil
	}
}

// WithDispatcherLogger sets the logger instance.
func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *QueueDispatcher) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		d.logger = logger
		return nil
	}
}

// WithDispatcherClock sets the clock used for job timestamps.
func WithDispatcherClock(clk clock.Clock) DispatcherOption {
	return func(d *QueueDispatcher) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		d.clock = clk
		return nil
	}
}

// Dispatch stores the digest and queues it for delivery.
//
// The process:
//  1. Serialize the digest into a job
//  2. Save the job
//  3. Create a pending queue item for the job
func (d *QueueDispatcher) Dispatch(ctx context.Context, digest *model.Digest) (*DispatchResult, error) {
	if digest == nil || digest.Empty() {
		return nil, NewError(ErrCodeValidation, "digest is empty")
	}
	if digest.Recipient.UserID == 0 {
		return nil, NewError(ErrCodeValidation, "digest recipient is required")
	}

	job, err := model.NewDigestJob(digest, d.clock.Now())
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "failed to serialize digest", err)
	}
	job, err = d.jobRepo.Save(ctx, job)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to save digest job", err)
	}

	item := model.NewQueue(job.UserID, job.ID)
	saved, err := d.queueRepo.Save(ctx, &item)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to create queue item", err)
	}

	digestsDispatched.Inc()
	d.logger.Infof("Digest queued: job=%d, queue_id=%d, user=%d", job.ID, saved.ID, job.UserID)

	return &DispatchResult{JobID: job.ID, QueueID: saved.ID}, nil
}
