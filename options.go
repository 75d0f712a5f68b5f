package notify

import (
	"fmt"

	"github.com/coregx/notify/retry"
)

// Option is a function that configures a DeliveryWorker.
//
// Example:
//
//	worker, err := notify.NewDeliveryWorker(
//	    notify.WithRepositories(queueRepo, jobRepo, dlqRepo),
//	    notify.WithMailer(mailer),
//	    notify.WithLogger(logger),
//	    notify.WithBatchSize(200), // optional
//	)
type Option func(*DeliveryWorker) error

// WithRepositories sets the required repository dependencies for the worker.
// All three repositories are required and must not be nil.
//
// Parameters:
//   - queueRepo: Queue item persistence
//   - jobRepo: Serialized digest persistence
//   - dlqRepo: Dead Letter Queue persistence
func WithRepositories(
	queueRepo QueueRepository,
	jobRepo JobRepository,
	dlqRepo DLQRepository,
) Option {
	return func(w *DeliveryWorker) error {
		if queueRepo == nil {
			return fmt.Errorf("queueRepo cannot be nil")
		}
		if jobRepo == nil {
			return fmt.Errorf("jobRepo cannot be nil")
		}
		if dlqRepo == nil {
			return fmt.Errorf("dlqRepo cannot be nil")
		}

		w.qr = queueRepo
		w.jr = jobRepo
		w.dlqr = dlqRepo
		return nil
	}
}

// WithMailer sets the component that renders and sends digests.
// This is a required option for NewDeliveryWorker.
func WithMailer(mailer DigestMailer) Option {
	return func(w *DeliveryWorker) error {
		if mailer == nil {
			return fmt.Errorf("mailer cannot be nil")
		}
		w.mailer = mailer
		return nil
	}
}

// WithLogger sets the logger instance for the worker.
// This is a required option for NewDeliveryWorker.
func WithLogger(logger Logger) Option {
	return func(w *DeliveryWorker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// WithRetryStrategy sets a custom retry strategy.
// If not provided, retry.DefaultStrategy() is used:
// 2m, 4m, 8m, 16m, then the DLQ.
func WithRetryStrategy(strategy retry.Strategy) Option {
	return func(w *DeliveryWorker) error {
		w.retryStrategy = strategy
		return nil
	}
}

// WithBatchSize sets the number of queue items to process per batch.
// Must be > 0. Default is 100.
func WithBatchSize(size int) Option {
	return func(w *DeliveryWorker) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be > 0, got %d", size)
		}
		w.batchSize = size
		return nil
	}
}

// WithNotifications sets the service receiving delivery failure and DLQ callbacks.
// If not provided, NoOpNotificationService is used.
func WithNotifications(service NotificationService) Option {
	return func(w *DeliveryWorker) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		w.notificationService = service
		return nil
	}
}

// WithNotificationLog records one log entry per send attempt.
func WithNotificationLog(repo NotificationLogRepository) Option {
	return func(w *DeliveryWorker) error {
		if repo == nil {
			return fmt.Errorf("notification log repository cannot be nil")
		}
		w.logs = repo
		return nil
	}
}

// WithJobRetention sets how many days delivered digest jobs are kept.
// Zero disables purging.
func WithJobRetention(days int) Option {
	return func(w *DeliveryWorker) error {
		if days < 0 {
			return fmt.Errorf("job retention must be >= 0, got %d", days)
		}
		w.jobRetentionDays = days
		return nil
	}
}
