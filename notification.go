package notify

import (
	"context"

	"github.com/coregx/notify/model"
)

// NotificationService receives callbacks about delivery problems and
// subscription changes. Implementations might alert operators or feed
// monitoring systems.
type NotificationService interface {
	// NotifyDLQItemAdded is called when a digest is moved to the Dead Letter Queue.
	NotifyDLQItemAdded(ctx context.Context, dlq model.DeadLetterQueue) error

	// NotifyDeliveryFailure is called after every failed send attempt.
	NotifyDeliveryFailure(ctx context.Context, queue *model.Queue, err error) error

	// NotifySubscriptionCreated is called when a subscription is created.
	NotifySubscriptionCreated(ctx context.Context, ref model.SubscriptionRef) error

	// NotifySubscriptionDeleted is called when a subscription is removed.
	NotifySubscriptionDeleted(ctx context.Context, ref model.SubscriptionRef) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
type NoOpNotificationService struct{}

// NotifyDLQItemAdded does nothing.
func (n *NoOpNotificationService) NotifyDLQItemAdded(_ context.Context, _ model.DeadLetterQueue) error {
	return nil
}

// NotifyDeliveryFailure does nothing.
func (n *NoOpNotificationService) NotifyDeliveryFailure(_ context.Context, _ *model.Queue, _ error) error {
	return nil
}

// NotifySubscriptionCreated does nothing.
func (n *NoOpNotificationService) NotifySubscriptionCreated(_ context.Context, _ model.SubscriptionRef) error {
	return nil
}

// NotifySubscriptionDeleted does nothing.
func (n *NoOpNotificationService) NotifySubscriptionDeleted(_ context.Context, _ model.SubscriptionRef) error {
	return nil
}

// LoggingNotificationService logs every callback.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyDLQItemAdded logs DLQ item addition.
func (n *LoggingNotificationService) NotifyDLQItemAdded(_ context.Context, dlq model.DeadLetterQueue) error {
	n.logger.Warnf("Digest moved to DLQ: job_id=%d, user_id=%d, attempts=%d, reason=%s",
		dlq.JobID, dlq.UserID, dlq.AttemptCount, dlq.FailureReason)
	return nil
}

// NotifyDeliveryFailure logs delivery failure.
func (n *LoggingNotificationService) NotifyDeliveryFailure(_ context.Context, queue *model.Queue, err error) error {
	n.logger.Warnf("Digest delivery failed: queue_id=%d, job_id=%d, attempt=%d, error=%v",
		queue.ID, queue.JobID, queue.AttemptCount, err)
	return nil
}

// NotifySubscriptionCreated logs subscription creation.
func (n *LoggingNotificationService) NotifySubscriptionCreated(_ context.Context, ref model.SubscriptionRef) error {
	n.logger.Infof("Subscription created: kind=%s, id=%d, user_id=%d, target=%s",
		ref.Kind, ref.ID, ref.UserID, ref.Target)
	return nil
}

// NotifySubscriptionDeleted logs subscription removal.
func (n *LoggingNotificationService) NotifySubscriptionDeleted(_ context.Context, ref model.SubscriptionRef) error {
	n.logger.Infof("Subscription deleted: kind=%s, id=%d, user_id=%d", ref.Kind, ref.ID, ref.UserID)
	return nil
}
