package memory

import "github.com/coregx/notify"

var (
	_ notify.LegislationRepository     = (*Legislation)(nil)
	_ notify.SubscriptionRepository    = (*Subscriptions)(nil)
	_ notify.WatermarkRepository       = (*Subscriptions)(nil)
	_ notify.UserRepository            = (*Users)(nil)
	_ notify.ProfileRepository         = (*Profiles)(nil)
	_ notify.QueueRepository           = (*Queue)(nil)
	_ notify.JobRepository             = (*Jobs)(nil)
	_ notify.DLQRepository             = (*DLQ)(nil)
	_ notify.NotificationLogRepository = (*NotificationLogs)(nil)
)

// Repositories holds all in-memory repository implementations.
// Subscription implements both notify.SubscriptionRepository and
// notify.WatermarkRepository because deleting a subscription removes its
// watermark rows.
type Repositories struct {
	Legislation     *Legislation
	Subscription    *Subscriptions
	User            *Users
	Profile         *Profiles
	Queue           *Queue
	Job             *Jobs
	DLQ             *DLQ
	NotificationLog *NotificationLogs
}

// NewRepositories creates empty repositories.
func NewRepositories() *Repositories {
	return &Repositories{
		Legislation:     NewLegislation(),
		Subscription:    NewSubscriptions(),
		User:            NewUsers(),
		Profile:         NewProfiles(),
		Queue:           NewQueue(),
		Job:             NewJobs(),
		DLQ:             NewDLQ(),
		NotificationLog: NewNotificationLogs(),
	}
}
