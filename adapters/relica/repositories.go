package relica

import (
	"database/sql"

	"github.com/coregx/notify"
)

var (
	_ notify.LegislationRepository     = (*LegislationRepository)(nil)
	_ notify.SubscriptionRepository    = (*SubscriptionRepository)(nil)
	_ notify.WatermarkRepository       = (*SubscriptionRepository)(nil)
	_ notify.UserRepository            = (*UserRepository)(nil)
	_ notify.ProfileRepository         = (*ProfileRepository)(nil)
	_ notify.QueueRepository           = (*QueueRepository)(nil)
	_ notify.JobRepository             = (*JobRepository)(nil)
	_ notify.DLQRepository             = (*DLQRepository)(nil)
	_ notify.NotificationLogRepository = (*NotificationLogRepository)(nil)
)

// Repositories holds all repository implementations.
// Subscription serves both the registry and the watermarks.
type Repositories struct {
	Legislation     *LegislationRepository
	Subscription    *SubscriptionRepository
	User            *UserRepository
	Profile         *ProfileRepository
	Queue           *QueueRepository
	Job             *JobRepository
	DLQ             *DLQRepository
	NotificationLog *NotificationLogRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// Tables owned by this module use the "notify_" prefix; legislative tables
// are read without a prefix.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, defaultPrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Legislation:     NewLegislationRepository(db, driverName),
		Subscription:    NewSubscriptionRepositoryWithPrefix(db, driverName, prefix),
		User:            NewUserRepositoryWithPrefix(db, driverName, prefix),
		Profile:         NewProfileRepositoryWithPrefix(db, driverName, prefix),
		Queue:           NewQueueRepositoryWithPrefix(db, driverName, prefix),
		Job:             NewJobRepositoryWithPrefix(db, driverName, prefix),
		DLQ:             NewDLQRepositoryWithPrefix(db, driverName, prefix),
		NotificationLog: NewNotificationLogRepositoryWithPrefix(db, driverName, prefix),
	}
}
