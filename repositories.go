package notify

import (
	"context"
	"time"

	"github.com/coregx/notify/model"
)

// LegislationRepository reads the legislative records owned by the host
// application. It is read-only from the point of view of this library.
type LegislationRepository interface {
	// LoadBill retrieves a bill by OCD id.
	// Returns ErrNoData if not found.
	LoadBill(ctx context.Context, id string) (model.Bill, error)

	// FindBillBySlug retrieves a bill by its URL slug.
	// Returns ErrNoData if not found.
	FindBillBySlug(ctx context.Context, slug string) (model.Bill, error)

	// FindBillsByIDs retrieves the bills with the given ids created at or after since.
	// A zero since disables the date filter. Unknown ids are ignored.
	FindBillsByIDs(ctx context.Context, ids []string, since time.Time) ([]model.Bill, error)

	// LoadPerson retrieves a person by id.
	// Returns ErrNoData if not found.
	LoadPerson(ctx context.Context, id string) (model.Person, error)

	// FindPersonBySlug retrieves a person by URL slug.
	// Returns ErrNoData if not found.
	FindPersonBySlug(ctx context.Context, slug string) (model.Person, error)

	// LoadOrganization retrieves an organization by id.
	// Returns ErrNoData if not found.
	LoadOrganization(ctx context.Context, id string) (model.Organization, error)

	// FindOrganizationBySlug retrieves an organization by URL slug.
	// Returns ErrNoData if not found.
	FindOrganizationBySlug(ctx context.Context, slug string) (model.Organization, error)

	// FindActionsAfter returns the actions of a bill whose order is strictly
	// greater than afterOrder, ascending by order.
	// Returns empty slice if none found.
	FindActionsAfter(ctx context.Context, billID string, afterOrder int) ([]model.Action, error)

	// MaxActionOrder returns the highest action order of a bill, or
	// model.NoOrderSeen when the bill has no actions.
	MaxActionOrder(ctx context.Context, billID string) (int, error)

	// FindCommitteeActions returns every action taken by an organization,
	// ordered by bill id then order ascending.
	FindCommitteeActions(ctx context.Context, organizationID string) ([]model.Action, error)

	// FindSponsorships returns every sponsorship of a person.
	FindSponsorships(ctx context.Context, personID string) ([]model.Sponsorship, error)

	// FindParticipantEvents returns events the organization participates in
	// that were created at or after since.
	FindParticipantEvents(ctx context.Context, organizationID string, since time.Time) ([]model.Event, error)

	// FindEventsChangedSince returns events created or updated at or after since.
	FindEventsChangedSince(ctx context.Context, since time.Time) ([]model.Event, error)
}

// SubscriptionRepository is the subscription registry. Subscriptions of all
// six kinds belong to exactly one user.
type SubscriptionRepository interface {
	// ListUserIDs returns the ids of users holding at least one subscription,
	// ascending.
	ListUserIDs(ctx context.Context) ([]int64, error)

	// ListForUser returns every subscription of a user grouped by kind.
	ListForUser(ctx context.Context, userID int64) (model.UserSubscriptions, error)

	// FindRef looks up a subscription by owner and target. The target is the
	// bill, person or organization id, the canonical search params, or empty
	// for the all-events kind.
	// Returns ErrNoData if not found.
	FindRef(ctx context.Context, kind model.Kind, userID int64, target string) (model.SubscriptionRef, error)

	// LoadRef retrieves a subscription reference by kind and id.
	// Returns ErrNoData if not found.
	LoadRef(ctx context.Context, kind model.Kind, id int64) (model.SubscriptionRef, error)

	// Delete removes a subscription together with its seen-sponsorship and
	// seen-bill rows.
	Delete(ctx context.Context, ref model.SubscriptionRef) error

	// SaveBillAction creates a bill-action subscription.
	SaveBillAction(ctx context.Context, m model.BillActionSubscription) (model.BillActionSubscription, error)

	// SavePerson creates a person subscription.
	SavePerson(ctx context.Context, m model.PersonSubscription) (model.PersonSubscription, error)

	// SaveCommitteeAction creates a committee-action subscription.
	SaveCommitteeAction(ctx context.Context, m model.CommitteeActionSubscription) (model.CommitteeActionSubscription, error)

	// SaveCommitteeEvent creates a committee-event subscription.
	SaveCommitteeEvent(ctx context.Context, m model.CommitteeEventSubscription) (model.CommitteeEventSubscription, error)

	// SaveBillSearch creates a bill-search subscription.
	SaveBillSearch(ctx context.Context, m model.BillSearchSubscription) (model.BillSearchSubscription, error)

	// SaveEvents creates an all-events subscription.
	SaveEvents(ctx context.Context, m model.EventsSubscription) (model.EventsSubscription, error)
}

// WatermarkRepository persists what each subscription has already been told.
// Order watermarks are compare-and-set; timestamp watermarks only move forward;
// seen sets only grow.
type WatermarkRepository interface {
	// AdvanceBillActionOrder moves a bill-action subscription from order from
	// to order to. Returns ErrWatermarkConflict when the stored order is not from.
	AdvanceBillActionOrder(ctx context.Context, subscriptionID int64, from, to int, at time.Time) error

	// SeenSponsorshipIDs returns the sponsorship ids already reported for a
	// person subscription.
	SeenSponsorshipIDs(ctx context.Context, subscriptionID int64) (map[string]bool, error)

	// AddSeenSponsorships records sponsorship ids. Already recorded ids are ignored.
	AddSeenSponsorships(ctx context.Context, subscriptionID int64, sponsorshipIDs []string, at time.Time) error

	// SeenBills returns the per-bill watermarks of a committee-action subscription.
	SeenBills(ctx context.Context, subscriptionID int64) ([]model.SeenBill, error)

	// CreateSeenBill creates a per-bill watermark.
	// Returns ErrWatermarkConflict if the bill is already tracked.
	CreateSeenBill(ctx context.Context, m model.SeenBill) (model.SeenBill, error)

	// AdvanceSeenBillOrder moves a per-bill watermark from order from to order to.
	// Returns ErrWatermarkConflict when the stored order is not from.
	AdvanceSeenBillOrder(ctx context.Context, seenBillID int64, from, to int) error

	// AdvanceTimestamp sets last_datetime_updated of a subscription to at,
	// unless it is already at or past it.
	AdvanceTimestamp(ctx context.Context, kind model.Kind, subscriptionID int64, at time.Time) error
}

// UserRepository defines the persistence interface for site accounts.
type UserRepository interface {
	// Load retrieves a user by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.User, error)

	// FindByUsername retrieves a user by username.
	// Returns ErrNoData if not found.
	FindByUsername(ctx context.Context, username string) (model.User, error)

	// FindByEmail retrieves a user by email address.
	// Returns ErrNoData if not found.
	FindByEmail(ctx context.Context, email string) (model.User, error)

	// Save creates a new user (if ID=0) or updates an existing one.
	Save(ctx context.Context, m model.User) (model.User, error)
}

// ProfileRepository defines the persistence interface for activation profiles.
type ProfileRepository interface {
	// FindByUserID retrieves the profile of a user.
	// Returns ErrNoData if not found.
	FindByUserID(ctx context.Context, userID int64) (model.SubscriptionProfile, error)

	// FindByActivationKey retrieves a profile by activation key.
	// Returns ErrNoData if not found.
	FindByActivationKey(ctx context.Context, key string) (model.SubscriptionProfile, error)

	// Save creates a new profile (if ID=0) or updates an existing one.
	Save(ctx context.Context, m model.SubscriptionProfile) (model.SubscriptionProfile, error)
}

// QueueRepository defines the persistence interface for queue items.
// Queue items represent pending or retrying digest deliveries.
//
// Implementations must be safe for concurrent use.
type QueueRepository interface {
	// Load retrieves a queue item by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Queue, error)

	// Save creates a new queue item (if ID=0) or updates an existing one.
	// Returns the saved queue item with populated ID.
	Save(ctx context.Context, m *model.Queue) (*model.Queue, error)

	// Delete permanently removes a queue item from storage.
	Delete(ctx context.Context, m *model.Queue) error

	// FindByJobID finds the queue item for a digest job.
	// Returns ErrNoData if not found.
	FindByJobID(ctx context.Context, jobID int64) (model.Queue, error)

	// FindByUserID retrieves all queue items of a user.
	FindByUserID(ctx context.Context, userID int64) ([]model.Queue, error)

	// FindPendingItems finds queue items ready for first-time delivery.
	// Items must have status=PENDING and next_retry_at <= now.
	// Results are ordered by created_at ASC (FIFO).
	FindPendingItems(ctx context.Context, limit int) ([]model.Queue, error)

	// FindRetryableItems finds queue items ready for retry.
	// Items must have status=FAILED and next_retry_at <= now.
	// Results are ordered by created_at ASC (oldest failures first).
	FindRetryableItems(ctx context.Context, limit int) ([]model.Queue, error)

	// FindExpiredItems finds queue items that have expired.
	// Items must have expires_at <= now and status != SENT.
	// Results are ordered by expires_at ASC (oldest first).
	FindExpiredItems(ctx context.Context, limit int) ([]model.Queue, error)
}

// JobRepository defines the persistence interface for serialized digests.
// Jobs are immutable once created.
type JobRepository interface {
	// Load retrieves a job by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.DigestJob, error)

	// Save creates a new job.
	// Returns the saved job with populated ID.
	Save(ctx context.Context, m model.DigestJob) (model.DigestJob, error)

	// Delete permanently removes a job from storage.
	Delete(ctx context.Context, m model.DigestJob) error

	// FindOutdatedJobs finds jobs older than the specified number of days.
	FindOutdatedJobs(ctx context.Context, days int) ([]model.DigestJob, error)
}

// DLQRepository defines the persistence interface for the Dead Letter Queue.
// The DLQ stores digests that failed delivery after all retry attempts.
type DLQRepository interface {
	// Load retrieves a DLQ item by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.DeadLetterQueue, error)

	// Save creates a new DLQ item (if ID=0) or updates an existing one.
	Save(ctx context.Context, m model.DeadLetterQueue) (model.DeadLetterQueue, error)

	// Delete permanently removes a DLQ item from storage.
	Delete(ctx context.Context, m model.DeadLetterQueue) error

	// FindByUser retrieves DLQ items of a user, newest first.
	FindByUser(ctx context.Context, userID int64, limit int) ([]model.DeadLetterQueue, error)

	// FindUnresolved retrieves unresolved DLQ items, oldest first.
	FindUnresolved(ctx context.Context, limit int) ([]model.DeadLetterQueue, error)

	// FindOlderThan retrieves unresolved DLQ items older than threshold.
	FindOlderThan(ctx context.Context, threshold time.Duration, limit int) ([]model.DeadLetterQueue, error)

	// FindByJobID retrieves the DLQ item of a job.
	// Returns ErrNoData if not found.
	FindByJobID(ctx context.Context, jobID int64) (model.DeadLetterQueue, error)

	// GetStats retrieves aggregate DLQ statistics.
	GetStats(ctx context.Context) (model.DLQStats, error)

	// CountUnresolved returns the count of unresolved DLQ items.
	CountUnresolved(ctx context.Context) (int, error)
}

// NotificationLogRepository records digest outcomes per user.
type NotificationLogRepository interface {
	// Save appends a log entry.
	Save(ctx context.Context, m model.NotificationLog) (model.NotificationLog, error)

	// FindByUser returns the latest entries of a user, newest first.
	FindByUser(ctx context.Context, userID int64, limit int) ([]model.NotificationLog, error)
}
