package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Recipient identifies who a digest is for.
type Recipient struct {
	UserID   int64  `json:"userID"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Digest is the aggregate of every non-empty update for one user in one run.
// It has one field per subscription kind.
type Digest struct {
	Recipient        Recipient               `json:"recipient"`
	BillActions      []BillAction            `json:"billActions,omitempty"`
	BillSearches     []BillSearchUpdate      `json:"billSearches,omitempty"`
	People           []PersonUpdate          `json:"people,omitempty"`
	CommitteeActions []CommitteeActionUpdate `json:"committeeActions,omitempty"`
	CommitteeEvents  []CommitteeEventUpdate  `json:"committeeEvents,omitempty"`
	NewEvents        []EventSummary          `json:"newEvents,omitempty"`
	UpdatedEvents    []EventSummary          `json:"updatedEvents,omitempty"`
	GeneratedAt      time.Time               `json:"generatedAt"`
}

// NewDigest creates an empty digest for the recipient.
func NewDigest(recipient Recipient, now time.Time) *Digest {
	return &Digest{
		Recipient:   recipient,
		GeneratedAt: now,
	}
}

// Add merges an update into the digest. Empty updates are skipped and
// reported as not added.
func (d *Digest) Add(u Update) (bool, error) {
	if u == nil || u.Empty() {
		return false, nil
	}

	switch v := u.(type) {
	case BillActionUpdate:
		d.BillActions = append(d.BillActions, v.Actions...)
	case PersonUpdate:
		d.People = append(d.People, v)
	case CommitteeActionUpdate:
		d.CommitteeActions = append(d.CommitteeActions, v)
	case CommitteeEventUpdate:
		d.CommitteeEvents = append(d.CommitteeEvents, v)
	case BillSearchUpdate:
		d.BillSearches = append(d.BillSearches, v)
	case EventsUpdate:
		d.NewEvents = append(d.NewEvents, v.New...)
		d.UpdatedEvents = append(d.UpdatedEvents, v.Updated...)
	default:
		return false, fmt.Errorf("unsupported update type %T", u)
	}
	return true, nil
}

// Count returns how many entries of the given kind the digest carries.
func (d *Digest) Count(kind Kind) int {
	switch kind {
	case KindBillAction:
		return len(d.BillActions)
	case KindBillSearch:
		return len(d.BillSearches)
	case KindPerson:
		return len(d.People)
	case KindCommitteeAction:
		return len(d.CommitteeActions)
	case KindCommitteeEvent:
		return len(d.CommitteeEvents)
	case KindEvents:
		return len(d.NewEvents) + len(d.UpdatedEvents)
	default:
		return 0
	}
}

// Empty reports whether the digest has nothing worth sending.
func (d *Digest) Empty() bool {
	for _, k := range Kinds {
		if d.Count(k) > 0 {
			return false
		}
	}
	return true
}

// DigestJob is a rendered-later digest persisted for the delivery worker.
// Jobs are immutable once created.
type DigestJob struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userID" db:"user_id"`
	Recipient string    `json:"recipient" db:"recipient"`
	Payload   string    `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for DigestJob.
func (j DigestJob) TableName() string {
	return tablePrefix + "digest_job"
}

// NewDigestJob serializes the digest into a job.
func NewDigestJob(d *Digest, now time.Time) (DigestJob, error) {
	if d == nil {
		return DigestJob{}, fmt.Errorf("digest is nil")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return DigestJob{}, fmt.Errorf("failed to encode digest: %w", err)
	}
	return DigestJob{
		UserID:    d.Recipient.UserID,
		Recipient: d.Recipient.Email,
		Payload:   string(payload),
		CreatedAt: now,
	}, nil
}

// Digest decodes the job payload.
func (j DigestJob) Digest() (*Digest, error) {
	var d Digest
	if err := json.Unmarshal([]byte(j.Payload), &d); err != nil {
		return nil, fmt.Errorf("failed to decode digest job %d: %w", j.ID, err)
	}
	return &d, nil
}
