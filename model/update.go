package model

import "time"

// Update is the result one finder produced for one subscription.
// The set of implementations is closed: BillActionUpdate, PersonUpdate,
// CommitteeActionUpdate, CommitteeEventUpdate, BillSearchUpdate and EventsUpdate.
type Update interface {
	// Kind returns the subscription kind that produced the update.
	Kind() Kind

	// Empty reports whether there is nothing to tell the user.
	Empty() bool

	isUpdate()
}

// BillSummary is the digest view of a bill.
type BillSummary struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

// ActionSummary is the digest view of an action. Date is nil when unknown.
type ActionSummary struct {
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
	Order       int        `json:"order"`
}

// EventSummary is the digest view of an event. StartDate is nil when unknown.
type EventSummary struct {
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	Description string     `json:"description"`
}

// BillAction pairs a bill with one of its new actions.
type BillAction struct {
	Bill   BillSummary   `json:"bill"`
	Action ActionSummary `json:"action"`
}

// BillActionUpdate lists new actions on a followed bill, ascending by order.
type BillActionUpdate struct {
	Actions []BillAction `json:"actions"`
}

// Kind implements Update.
func (BillActionUpdate) Kind() Kind { return KindBillAction }

// Empty implements Update.
func (u BillActionUpdate) Empty() bool { return len(u.Actions) == 0 }

func (BillActionUpdate) isUpdate() {}

// PersonSponsorships groups the bills newly sponsored by a person.
type PersonSponsorships struct {
	Name  string        `json:"name"`
	Slug  string        `json:"slug"`
	Bills []BillSummary `json:"bills"`
}

// PersonUpdate reports new sponsorships of a followed person.
type PersonUpdate struct {
	NewSponsorships PersonSponsorships `json:"New sponsorships"`
}

// Kind implements Update.
func (PersonUpdate) Kind() Kind { return KindPerson }

// Empty implements Update.
func (u PersonUpdate) Empty() bool { return len(u.NewSponsorships.Bills) == 0 }

func (PersonUpdate) isUpdate() {}

// CommitteeBill is a bill with the committee's new actions on it,
// newest date first.
type CommitteeBill struct {
	BillSummary
	Actions []ActionSummary `json:"actions"`
}

// CommitteeActionUpdate reports new committee actions grouped by bill.
// A bill appears at most once.
type CommitteeActionUpdate struct {
	Name  string          `json:"name"`
	Slug  string          `json:"slug"`
	Bills []CommitteeBill `json:"bills"`
}

// Kind implements Update.
func (CommitteeActionUpdate) Kind() Kind { return KindCommitteeAction }

// Empty implements Update.
func (u CommitteeActionUpdate) Empty() bool { return len(u.Bills) == 0 }

func (CommitteeActionUpdate) isUpdate() {}

// CommitteeEventUpdate reports upcoming events of a committee, latest start first.
type CommitteeEventUpdate struct {
	Name   string         `json:"name"`
	Slug   string         `json:"slug"`
	Events []EventSummary `json:"events"`
}

// Kind implements Update.
func (CommitteeEventUpdate) Kind() Kind { return KindCommitteeEvent }

// Empty implements Update.
func (u CommitteeEventUpdate) Empty() bool { return len(u.Events) == 0 }

func (CommitteeEventUpdate) isUpdate() {}

// BillSearchUpdate reports new bills matching a saved search.
type BillSearchUpdate struct {
	Params SearchParams  `json:"params"`
	Bills  []BillSummary `json:"bills"`
}

// Kind implements Update.
func (BillSearchUpdate) Kind() Kind { return KindBillSearch }

// Empty implements Update.
func (u BillSearchUpdate) Empty() bool { return len(u.Bills) == 0 }

func (BillSearchUpdate) isUpdate() {}

// EventsUpdate reports events created or changed since the watermark.
type EventsUpdate struct {
	New     []EventSummary `json:"new"`
	Updated []EventSummary `json:"updated"`
}

// Kind implements Update.
func (EventsUpdate) Kind() Kind { return KindEvents }

// Empty implements Update.
func (u EventsUpdate) Empty() bool { return len(u.New) == 0 && len(u.Updated) == 0 }

func (EventsUpdate) isUpdate() {}
