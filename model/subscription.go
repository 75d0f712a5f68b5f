package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Kind identifies one of the six subscription variants.
type Kind string

const (
	// KindBillAction follows actions taken on a single bill.
	KindBillAction Kind = "bill_action"

	// KindPerson follows new sponsorships by a person.
	KindPerson Kind = "person"

	// KindCommitteeAction follows actions taken by a committee on any bill.
	KindCommitteeAction Kind = "committee_action"

	// KindCommitteeEvent follows upcoming events a committee takes part in.
	KindCommitteeEvent Kind = "committee_event"

	// KindBillSearch follows new bills matching a saved full-text search.
	KindBillSearch Kind = "bill_search"

	// KindEvents follows every new or updated event.
	KindEvents Kind = "events"
)

// Kinds lists every subscription kind in digest order.
var Kinds = []Kind{
	KindBillAction,
	KindBillSearch,
	KindPerson,
	KindCommitteeAction,
	KindCommitteeEvent,
	KindEvents,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// NoOrderSeen is the order watermark of a subscription that has not been
// notified about any action. Action orders start at zero.
const NoOrderSeen = -1

// BillActionSubscription follows the actions of one bill.
// LastSeenOrder is the highest action order already reported.
type BillActionSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	BillID              string    `json:"billID" db:"bill_id"`
	LastSeenOrder       int       `json:"lastSeenOrder" db:"last_seen_order"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for BillActionSubscription.
func (s BillActionSubscription) TableName() string {
	return tablePrefix + "bill_action_subscription"
}

// NewBillActionSubscription creates a subscription whose watermark starts at lastSeenOrder.
func NewBillActionSubscription(userID int64, billID string, lastSeenOrder int, now time.Time) BillActionSubscription {
	return BillActionSubscription{
		UserID:              userID,
		BillID:              billID,
		LastSeenOrder:       lastSeenOrder,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}
}

// Advance moves the watermark forward to order. It never regresses and
// reports whether the watermark changed.
func (s *BillActionSubscription) Advance(order int, now time.Time) bool {
	if order <= s.LastSeenOrder {
		return false
	}
	s.LastSeenOrder = order
	s.LastDatetimeUpdated = now
	return true
}

// PersonSubscription follows the sponsorships of one person.
// The seen sponsorship ids are stored as SeenSponsorship rows.
type PersonSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	PersonID            string    `json:"personID" db:"person_id"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for PersonSubscription.
func (s PersonSubscription) TableName() string {
	return tablePrefix + "person_subscription"
}

// NewPersonSubscription creates a person subscription.
func NewPersonSubscription(userID int64, personID string, now time.Time) PersonSubscription {
	return PersonSubscription{
		UserID:              userID,
		PersonID:            personID,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}
}

// SeenSponsorship records that a sponsorship was observed for a person subscription.
type SeenSponsorship struct {
	ID             int64     `json:"id" db:"id"`
	SubscriptionID int64     `json:"subscriptionID" db:"subscription_id"`
	SponsorshipID  string    `json:"sponsorshipID" db:"sponsorship_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for SeenSponsorship.
func (s SeenSponsorship) TableName() string {
	return tablePrefix + "seen_sponsorship"
}

// CommitteeActionSubscription follows the actions of one committee.
// Per-bill watermarks are stored as SeenBill rows created lazily.
type CommitteeActionSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	OrganizationID      string    `json:"organizationID" db:"organization_id"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for CommitteeActionSubscription.
func (s CommitteeActionSubscription) TableName() string {
	return tablePrefix + "committee_action_subscription"
}

// NewCommitteeActionSubscription creates a committee action subscription.
func NewCommitteeActionSubscription(userID int64, organizationID string, now time.Time) CommitteeActionSubscription {
	return CommitteeActionSubscription{
		UserID:              userID,
		OrganizationID:      organizationID,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}
}

// SeenBill is the order watermark of one bill under a committee action subscription.
type SeenBill struct {
	ID             int64  `json:"id" db:"id"`
	SubscriptionID int64  `json:"subscriptionID" db:"subscription_id"`
	BillID         string `json:"billID" db:"bill_id"`
	LastSeenOrder  int    `json:"lastSeenOrder" db:"last_seen_order"`
}

// TableName returns the database table name for SeenBill.
func (s SeenBill) TableName() string {
	return tablePrefix + "seen_bill"
}

// CommitteeEventSubscription follows events a committee participates in.
type CommitteeEventSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	OrganizationID      string    `json:"organizationID" db:"organization_id"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for CommitteeEventSubscription.
func (s CommitteeEventSubscription) TableName() string {
	return tablePrefix + "committee_event_subscription"
}

// NewCommitteeEventSubscription creates a committee event subscription.
func NewCommitteeEventSubscription(userID int64, organizationID string, now time.Time) CommitteeEventSubscription {
	return CommitteeEventSubscription{
		UserID:              userID,
		OrganizationID:      organizationID,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}
}

// SearchParams is a saved full-text search: a free-text term plus accepted
// values per facet.
type SearchParams struct {
	Term   string              `json:"term"`
	Facets map[string][]string `json:"facets"`
}

// Normalize trims the term and sorts and dedupes facet values so that
// equivalent searches encode identically.
func (p SearchParams) Normalize() SearchParams {
	out := SearchParams{
		Term:   strings.TrimSpace(p.Term),
		Facets: make(map[string][]string, len(p.Facets)),
	}
	for name, values := range p.Facets {
		name = strings.TrimSpace(name)
		seen := make(map[string]bool, len(values))
		var vs []string
		for _, v := range values {
			if seen[v] {
				continue
			}
			seen[v] = true
			vs = append(vs, v)
		}
		sort.Strings(vs)
		if len(vs) > 0 {
			out.Facets[name] = vs
		}
	}
	return out
}

// Encode returns the canonical JSON form stored in the subscription row.
// Map keys are sorted by encoding/json.
func (p SearchParams) Encode() (string, error) {
	b, err := json.Marshal(p.Normalize())
	if err != nil {
		return "", fmt.Errorf("failed to encode search params: %w", err)
	}
	return string(b), nil
}

// DecodeSearchParams parses a stored search_params value.
func DecodeSearchParams(raw string) (SearchParams, error) {
	var p SearchParams
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, fmt.Errorf("failed to decode search params: %w", err)
	}
	return p.Normalize(), nil
}

// FacetNames returns the facet names in sorted order.
func (p SearchParams) FacetNames() []string {
	names := make([]string, 0, len(p.Facets))
	for name := range p.Facets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SearchPath rebuilds the site search URL for the saved parameters,
// using the "<facet>_exact:<value>" selected_facets form.
func (p SearchParams) SearchPath() string {
	q := url.Values{}
	q.Set("q", p.Term)
	for _, name := range p.FacetNames() {
		for _, v := range p.Facets[name] {
			q.Add("selected_facets", name+"_exact:"+v)
		}
	}
	return "/search/?" + q.Encode()
}

// BillSearchSubscription follows bills matching a saved search.
type BillSearchSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	SearchParams        string    `json:"searchParams" db:"search_params"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for BillSearchSubscription.
func (s BillSearchSubscription) TableName() string {
	return tablePrefix + "bill_search_subscription"
}

// NewBillSearchSubscription creates a search subscription with canonical params.
func NewBillSearchSubscription(userID int64, params SearchParams, now time.Time) (BillSearchSubscription, error) {
	encoded, err := params.Encode()
	if err != nil {
		return BillSearchSubscription{}, err
	}
	return BillSearchSubscription{
		UserID:              userID,
		SearchParams:        encoded,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}, nil
}

// Params decodes the stored search parameters.
func (s BillSearchSubscription) Params() (SearchParams, error) {
	return DecodeSearchParams(s.SearchParams)
}

// EventsSubscription follows all events.
type EventsSubscription struct {
	ID                  int64     `json:"id" db:"id"`
	UserID              int64     `json:"userID" db:"user_id"`
	LastDatetimeUpdated time.Time `json:"lastDatetimeUpdated" db:"last_datetime_updated"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for EventsSubscription.
func (s EventsSubscription) TableName() string {
	return tablePrefix + "events_subscription"
}

// NewEventsSubscription creates an all-events subscription.
func NewEventsSubscription(userID int64, now time.Time) EventsSubscription {
	return EventsSubscription{
		UserID:              userID,
		LastDatetimeUpdated: now,
		CreatedAt:           now,
	}
}

// UserSubscriptions is every subscription one user holds, grouped by kind.
type UserSubscriptions struct {
	UserID           int64                         `json:"userID"`
	BillActions      []BillActionSubscription      `json:"billActions"`
	People           []PersonSubscription          `json:"people"`
	CommitteeActions []CommitteeActionSubscription `json:"committeeActions"`
	CommitteeEvents  []CommitteeEventSubscription  `json:"committeeEvents"`
	BillSearches     []BillSearchSubscription      `json:"billSearches"`
	Events           []EventsSubscription          `json:"events"`
}

// Count returns the number of subscriptions of the given kind.
func (u UserSubscriptions) Count(kind Kind) int {
	switch kind {
	case KindBillAction:
		return len(u.BillActions)
	case KindPerson:
		return len(u.People)
	case KindCommitteeAction:
		return len(u.CommitteeActions)
	case KindCommitteeEvent:
		return len(u.CommitteeEvents)
	case KindBillSearch:
		return len(u.BillSearches)
	case KindEvents:
		return len(u.Events)
	default:
		return 0
	}
}

// Total returns the number of subscriptions across all kinds.
func (u UserSubscriptions) Total() int {
	total := 0
	for _, k := range Kinds {
		total += u.Count(k)
	}
	return total
}

// Empty reports whether the user has no subscriptions at all.
func (u UserSubscriptions) Empty() bool {
	return u.Total() == 0
}

// SubscriptionRef identifies a subscription for notifications and API responses.
type SubscriptionRef struct {
	Kind   Kind   `json:"kind"`
	ID     int64  `json:"id"`
	UserID int64  `json:"userID"`
	Target string `json:"target,omitempty"`
}
