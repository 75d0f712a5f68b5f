package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

var errDuplicateSubscription = notify.NewError(notify.ErrCodeConflict, "subscription already exists")

// Subscriptions is an in-memory subscription registry with watermarks.
// It implements notify.SubscriptionRepository and notify.WatermarkRepository.
type Subscriptions struct {
	mu     sync.RWMutex
	nextID int64

	billActions      map[int64]model.BillActionSubscription
	people           map[int64]model.PersonSubscription
	committeeActions map[int64]model.CommitteeActionSubscription
	committeeEvents  map[int64]model.CommitteeEventSubscription
	billSearches     map[int64]model.BillSearchSubscription
	events           map[int64]model.EventsSubscription

	seenSponsorships map[int64]map[string]model.SeenSponsorship
	seenBills        map[int64]model.SeenBill
}

// NewSubscriptions creates an empty registry.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		billActions:      make(map[int64]model.BillActionSubscription),
		people:           make(map[int64]model.PersonSubscription),
		committeeActions: make(map[int64]model.CommitteeActionSubscription),
		committeeEvents:  make(map[int64]model.CommitteeEventSubscription),
		billSearches:     make(map[int64]model.BillSearchSubscription),
		events:           make(map[int64]model.EventsSubscription),
		seenSponsorships: make(map[int64]map[string]model.SeenSponsorship),
		seenBills:        make(map[int64]model.SeenBill),
	}
}

func (s *Subscriptions) id() int64 {
	s.nextID++
	return s.nextID
}

// refs lists every subscription as a reference. Callers hold the lock.
func (s *Subscriptions) refs() []model.SubscriptionRef {
	var out []model.SubscriptionRef
	for _, m := range s.billActions {
		out = append(out, model.SubscriptionRef{Kind: model.KindBillAction, ID: m.ID, UserID: m.UserID, Target: m.BillID})
	}
	for _, m := range s.people {
		out = append(out, model.SubscriptionRef{Kind: model.KindPerson, ID: m.ID, UserID: m.UserID, Target: m.PersonID})
	}
	for _, m := range s.committeeActions {
		out = append(out, model.SubscriptionRef{Kind: model.KindCommitteeAction, ID: m.ID, UserID: m.UserID, Target: m.OrganizationID})
	}
	for _, m := range s.committeeEvents {
		out = append(out, model.SubscriptionRef{Kind: model.KindCommitteeEvent, ID: m.ID, UserID: m.UserID, Target: m.OrganizationID})
	}
	for _, m := range s.billSearches {
		out = append(out, model.SubscriptionRef{Kind: model.KindBillSearch, ID: m.ID, UserID: m.UserID, Target: m.SearchParams})
	}
	for _, m := range s.events {
		out = append(out, model.SubscriptionRef{Kind: model.KindEvents, ID: m.ID, UserID: m.UserID})
	}
	return out
}

func (s *Subscriptions) exists(kind model.Kind, userID int64, target string) bool {
	for _, r := range s.refs() {
		if r.Kind == kind && r.UserID == userID && r.Target == target {
			return true
		}
	}
	return false
}

// ListUserIDs implements notify.SubscriptionRepository.
func (s *Subscriptions) ListUserIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, r := range s.refs() {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			out = append(out, r.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ListForUser implements notify.SubscriptionRepository. Each kind is
// ordered by id.
func (s *Subscriptions) ListForUser(_ context.Context, userID int64) (model.UserSubscriptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := model.UserSubscriptions{UserID: userID}
	for _, m := range s.billActions {
		if m.UserID == userID {
			out.BillActions = append(out.BillActions, m)
		}
	}
	for _, m := range s.people {
		if m.UserID == userID {
			out.People = append(out.People, m)
		}
	}
	for _, m := range s.committeeActions {
		if m.UserID == userID {
			out.CommitteeActions = append(out.CommitteeActions, m)
		}
	}
	for _, m := range s.committeeEvents {
		if m.UserID == userID {
			out.CommitteeEvents = append(out.CommitteeEvents, m)
		}
	}
	for _, m := range s.billSearches {
		if m.UserID == userID {
			out.BillSearches = append(out.BillSearches, m)
		}
	}
	for _, m := range s.events {
		if m.UserID == userID {
			out.Events = append(out.Events, m)
		}
	}

	sort.Slice(out.BillActions, func(i, j int) bool { return out.BillActions[i].ID < out.BillActions[j].ID })
	sort.Slice(out.People, func(i, j int) bool { return out.People[i].ID < out.People[j].ID })
	sort.Slice(out.CommitteeActions, func(i, j int) bool { return out.CommitteeActions[i].ID < out.CommitteeActions[j].ID })
	sort.Slice(out.CommitteeEvents, func(i, j int) bool { return out.CommitteeEvents[i].ID < out.CommitteeEvents[j].ID })
	sort.Slice(out.BillSearches, func(i, j int) bool { return out.BillSearches[i].ID < out.BillSearches[j].ID })
	sort.Slice(out.Events, func(i, j int) bool { return out.Events[i].ID < out.Events[j].ID })
	return out, nil
}

// FindRef implements notify.SubscriptionRepository.
func (s *Subscriptions) FindRef(_ context.Context, kind model.Kind, userID int64, target string) (model.SubscriptionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs() {
		if r.Kind == kind && r.UserID == userID && r.Target == target {
			return r, nil
		}
	}
	return model.SubscriptionRef{}, notify.ErrNoData
}

// LoadRef implements notify.SubscriptionRepository.
func (s *Subscriptions) LoadRef(_ context.Context, kind model.Kind, id int64) (model.SubscriptionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.refs() {
		if r.Kind == kind && r.ID == id {
			return r, nil
		}
	}
	return model.SubscriptionRef{}, notify.ErrNoData
}

// Delete implements notify.SubscriptionRepository.
func (s *Subscriptions) Delete(_ context.Context, ref model.SubscriptionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ref.Kind {
	case model.KindBillAction:
		delete(s.billActions, ref.ID)
	case model.KindPerson:
		delete(s.people, ref.ID)
		delete(s.seenSponsorships, ref.ID)
	case model.KindCommitteeAction:
		delete(s.committeeActions, ref.ID)
		for id, sb := range s.seenBills {
			if sb.SubscriptionID == ref.ID {
				delete(s.seenBills, id)
			}
		}
	case model.KindCommitteeEvent:
		delete(s.committeeEvents, ref.ID)
	case model.KindBillSearch:
		delete(s.billSearches, ref.ID)
	case model.KindEvents:
		delete(s.events, ref.ID)
	default:
		return notify.NewError(notify.ErrCodeValidation, "unknown subscription kind "+string(ref.Kind))
	}
	return nil
}

// SaveBillAction implements notify.SubscriptionRepository.
func (s *Subscriptions) SaveBillAction(_ context.Context, m model.BillActionSubscription) (model.BillActionSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindBillAction, m.UserID, m.BillID) {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.billActions[m.ID] = m
	return m, nil
}

// SavePerson implements notify.SubscriptionRepository.
func (s *Subscriptions) SavePerson(_ context.Context, m model.PersonSubscription) (model.PersonSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindPerson, m.UserID, m.PersonID) {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.people[m.ID] = m
	return m, nil
}

// SaveCommitteeAction implements notify.SubscriptionRepository.
func (s *Subscriptions) SaveCommitteeAction(_ context.Context, m model.CommitteeActionSubscription) (model.CommitteeActionSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindCommitteeAction, m.UserID, m.OrganizationID) {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.committeeActions[m.ID] = m
	return m, nil
}

// SaveCommitteeEvent implements notify.SubscriptionRepository.
func (s *Subscriptions) SaveCommitteeEvent(_ context.Context, m model.CommitteeEventSubscription) (model.CommitteeEventSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindCommitteeEvent, m.UserID, m.OrganizationID) {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.committeeEvents[m.ID] = m
	return m, nil
}

// SaveBillSearch implements notify.SubscriptionRepository.
func (s *Subscriptions) SaveBillSearch(_ context.Context, m model.BillSearchSubscription) (model.BillSearchSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindBillSearch, m.UserID, m.SearchParams) {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.billSearches[m.ID] = m
	return m, nil
}

// SaveEvents implements notify.SubscriptionRepository.
func (s *Subscriptions) SaveEvents(_ context.Context, m model.EventsSubscription) (model.EventsSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(model.KindEvents, m.UserID, "") {
		return m, errDuplicateSubscription
	}
	m.ID = s.id()
	s.events[m.ID] = m
	return m, nil
}

// AdvanceBillActionOrder implements notify.WatermarkRepository.
func (s *Subscriptions) AdvanceBillActionOrder(_ context.Context, subscriptionID int64, from, to int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.billActions[subscriptionID]
	if !ok {
		return notify.ErrNoData
	}
	if m.LastSeenOrder != from {
		return notify.ErrWatermarkConflict
	}
	m.LastSeenOrder = to
	m.LastDatetimeUpdated = at
	s.billActions[subscriptionID] = m
	return nil
}

// SeenSponsorshipIDs implements notify.WatermarkRepository.
func (s *Subscriptions) SeenSponsorshipIDs(_ context.Context, subscriptionID int64) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.seenSponsorships[subscriptionID]))
	for id := range s.seenSponsorships[subscriptionID] {
		out[id] = true
	}
	return out, nil
}

// AddSeenSponsorships implements notify.WatermarkRepository.
func (s *Subscriptions) AddSeenSponsorships(_ context.Context, subscriptionID int64, sponsorshipIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.people[subscriptionID]
	if !ok {
		return notify.ErrNoData
	}
	seen := s.seenSponsorships[subscriptionID]
	if seen == nil {
		seen = make(map[string]model.SeenSponsorship)
		s.seenSponsorships[subscriptionID] = seen
	}
	for _, id := range sponsorshipIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = model.SeenSponsorship{ID: s.id(), SubscriptionID: subscriptionID, SponsorshipID: id, CreatedAt: at}
	}
	if at.After(m.LastDatetimeUpdated) {
		m.LastDatetimeUpdated = at
		s.people[subscriptionID] = m
	}
	return nil
}

// SeenBills implements notify.WatermarkRepository.
func (s *Subscriptions) SeenBills(_ context.Context, subscriptionID int64) ([]model.SeenBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SeenBill
	for _, sb := range s.seenBills {
		if sb.SubscriptionID == subscriptionID {
			out = append(out, sb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSeenBill implements notify.WatermarkRepository.
func (s *Subscriptions) CreateSeenBill(_ context.Context, m model.SeenBill) (model.SeenBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sb := range s.seenBills {
		if sb.SubscriptionID == m.SubscriptionID && sb.BillID == m.BillID {
			return sb, notify.ErrWatermarkConflict
		}
	}
	m.ID = s.id()
	s.seenBills[m.ID] = m
	return m, nil
}

// AdvanceSeenBillOrder implements notify.WatermarkRepository.
func (s *Subscriptions) AdvanceSeenBillOrder(_ context.Context, seenBillID int64, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb, ok := s.seenBills[seenBillID]
	if !ok {
		return notify.ErrNoData
	}
	if sb.LastSeenOrder != from {
		return notify.ErrWatermarkConflict
	}
	sb.LastSeenOrder = to
	s.seenBills[seenBillID] = sb
	return nil
}

// AdvanceTimestamp implements notify.WatermarkRepository.
func (s *Subscriptions) AdvanceTimestamp(_ context.Context, kind model.Kind, subscriptionID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	advance := func(current *time.Time) {
		if at.After(*current) {
			*current = at
		}
	}

	switch kind {
	case model.KindBillAction:
		m, ok := s.billActions[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.billActions[subscriptionID] = m
	case model.KindPerson:
		m, ok := s.people[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.people[subscriptionID] = m
	case model.KindCommitteeAction:
		m, ok := s.committeeActions[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.committeeActions[subscriptionID] = m
	case model.KindCommitteeEvent:
		m, ok := s.committeeEvents[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.committeeEvents[subscriptionID] = m
	case model.KindBillSearch:
		m, ok := s.billSearches[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.billSearches[subscriptionID] = m
	case model.KindEvents:
		m, ok := s.events[subscriptionID]
		if !ok {
			return notify.ErrNoData
		}
		advance(&m.LastDatetimeUpdated)
		s.events[subscriptionID] = m
	default:
		return notify.NewError(notify.ErrCodeValidation, "unknown subscription kind "+string(kind))
	}
	return nil
}
