package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
)

// Legislation is an in-memory notify.LegislationRepository. Records are
// added with the Add methods.
type Legislation struct {
	mu            sync.RWMutex
	bills         map[string]model.Bill
	people        map[string]model.Person
	organizations map[string]model.Organization
	actions       []model.Action
	sponsorships  []model.Sponsorship
	events        map[string]model.Event
	participants  []model.EventParticipant
}

// NewLegislation creates an empty store.
func NewLegislation() *Legislation {
	return &Legislation{
		bills:         make(map[string]model.Bill),
		people:        make(map[string]model.Person),
		organizations: make(map[string]model.Organization),
		events:        make(map[string]model.Event),
	}
}

// AddBill stores or replaces a bill.
func (l *Legislation) AddBill(b model.Bill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bills[b.ID] = b
}

// AddPerson stores or replaces a person.
func (l *Legislation) AddPerson(p model.Person) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.people[p.ID] = p
}

// AddOrganization stores or replaces an organization.
func (l *Legislation) AddOrganization(o model.Organization) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.organizations[o.ID] = o
}

// AddAction appends an action.
func (l *Legislation) AddAction(a model.Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, a)
}

// AddSponsorship appends a sponsorship.
func (l *Legislation) AddSponsorship(s model.Sponsorship) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sponsorships = append(l.sponsorships, s)
}

// AddEvent stores or replaces an event.
func (l *Legislation) AddEvent(e model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[e.ID] = e
}

// AddParticipant links an organization to an event.
func (l *Legislation) AddParticipant(eventID, organizationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.participants = append(l.participants, model.EventParticipant{
		ID:             int64(len(l.participants) + 1),
		EventID:        eventID,
		OrganizationID: organizationID,
	})
}

// LoadBill implements notify.LegislationRepository.
func (l *Legislation) LoadBill(_ context.Context, id string) (model.Bill, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bills[id]
	if !ok {
		return model.Bill{}, notify.ErrNoData
	}
	return b, nil
}

// FindBillBySlug implements notify.LegislationRepository.
func (l *Legislation) FindBillBySlug(_ context.Context, slug string) (model.Bill, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, b := range l.bills {
		if b.Slug == slug {
			return b, nil
		}
	}
	return model.Bill{}, notify.ErrNoData
}

// FindBillsByIDs implements notify.LegislationRepository.
func (l *Legislation) FindBillsByIDs(_ context.Context, ids []string, since time.Time) ([]model.Bill, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Bill
	for _, id := range ids {
		b, ok := l.bills[id]
		if !ok {
			continue
		}
		if !since.IsZero() && b.CreatedAt.Before(since) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// LoadPerson implements notify.LegislationRepository.
func (l *Legislation) LoadPerson(_ context.Context, id string) (model.Person, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.people[id]
	if !ok {
		return model.Person{}, notify.ErrNoData
	}
	return p, nil
}

// FindPersonBySlug implements notify.LegislationRepository.
func (l *Legislation) FindPersonBySlug(_ context.Context, slug string) (model.Person, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.people {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.Person{}, notify.ErrNoData
}

// LoadOrganization implements notify.LegislationRepository.
func (l *Legislation) LoadOrganization(_ context.Context, id string) (model.Organization, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.organizations[id]
	if !ok {
		return model.Organization{}, notify.ErrNoData
	}
	return o, nil
}

// FindOrganizationBySlug implements notify.LegislationRepository.
func (l *Legislation) FindOrganizationBySlug(_ context.Context, slug string) (model.Organization, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, o := range l.organizations {
		if o.Slug == slug {
			return o, nil
		}
	}
	return model.Organization{}, notify.ErrNoData
}

// FindActionsAfter implements notify.LegislationRepository.
func (l *Legislation) FindActionsAfter(_ context.Context, billID string, afterOrder int) ([]model.Action, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Action
	for _, a := range l.actions {
		if a.BillID == billID && a.Order > afterOrder {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// MaxActionOrder implements notify.LegislationRepository.
func (l *Legislation) MaxActionOrder(_ context.Context, billID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	maxOrder := model.NoOrderSeen
	for _, a := range l.actions {
		if a.BillID == billID && a.Order > maxOrder {
			maxOrder = a.Order
		}
	}
	return maxOrder, nil
}

// FindCommitteeActions implements notify.LegislationRepository.
func (l *Legislation) FindCommitteeActions(_ context.Context, organizationID string) ([]model.Action, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Action
	for _, a := range l.actions {
		if a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BillID != out[j].BillID {
			return out[i].BillID < out[j].BillID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// FindSponsorships implements notify.LegislationRepository.
func (l *Legislation) FindSponsorships(_ context.Context, personID string) ([]model.Sponsorship, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Sponsorship
	for _, s := range l.sponsorships {
		if s.PersonID == personID {
			out = append(out, s)
		}
	}
	return out, nil
}

// FindParticipantEvents implements notify.LegislationRepository.
func (l *Legislation) FindParticipantEvents(_ context.Context, organizationID string, since time.Time) ([]model.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Event
	for _, p := range l.participants {
		if p.OrganizationID != organizationID {
			continue
		}
		e, ok := l.events[p.EventID]
		if !ok || e.CreatedAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// FindEventsChangedSince implements notify.LegislationRepository.
func (l *Legislation) FindEventsChangedSince(_ context.Context, since time.Time) ([]model.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Event
	for _, e := range l.events {
		if !e.CreatedAt.Before(since) || !e.UpdatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
