package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/notify/model"
)

// PersonFinder reports sponsorships of followed people that were not seen before.
type PersonFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
}

// NewPersonFinder creates a PersonFinder.
func NewPersonFinder(legislation LegislationRepository, watermarks WatermarkRepository) *PersonFinder {
	return &PersonFinder{legislation: legislation, watermarks: watermarks}
}

// Kind implements Finder.
func (f *PersonFinder) Kind() model.Kind { return model.KindPerson }

// FindUpdates implements Finder.
func (f *PersonFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}

	for _, sub := range subs.People {
		person, err := f.legislation.LoadPerson(ctx, sub.PersonID)
		if err != nil {
			if IsNoData(err) {
				continue
			}
			return findings, fmt.Errorf("failed to load person %s: %w", sub.PersonID, err)
		}

		sponsorships, err := f.legislation.FindSponsorships(ctx, person.ID)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load sponsorships of %s: %w", person.ID, err)
		}

		seen, err := f.watermarks.SeenSponsorshipIDs(ctx, sub.ID)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load seen sponsorships of subscription %d: %w", sub.ID, err)
		}

		var (
			fresh   []model.Sponsorship
			billIDs []string
		)
		listed := make(map[string]bool)
		for _, sp := range sponsorships {
			if seen[sp.ID] {
				continue
			}
			fresh = append(fresh, sp)
			if !listed[sp.BillID] {
				listed[sp.BillID] = true
				billIDs = append(billIDs, sp.BillID)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		bills, err := f.legislation.FindBillsByIDs(ctx, billIDs, time.Time{})
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load sponsored bills: %w", err)
		}
		byID := make(map[string]model.Bill, len(bills))
		for _, b := range bills {
			byID[b.ID] = b
		}

		update := model.PersonUpdate{NewSponsorships: model.PersonSponsorships{
			Name:  person.Name,
			Slug:  person.Slug,
			Bills: make([]model.BillSummary, 0, len(billIDs)),
		}}
		for _, id := range billIDs {
			if b, ok := byID[id]; ok {
				update.NewSponsorships.Bills = append(update.NewSponsorships.Bills, b.Summary())
			}
		}

		if update.Empty() {
			continue
		}

		// Sponsorships of bills missing from the bill table stay unseen.
		newIDs := make([]string, 0, len(fresh))
		for _, sp := range fresh {
			if _, ok := byID[sp.BillID]; ok {
				newIDs = append(newIDs, sp.ID)
			}
		}

		subID, at := sub.ID, th.Now()
		findings.add(update, subID, func(ctx context.Context) error {
			return f.watermarks.AddSeenSponsorships(ctx, subID, newIDs, at)
		})
	}

	return findings, nil
}
