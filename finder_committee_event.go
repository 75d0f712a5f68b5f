package notify

import (
	"context"
	"fmt"

	"github.com/coregx/notify/model"
)

// CommitteeEventFinder reports upcoming events a followed committee takes
// part in that were created since the subscription's watermark.
type CommitteeEventFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
}

// NewCommitteeEventFinder creates a CommitteeEventFinder.
func NewCommitteeEventFinder(legislation LegislationRepository, watermarks WatermarkRepository) *CommitteeEventFinder {
	return &CommitteeEventFinder{legislation: legislation, watermarks: watermarks}
}

// Kind implements Finder.
func (f *CommitteeEventFinder) Kind() model.Kind { return model.KindCommitteeEvent }

// FindUpdates implements Finder. Only events starting strictly after now
// are reported, latest start first. The watermark moves to now every time.
func (f *CommitteeEventFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}

	for _, sub := range subs.CommitteeEvents {
		org, err := f.legislation.LoadOrganization(ctx, sub.OrganizationID)
		if err != nil {
			if IsNoData(err) {
				continue
			}
			return findings, fmt.Errorf("failed to load organization %s: %w", sub.OrganizationID, err)
		}

		since := th.Since(sub.LastDatetimeUpdated)
		events, err := f.legislation.FindParticipantEvents(ctx, org.ID, since)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load events of %s: %w", org.ID, err)
		}

		var upcoming []model.Event
		for _, e := range events {
			if IsNew(e.CreatedAt, since) && e.StartsAfter(th.Now()) {
				upcoming = append(upcoming, e)
			}
		}
		sortEventsByStartDesc(upcoming)

		update := model.CommitteeEventUpdate{
			Name:   org.Name,
			Slug:   org.Slug,
			Events: eventSummaries(upcoming),
		}

		subID, at := sub.ID, th.Now()
		findings.add(update, subID, func(ctx context.Context) error {
			return f.watermarks.AdvanceTimestamp(ctx, model.KindCommitteeEvent, subID, at)
		})
	}

	return findings, nil
}
