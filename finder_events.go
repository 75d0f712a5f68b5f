package notify

import (
	"context"
	"fmt"

	"github.com/coregx/notify/model"
)

// EventsFinder reports every event created or updated since the
// subscription's watermark, split into new and updated.
type EventsFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
}

// NewEventsFinder creates an EventsFinder.
func NewEventsFinder(legislation LegislationRepository, watermarks WatermarkRepository) *EventsFinder {
	return &EventsFinder{legislation: legislation, watermarks: watermarks}
}

// Kind implements Finder.
func (f *EventsFinder) Kind() model.Kind { return model.KindEvents }

// FindUpdates implements Finder.
func (f *EventsFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}

	for _, sub := range subs.Events {
		since := th.Since(sub.LastDatetimeUpdated)
		events, err := f.legislation.FindEventsChangedSince(ctx, since)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load events: %w", err)
		}

		var created, updated []model.Event
		for _, e := range events {
			switch {
			case IsNew(e.CreatedAt, since):
				created = append(created, e)
			case IsNew(e.UpdatedAt, since):
				updated = append(updated, e)
			}
		}
		sortEventsByStartDesc(created)
		sortEventsByStartDesc(updated)

		update := model.EventsUpdate{
			New:     eventSummaries(created),
			Updated: eventSummaries(updated),
		}

		subID, at := sub.ID, th.Now()
		findings.add(update, subID, func(ctx context.Context) error {
			return f.watermarks.AdvanceTimestamp(ctx, model.KindEvents, subID, at)
		})
	}

	return findings, nil
}
