package notify

import (
	"context"
	"sort"

	"github.com/coregx/notify/model"
)

// Finder computes what is new for one subscription kind.
//
// FindUpdates is read-only: the watermark writes that pair with the returned
// updates are carried in Findings and applied by the Assembler once the
// digest was handed to the dispatcher.
type Finder interface {
	// Kind returns the subscription kind the finder handles.
	Kind() model.Kind

	// FindUpdates returns the non-empty updates for the user's subscriptions
	// of the finder's kind.
	FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error)
}

// Findings is the result of one finder for one user.
type Findings struct {
	Kind    model.Kind
	Updates []model.Update
	marks   []watermark
}

type watermark struct {
	subscriptionID int64
	apply          func(ctx context.Context) error
}

// add records an update together with the watermark write that acknowledges it.
// Empty updates are not reported but their watermark still moves.
func (f *Findings) add(u model.Update, subscriptionID int64, apply func(ctx context.Context) error) {
	if u != nil && !u.Empty() {
		f.Updates = append(f.Updates, u)
	}
	if apply != nil {
		f.marks = append(f.marks, watermark{subscriptionID: subscriptionID, apply: apply})
	}
}

// Pending returns the number of watermark writes waiting to be applied.
func (f Findings) Pending() int {
	return len(f.marks)
}

// Commit applies the watermark writes. Conflicts mean a concurrent run
// already moved the watermark; they are counted, not returned.
func (f Findings) Commit(ctx context.Context, logger Logger) (applied, conflicts int, err error) {
	var firstErr error
	for _, m := range f.marks {
		if mErr := m.apply(ctx); mErr != nil {
			if IsConflict(mErr) {
				conflicts++
				watermarkConflicts.WithLabelValues(string(f.Kind)).Inc()
				logger.Warnf("Watermark conflict: kind=%s, subscription=%d", f.Kind, m.subscriptionID)
				continue
			}
			logger.Errorf("Failed to advance watermark: kind=%s, subscription=%d: %v", f.Kind, m.subscriptionID, mErr)
			if firstErr == nil {
				firstErr = mErr
			}
			continue
		}
		applied++
	}
	return applied, conflicts, firstErr
}

// DefaultFinders returns one finder per subscription kind in digest order.
func DefaultFinders(legislation LegislationRepository, watermarks WatermarkRepository, searcher BillSearcher, logger Logger) []Finder {
	return []Finder{
		NewBillActionFinder(legislation, watermarks),
		NewBillSearchFinder(legislation, watermarks, searcher, logger),
		NewPersonFinder(legislation, watermarks),
		NewCommitteeActionFinder(legislation, watermarks),
		NewCommitteeEventFinder(legislation, watermarks),
		NewEventsFinder(legislation, watermarks),
	}
}

// sortEventsByStartDesc orders events latest start first, unknown starts last.
func sortEventsByStartDesc(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].StartDate, events[j].StartDate
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Time.After(b.Time)
	})
}

// sortActionsByDateDesc orders actions newest date first, unknown dates
// last, equal dates by order.
func sortActionsByDateDesc(actions []model.Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if a.Date.Valid != b.Date.Valid {
			return a.Date.Valid
		}
		if a.Date.Valid && !a.Date.Time.Equal(b.Date.Time) {
			return a.Date.Time.After(b.Date.Time)
		}
		return a.Order < b.Order
	})
}

func eventSummaries(events []model.Event) []model.EventSummary {
	out := make([]model.EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, e.Summary())
	}
	return out
}

func maxOrder(actions []model.Action, floor int) int {
	m := floor
	for _, a := range actions {
		if a.Order > m {
			m = a.Order
		}
	}
	return m
}

// noData converts ErrNoData into an empty result.
func noData(err error) error {
	if IsNoData(err) {
		return nil
	}
	return err
}
