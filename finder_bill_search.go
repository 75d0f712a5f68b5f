package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/notify/model"
	"github.com/coregx/notify/search"
)

// BillSearcher runs a saved search against the full-text index and returns
// the ids of matching bills created at or after since.
type BillSearcher interface {
	SearchBillIDs(ctx context.Context, params model.SearchParams, since time.Time) ([]string, error)
}

// BillSearchFinder reports bills matching a saved search that were created
// since the subscription's watermark.
//
// A missing or failing search service never fails the digest: the
// subscription is skipped with a warning and its watermark stays put.
type BillSearchFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
	searcher    BillSearcher
	logger      Logger
}

// NewBillSearchFinder creates a BillSearchFinder. A nil searcher behaves
// like an unconfigured index.
func NewBillSearchFinder(legislation LegislationRepository, watermarks WatermarkRepository, searcher BillSearcher, logger Logger) *BillSearchFinder {
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &BillSearchFinder{
		legislation: legislation,
		watermarks:  watermarks,
		searcher:    searcher,
		logger:      logger,
	}
}

// Kind implements Finder.
func (f *BillSearchFinder) Kind() model.Kind { return model.KindBillSearch }

// FindUpdates implements Finder.
func (f *BillSearchFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}
	if len(subs.BillSearches) == 0 {
		return findings, nil
	}
	if f.searcher == nil {
		f.logger.Warnf("Search index is not configured, skipping %d bill search subscriptions", len(subs.BillSearches))
		return findings, nil
	}

	for _, sub := range subs.BillSearches {
		params, err := sub.Params()
		if err != nil {
			f.logger.Warnf("Skipping bill search subscription %d: %v", sub.ID, err)
			continue
		}

		since := th.Since(sub.LastDatetimeUpdated)
		ids, err := f.searcher.SearchBillIDs(ctx, params, since)
		if err != nil {
			if errors.Is(err, search.ErrUnconfigured) {
				f.logger.Warnf("Search index is not configured, skipping %d bill search subscriptions", len(subs.BillSearches))
				return findings, nil
			}
			f.logger.Warnf("Search failed for subscription %d (term=%q): %v", sub.ID, params.Term, err)
			continue
		}

		var bills []model.Bill
		if len(ids) > 0 {
			bills, err = f.legislation.FindBillsByIDs(ctx, ids, since)
			if err = noData(err); err != nil {
				return findings, fmt.Errorf("failed to load matched bills: %w", err)
			}
		}

		byID := make(map[string]model.Bill, len(bills))
		for _, b := range bills {
			byID[b.ID] = b
		}
		update := model.BillSearchUpdate{Params: params}
		for _, id := range ids {
			if b, ok := byID[id]; ok && IsNew(b.CreatedAt, since) {
				update.Bills = append(update.Bills, b.Summary())
				delete(byID, id)
			}
		}

		subID, at := sub.ID, th.Now()
		findings.add(update, subID, func(ctx context.Context) error {
			return f.watermarks.AdvanceTimestamp(ctx, model.KindBillSearch, subID, at)
		})
	}

	return findings, nil
}
