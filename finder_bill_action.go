package notify

import (
	"context"
	"fmt"

	"github.com/coregx/notify/model"
)

// BillActionFinder reports actions on followed bills beyond each
// subscription's last seen order.
type BillActionFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
}

// NewBillActionFinder creates a BillActionFinder.
func NewBillActionFinder(legislation LegislationRepository, watermarks WatermarkRepository) *BillActionFinder {
	return &BillActionFinder{legislation: legislation, watermarks: watermarks}
}

// Kind implements Finder.
func (f *BillActionFinder) Kind() model.Kind { return model.KindBillAction }

// FindUpdates implements Finder. Results are ascending by order and the
// watermark moves to the highest order returned.
func (f *BillActionFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, th Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}

	for _, sub := range subs.BillActions {
		actions, err := f.legislation.FindActionsAfter(ctx, sub.BillID, sub.LastSeenOrder)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load actions for bill %s: %w", sub.BillID, err)
		}
		if len(actions) == 0 {
			continue
		}

		bill, err := f.legislation.LoadBill(ctx, sub.BillID)
		if err != nil {
			if IsNoData(err) {
				continue
			}
			return findings, fmt.Errorf("failed to load bill %s: %w", sub.BillID, err)
		}

		update := model.BillActionUpdate{Actions: make([]model.BillAction, 0, len(actions))}
		summary := bill.Summary()
		for _, a := range actions {
			update.Actions = append(update.Actions, model.BillAction{Bill: summary, Action: a.Summary()})
		}

		subID, from, to, at := sub.ID, sub.LastSeenOrder, maxOrder(actions, sub.LastSeenOrder), th.Now()
		findings.add(update, subID, func(ctx context.Context) error {
			return f.watermarks.AdvanceBillActionOrder(ctx, subID, from, to, at)
		})
	}

	return findings, nil
}
