package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/notify/model"
)

// CommitteeActionFinder reports actions a followed committee took, grouped by bill.
//
// Each bill carries its own order watermark (a SeenBill row). A bill the
// committee acts on for the first time is reported with all of its committee
// actions and starts being tracked; a tracked bill is reported with actions
// beyond its watermark. A bill never appears twice in one update.
type CommitteeActionFinder struct {
	legislation LegislationRepository
	watermarks  WatermarkRepository
}

// NewCommitteeActionFinder creates a CommitteeActionFinder.
func NewCommitteeActionFinder(legislation LegislationRepository, watermarks WatermarkRepository) *CommitteeActionFinder {
	return &CommitteeActionFinder{legislation: legislation, watermarks: watermarks}
}

// Kind implements Finder.
func (f *CommitteeActionFinder) Kind() model.Kind { return model.KindCommitteeAction }

// FindUpdates implements Finder.
func (f *CommitteeActionFinder) FindUpdates(ctx context.Context, subs model.UserSubscriptions, _ Threshold) (Findings, error) {
	findings := Findings{Kind: f.Kind()}

	for _, sub := range subs.CommitteeActions {
		org, err := f.legislation.LoadOrganization(ctx, sub.OrganizationID)
		if err != nil {
			if IsNoData(err) {
				continue
			}
			return findings, fmt.Errorf("failed to load organization %s: %w", sub.OrganizationID, err)
		}

		actions, err := f.legislation.FindCommitteeActions(ctx, org.ID)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load actions of %s: %w", org.ID, err)
		}

		seenRows, err := f.watermarks.SeenBills(ctx, sub.ID)
		if err = noData(err); err != nil {
			return findings, fmt.Errorf("failed to load seen bills of subscription %d: %w", sub.ID, err)
		}
		seen := make(map[string]model.SeenBill, len(seenRows))
		for _, sb := range seenRows {
			seen[sb.BillID] = sb
		}

		groups, billOrder := groupActionsByBill(actions)

		var (
			reported = make(map[string][]model.Action)
			writes   = make(map[string]func(ctx context.Context) error)
		)
		for _, billID := range billOrder {
			group := groups[billID]
			if sb, tracked := seen[billID]; tracked {
				newer := actionsAfter(group, sb.LastSeenOrder)
				if len(newer) == 0 {
					continue
				}
				reported[billID] = newer
				seenID, from, to := sb.ID, sb.LastSeenOrder, maxOrder(newer, sb.LastSeenOrder)
				writes[billID] = func(ctx context.Context) error {
					return f.watermarks.AdvanceSeenBillOrder(ctx, seenID, from, to)
				}
				continue
			}

			reported[billID] = group
			row := model.SeenBill{SubscriptionID: sub.ID, BillID: billID, LastSeenOrder: maxOrder(group, model.NoOrderSeen)}
			writes[billID] = func(ctx context.Context) error {
				_, err := f.watermarks.CreateSeenBill(ctx, row)
				return err
			}
		}
		if len(reported) == 0 {
			continue
		}

		update, err := f.buildUpdate(ctx, org, billOrder, reported)
		if err != nil {
			return findings, err
		}

		if update.Empty() {
			continue
		}

		// Bills missing from the bill table stay unseen until they can be reported.
		for _, b := range update.Bills {
			findings.add(nil, sub.ID, writes[b.ID])
		}
		findings.add(update, sub.ID, nil)
	}

	return findings, nil
}

func (f *CommitteeActionFinder) buildUpdate(ctx context.Context, org model.Organization, billOrder []string, reported map[string][]model.Action) (model.CommitteeActionUpdate, error) {
	ids := make([]string, 0, len(reported))
	for _, id := range billOrder {
		if _, ok := reported[id]; ok {
			ids = append(ids, id)
		}
	}

	bills, err := f.legislation.FindBillsByIDs(ctx, ids, time.Time{})
	if err = noData(err); err != nil {
		return model.CommitteeActionUpdate{}, fmt.Errorf("failed to load committee bills: %w", err)
	}
	byID := make(map[string]model.Bill, len(bills))
	for _, b := range bills {
		byID[b.ID] = b
	}

	update := model.CommitteeActionUpdate{Name: org.Name, Slug: org.Slug}
	for _, id := range ids {
		bill, ok := byID[id]
		if !ok {
			continue
		}
		actions := append([]model.Action(nil), reported[id]...)
		sortActionsByDateDesc(actions)

		entry := model.CommitteeBill{BillSummary: bill.Summary()}
		for _, a := range actions {
			entry.Actions = append(entry.Actions, a.Summary())
		}
		update.Bills = append(update.Bills, entry)
	}
	return update, nil
}

func groupActionsByBill(actions []model.Action) (map[string][]model.Action, []string) {
	groups := make(map[string][]model.Action)
	var order []string
	for _, a := range actions {
		if _, ok := groups[a.BillID]; !ok {
			order = append(order, a.BillID)
		}
		groups[a.BillID] = append(groups[a.BillID], a)
	}
	return groups, order
}

func actionsAfter(actions []model.Action, order int) []model.Action {
	var out []model.Action
	for _, a := range actions {
		if a.Order > order {
			out = append(out, a)
		}
	}
	return out
}
