package relica

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// kindTables maps each subscription kind to its table suffix and the column
// holding its target. The all-events kind has no target.
var kindTables = map[model.Kind]struct {
	table  string
	target string
}{
	model.KindBillAction:      {"bill_action_subscription", "bill_id"},
	model.KindPerson:          {"person_subscription", "person_id"},
	model.KindCommitteeAction: {"committee_action_subscription", "organization_id"},
	model.KindCommitteeEvent:  {"committee_event_subscription", "organization_id"},
	model.KindBillSearch:      {"bill_search_subscription", "search_params"},
	model.KindEvents:          {"events_subscription", ""},
}

type refRow struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	Target string `db:"target"`
}

type userIDRow struct {
	UserID int64 `db:"user_id"`
}

// SubscriptionRepository implements notify.SubscriptionRepository and
// notify.WatermarkRepository using Relica.
type SubscriptionRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return NewSubscriptionRepositoryWithPrefix(sqlDB, driverName, defaultPrefix)
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriptionRepository) table(kind model.Kind) (string, string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", "", notify.NewError(notify.ErrCodeValidation, "unknown subscription kind "+string(kind))
	}
	return r.tablePrefix + t.table, t.target, nil
}

func (r *SubscriptionRepository) seenSponsorshipTable() string {
	return r.tablePrefix + "seen_sponsorship"
}

func (r *SubscriptionRepository) seenBillTable() string {
	return r.tablePrefix + "seen_bill"
}

// ListUserIDs returns the ids of users holding any subscription.
func (r *SubscriptionRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, kind := range model.Kinds {
		table, _, err := r.table(kind)
		if err != nil {
			return nil, err
		}
		var rows []userIDRow
		err = r.db.WithContext(ctx).Select("user_id").From(table).GroupBy("user_id").WithContext(ctx).All(&rows)
		if err != nil {
			return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to list subscribed users", err)
		}
		for _, row := range rows {
			if !seen[row.UserID] {
				seen[row.UserID] = true
				ids = append(ids, row.UserID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListForUser returns every subscription of a user grouped by kind.
func (r *SubscriptionRepository) ListForUser(ctx context.Context, userID int64) (model.UserSubscriptions, error) {
	out := model.UserSubscriptions{UserID: userID}
	lists := map[model.Kind]interface{}{
		model.KindBillAction:      &out.BillActions,
		model.KindPerson:          &out.People,
		model.KindCommitteeAction: &out.CommitteeActions,
		model.KindCommitteeEvent:  &out.CommitteeEvents,
		model.KindBillSearch:      &out.BillSearches,
		model.KindEvents:          &out.Events,
	}
	for _, kind := range model.Kinds {
		table, _, err := r.table(kind)
		if err != nil {
			return out, err
		}
		err = r.db.WithContext(ctx).Select("*").
			From(table).
			Where("user_id = ?", userID).
			OrderBy("id ASC").
			WithContext(ctx).
			All(lists[kind])
		if err != nil {
			return out, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to list "+string(kind)+" subscriptions", err)
		}
	}
	return out, nil
}

func (r *SubscriptionRepository) selectRef(kind model.Kind) (string, string, error) {
	table, target, err := r.table(kind)
	if err != nil {
		return "", "", err
	}
	if target == "" {
		return table, "id, user_id, '' AS target", nil
	}
	return table, "id, user_id, " + target + " AS target", nil
}

// FindRef looks up a subscription by owner and target.
func (r *SubscriptionRepository) FindRef(ctx context.Context, kind model.Kind, userID int64, target string) (model.SubscriptionRef, error) {
	table, cols, err := r.selectRef(kind)
	if err != nil {
		return model.SubscriptionRef{}, err
	}
	_, targetCol, _ := r.table(kind)

	var row refRow
	q := r.db.WithContext(ctx).Select(cols).From(table).Where("user_id = ?", userID)
	if targetCol != "" {
		q = q.Where(targetCol+" = ?", target)
	}
	if err = q.One(&row); err != nil {
		return model.SubscriptionRef{}, loadErr(err, "failed to find subscription")
	}
	return model.SubscriptionRef{Kind: kind, ID: row.ID, UserID: row.UserID, Target: row.Target}, nil
}

// LoadRef retrieves a subscription reference by kind and id.
func (r *SubscriptionRepository) LoadRef(ctx context.Context, kind model.Kind, id int64) (model.SubscriptionRef, error) {
	table, cols, err := r.selectRef(kind)
	if err != nil {
		return model.SubscriptionRef{}, err
	}
	var row refRow
	if err = r.db.WithContext(ctx).Select(cols).From(table).Where("id = ?", id).One(&row); err != nil {
		return model.SubscriptionRef{}, loadErr(err, "failed to load subscription")
	}
	return model.SubscriptionRef{Kind: kind, ID: row.ID, UserID: row.UserID, Target: row.Target}, nil
}

// Delete removes a subscription and its seen rows.
func (r *SubscriptionRepository) Delete(ctx context.Context, ref model.SubscriptionRef) error {
	table, _, err := r.table(ref.Kind)
	if err != nil {
		return err
	}

	switch ref.Kind {
	case model.KindPerson:
		var seen []model.SeenSponsorship
		err = r.db.WithContext(ctx).Select("*").From(r.seenSponsorshipTable()).Where("subscription_id = ?", ref.ID).All(&seen)
		if err != nil {
			return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to load seen sponsorships", err)
		}
		for i := range seen {
			if err = r.db.WithContext(ctx).Model(&seen[i]).Table(r.seenSponsorshipTable()).Delete(); err != nil {
				return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete seen sponsorship", err)
			}
		}
	case model.KindCommitteeAction:
		seen, err := r.SeenBills(ctx, ref.ID)
		if err != nil {
			return err
		}
		for i := range seen {
			if err = r.db.WithContext(ctx).Model(&seen[i]).Table(r.seenBillTable()).Delete(); err != nil {
				return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete seen bill", err)
			}
		}
	}

	row := refRow{ID: ref.ID}
	if err = r.db.WithContext(ctx).Model(&row).Table(table).Delete(); err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to delete subscription", err)
	}
	return nil
}

// SaveBillAction creates a bill-action subscription.
func (r *SubscriptionRepository) SaveBillAction(ctx context.Context, m model.BillActionSubscription) (model.BillActionSubscription, error) {
	table, _, _ := r.table(model.KindBillAction)
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert bill action subscription")
	}
	return m, nil
}

// SavePerson creates a person subscription.
func (r *SubscriptionRepository) SavePerson(ctx context.Context, m model.PersonSubscription) (model.PersonSubscription, error) {
	table, _, _ := r.table(model.KindPerson)
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert person subscription")
	}
	return m, nil
}

// SaveCommitteeAction creates a committee-action subscription.
func (r *SubscriptionRepository) SaveCommitteeAction(ctx context.Context, m model.CommitteeActionSubscription) (model.CommitteeActionSubscription, error) {
	table, _, _ := r.table(model.KindCommitteeAction)
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert committee action subscription")
	}
	return m, nil
}

// SaveCommitteeEvent creates a committee-event subscription.
func (r *SubscriptionRepository) SaveCommitteeEvent(ctx context.Context, m model.CommitteeEventSubscription) (model.CommitteeEventSubscription, error) {
	table, _, _ := r.table(model.KindCommitteeEvent)
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert committee event subscription")
	}
	return m, nil
}

// SaveBillSearch creates a bill-search subscription.
func (r *SubscriptionRepository) SaveBillSearch(ctx context.Context, m model.BillSearchSubscription) (model.BillSearchSubscription, error) {
	table, _, _ := r.table(model.KindBillSearch)
	// search_params is too wide for a portable unique index.
	if _, err := r.FindRef(ctx, model.KindBillSearch, m.UserID, m.SearchParams); err == nil {
		return m, notify.NewError(notify.ErrCodeConflict, "bill search subscription already exists")
	} else if !notify.IsNoData(err) {
		return m, err
	}
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert bill search subscription")
	}
	return m, nil
}

// SaveEvents creates an all-events subscription.
func (r *SubscriptionRepository) SaveEvents(ctx context.Context, m model.EventsSubscription) (model.EventsSubscription, error) {
	table, _, _ := r.table(model.KindEvents)
	if err := r.db.WithContext(ctx).Model(&m).Table(table).Insert(); err != nil {
		return m, insertErr(err, "failed to insert events subscription")
	}
	return m, nil
}

// casMiss distinguishes a missing row from a lost compare-and-set.
func (r *SubscriptionRepository) casMiss(ctx context.Context, table string, id int64) error {
	var row refRow
	err := r.db.WithContext(ctx).Select("id").From(table).Where("id = ?", id).One(&row)
	if err != nil {
		return loadErr(err, "failed to load watermark")
	}
	return notify.ErrWatermarkConflict
}

// AdvanceBillActionOrder moves the order watermark from from to to.
func (r *SubscriptionRepository) AdvanceBillActionOrder(ctx context.Context, subscriptionID int64, from, to int, at time.Time) error {
	table, _, _ := r.table(model.KindBillAction)
	res, err := r.db.WithContext(ctx).Update(table).
		Set(map[string]interface{}{
			"last_seen_order":       to,
			"last_datetime_updated": at,
		}).
		Where("id = ? AND last_seen_order = ?", subscriptionID, from).
		WithContext(ctx).
		Execute()
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance bill action order", err)
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance bill action order", err)
	}
	if !changed {
		return r.casMiss(ctx, table, subscriptionID)
	}
	return nil
}

// SeenSponsorshipIDs returns the sponsorship ids already reported.
func (r *SubscriptionRepository) SeenSponsorshipIDs(ctx context.Context, subscriptionID int64) (map[string]bool, error) {
	var seen []model.SeenSponsorship
	err := r.db.WithContext(ctx).Select("*").
		From(r.seenSponsorshipTable()).
		Where("subscription_id = ?", subscriptionID).
		WithContext(ctx).
		All(&seen)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to load seen sponsorships", err)
	}
	out := make(map[string]bool, len(seen))
	for _, s := range seen {
		out[s.SponsorshipID] = true
	}
	return out, nil
}

// AddSeenSponsorships records sponsorship ids and advances the timestamp.
func (r *SubscriptionRepository) AddSeenSponsorships(ctx context.Context, subscriptionID int64, sponsorshipIDs []string, at time.Time) error {
	seen, err := r.SeenSponsorshipIDs(ctx, subscriptionID)
	if err != nil {
		return err
	}
	for _, id := range sponsorshipIDs {
		if seen[id] {
			continue
		}
		row := model.SeenSponsorship{SubscriptionID: subscriptionID, SponsorshipID: id, CreatedAt: at}
		err = r.db.WithContext(ctx).Model(&row).Table(r.seenSponsorshipTable()).Insert()
		if err != nil && !isUniqueViolation(err) {
			return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to insert seen sponsorship", err)
		}
		seen[id] = true
	}
	return r.AdvanceTimestamp(ctx, model.KindPerson, subscriptionID, at)
}

// SeenBills returns the per-bill watermarks of a committee-action subscription.
func (r *SubscriptionRepository) SeenBills(ctx context.Context, subscriptionID int64) ([]model.SeenBill, error) {
	var seen []model.SeenBill
	err := r.db.WithContext(ctx).Select("*").
		From(r.seenBillTable()).
		Where("subscription_id = ?", subscriptionID).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&seen)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to load seen bills", err)
	}
	return seen, nil
}

// CreateSeenBill creates a per-bill watermark.
func (r *SubscriptionRepository) CreateSeenBill(ctx context.Context, m model.SeenBill) (model.SeenBill, error) {
	err := r.db.WithContext(ctx).Model(&m).Table(r.seenBillTable()).Insert()
	if isUniqueViolation(err) {
		return m, notify.ErrWatermarkConflict
	}
	if err != nil {
		return m, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to insert seen bill", err)
	}
	return m, nil
}

// AdvanceSeenBillOrder moves a per-bill watermark from from to to.
func (r *SubscriptionRepository) AdvanceSeenBillOrder(ctx context.Context, seenBillID int64, from, to int) error {
	res, err := r.db.WithContext(ctx).Update(r.seenBillTable()).
		Set(map[string]interface{}{"last_seen_order": to}).
		Where("id = ? AND last_seen_order = ?", seenBillID, from).
		WithContext(ctx).
		Execute()
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance seen bill order", err)
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance seen bill order", err)
	}
	if !changed {
		return r.casMiss(ctx, r.seenBillTable(), seenBillID)
	}
	return nil
}

// AdvanceTimestamp moves last_datetime_updated forward to at.
func (r *SubscriptionRepository) AdvanceTimestamp(ctx context.Context, kind model.Kind, subscriptionID int64, at time.Time) error {
	table, _, err := r.table(kind)
	if err != nil {
		return err
	}
	res, err := r.db.WithContext(ctx).Update(table).
		Set(map[string]interface{}{"last_datetime_updated": at}).
		Where("id = ? AND last_datetime_updated < ?", subscriptionID, at).
		WithContext(ctx).
		Execute()
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance timestamp", err)
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to advance timestamp", err)
	}
	if !changed {
		// Already at or past at, unless the row is gone.
		if _, err = r.LoadRef(ctx, kind, subscriptionID); err != nil {
			return err
		}
	}
	return nil
}
