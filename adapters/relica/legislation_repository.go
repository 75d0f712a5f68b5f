package relica

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/notify"
	"github.com/coregx/notify/model"
	"github.com/coregx/relica"
)

// LegislationRepository implements notify.LegislationRepository using Relica.
// It reads the host application's tables, which carry no prefix.
type LegislationRepository struct {
	db         *relica.DB
	driverName string
}

// NewLegislationRepository creates a new LegislationRepository.
func NewLegislationRepository(sqlDB *sql.DB, driverName string) *LegislationRepository {
	return &LegislationRepository{db: relica.WrapDB(sqlDB, driverName), driverName: driverName}
}

// order quotes the action order column for raw SQL fragments. Column names
// passed to Select, OrderBy and GroupBy are quoted by Relica itself.
func (r *LegislationRepository) order() string {
	return quoteIdent(r.driverName, "order")
}

// LoadBill retrieves a bill by OCD id.
func (r *LegislationRepository) LoadBill(ctx context.Context, id string) (model.Bill, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).Select("*").From(bill.TableName()).Where("id = ?", id).One(&bill)
	if err != nil {
		return bill, loadErr(err, "failed to load bill")
	}
	return bill, nil
}

// FindBillBySlug retrieves a bill by slug.
func (r *LegislationRepository) FindBillBySlug(ctx context.Context, slug string) (model.Bill, error) {
	var bill model.Bill
	err := r.db.WithContext(ctx).Select("*").From(bill.TableName()).Where("slug = ?", slug).One(&bill)
	if err != nil {
		return bill, loadErr(err, "failed to find bill by slug")
	}
	return bill, nil
}

// FindBillsByIDs retrieves the bills among ids created at or after since.
func (r *LegislationRepository) FindBillsByIDs(ctx context.Context, ids []string, since time.Time) ([]model.Bill, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var bills []model.Bill
	marks, args := placeholders(ids)
	q := r.db.WithContext(ctx).Select("*").
		From(model.Bill{}.TableName()).
		Where("id IN ("+marks+")", args...)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	err := q.OrderBy("created_at DESC").WithContext(ctx).All(&bills)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find bills by ids", err)
	}
	return bills, nil
}

// LoadPerson retrieves a person by id.
func (r *LegislationRepository) LoadPerson(ctx context.Context, id string) (model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).Select("*").From(person.TableName()).Where("id = ?", id).One(&person)
	if err != nil {
		return person, loadErr(err, "failed to load person")
	}
	return person, nil
}

// FindPersonBySlug retrieves a person by slug.
func (r *LegislationRepository) FindPersonBySlug(ctx context.Context, slug string) (model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).Select("*").From(person.TableName()).Where("slug = ?", slug).One(&person)
	if err != nil {
		return person, loadErr(err, "failed to find person by slug")
	}
	return person, nil
}

// LoadOrganization retrieves an organization by id.
func (r *LegislationRepository) LoadOrganization(ctx context.Context, id string) (model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).Select("*").From(org.TableName()).Where("id = ?", id).One(&org)
	if err != nil {
		return org, loadErr(err, "failed to load organization")
	}
	return org, nil
}

// FindOrganizationBySlug retrieves an organization by slug.
func (r *LegislationRepository) FindOrganizationBySlug(ctx context.Context, slug string) (model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).Select("*").From(org.TableName()).Where("slug = ?", slug).One(&org)
	if err != nil {
		return org, loadErr(err, "failed to find organization by slug")
	}
	return org, nil
}

// FindActionsAfter returns the actions of a bill with order > afterOrder.
func (r *LegislationRepository) FindActionsAfter(ctx context.Context, billID string, afterOrder int) ([]model.Action, error) {
	var actions []model.Action
	err := r.db.WithContext(ctx).Select("*").
		From(model.Action{}.TableName()).
		Where("bill_id = ? AND "+r.order()+" > ?", billID, afterOrder).
		OrderBy("order ASC").
		WithContext(ctx).
		All(&actions)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find actions", err)
	}
	return actions, nil
}

// MaxActionOrder returns the highest action order of a bill, or
// model.NoOrderSeen when it has none.
func (r *LegislationRepository) MaxActionOrder(ctx context.Context, billID string) (int, error) {
	var row struct {
		MaxOrder sql.NullInt64 `db:"max_order"`
	}
	err := r.db.WithContext(ctx).Select("MAX("+r.order()+") AS max_order").
		From(model.Action{}.TableName()).
		Where("bill_id = ?", billID).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return model.NoOrderSeen, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to read max action order", err)
	}
	if !row.MaxOrder.Valid {
		return model.NoOrderSeen, nil
	}
	return int(row.MaxOrder.Int64), nil
}

// FindCommitteeActions returns every action taken by an organization.
func (r *LegislationRepository) FindCommitteeActions(ctx context.Context, organizationID string) ([]model.Action, error) {
	var actions []model.Action
	err := r.db.WithContext(ctx).Select("*").
		From(model.Action{}.TableName()).
		Where("organization_id = ?", organizationID).
		OrderBy("bill_id ASC", "order ASC").
		WithContext(ctx).
		All(&actions)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find committee actions", err)
	}
	return actions, nil
}

// FindSponsorships returns every sponsorship of a person.
func (r *LegislationRepository) FindSponsorships(ctx context.Context, personID string) ([]model.Sponsorship, error) {
	var sponsorships []model.Sponsorship
	err := r.db.WithContext(ctx).Select("*").
		From(model.Sponsorship{}.TableName()).
		Where("person_id = ?", personID).
		OrderBy("created_at ASC").
		WithContext(ctx).
		All(&sponsorships)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find sponsorships", err)
	}
	return sponsorships, nil
}

// FindParticipantEvents returns events the organization takes part in that
// were created at or after since.
func (r *LegislationRepository) FindParticipantEvents(ctx context.Context, organizationID string, since time.Time) ([]model.Event, error) {
	var events []model.Event
	participants := model.EventParticipant{}.TableName()
	err := r.db.WithContext(ctx).Select("*").
		From(model.Event{}.TableName()).
		Where("id IN (SELECT event_id FROM "+participants+" WHERE organization_id = ?) AND created_at >= ?", organizationID, since).
		WithContext(ctx).
		All(&events)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find participant events", err)
	}
	return events, nil
}

// FindEventsChangedSince returns events created or updated at or after since.
func (r *LegislationRepository) FindEventsChangedSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).Select("*").
		From(model.Event{}.TableName()).
		Where("created_at >= ? OR updated_at >= ?", since, since).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&events)
	if err != nil {
		return nil, notify.NewErrorWithCause(notify.ErrCodeDatabase, "failed to find changed events", err)
	}
	return events, nil
}
