package notify

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/juju/clock"

	"github.com/coregx/notify/model"
)

// SubscriptionManager handles the subscription lifecycle: follow and
// unfollow per kind, saved searches and listing.
//
// Subscribe operations are get-or-create. A new subscription is primed
// with the current state of its target so the first digest only carries
// what happened after the user subscribed.
//
// Thread safety: Safe for concurrent use.
type SubscriptionManager struct {
	subscriptions       SubscriptionRepository
	legislation         LegislationRepository
	watermarks          WatermarkRepository
	clock               clock.Clock
	logger              Logger
	notificationService NotificationService
}

// SubscriptionManagerOption is a function that configures a SubscriptionManager.
type SubscriptionManagerOption func(*SubscriptionManager) error

// NewSubscriptionManager creates a new SubscriptionManager with the provided options.
//
// Required options:
//   - WithSubscriptionManagerRepositories: subscription, legislation, and watermark repositories
//   - WithSubscriptionManagerLogger: logger instance
//
// Example:
//
//	manager, err := notify.NewSubscriptionManager(
//	    notify.WithSubscriptionManagerRepositories(repos.Subscription, repos.Legislation, repos.Watermark),
//	    notify.WithSubscriptionManagerLogger(logger),
//	)
func NewSubscriptionManager(opts ...SubscriptionManagerOption) (*SubscriptionManager, error) {
	sm := &SubscriptionManager{
		clock:               clock.WallClock,
		notificationService: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(sm); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply subscription manager option", err)
		}
	}

	if sm.subscriptions == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required")
	}
	if sm.legislation == nil {
		return nil, NewError(ErrCodeConfiguration, "LegislationRepository is required")
	}
	if sm.watermarks == nil {
		return nil, NewError(ErrCodeConfiguration, "WatermarkRepository is required")
	}
	if sm.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	return sm, nil
}

// WithSubscriptionManagerRepositories sets the required repository dependencies.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerRepositories(
	subscriptions SubscriptionRepository,
	legislation LegislationRepository,
	watermarks WatermarkRepository,
) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if subscriptions == nil {
			return fmt.Errorf("subscriptions cannot be nil")
		}
		if legislation == nil {
			return fmt.Errorf("legislation cannot be nil")
		}
		if watermarks == nil {
			return fmt.Errorf("watermarks cannot be nil")
		}

		sm.subscriptions = subscriptions
		sm.legislation = legislation
		sm.watermarks = watermarks
		return nil
	}
}

// WithSubscriptionManagerLogger sets the logger instance for the subscription manager.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerLogger(logger Logger) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		sm.logger = logger
		return nil
	}
}

// WithSubscriptionManagerClock sets the clock used to prime timestamp watermarks.
func WithSubscriptionManagerClock(clk clock.Clock) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if clk == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		sm.clock = clk
		return nil
	}
}

// WithSubscriptionManagerNotifications sets the service told about created
// and deleted subscriptions.
func WithSubscriptionManagerNotifications(service NotificationService) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		sm.notificationService = service
		return nil
	}
}

// SubscribeBill follows the actions of the bill with the given slug.
// The watermark starts at the bill's latest action.
func (sm *SubscriptionManager) SubscribeBill(ctx context.Context, userID int64, slug string) (model.SubscriptionRef, error) {
	bill, err := sm.findBill(ctx, slug)
	if err != nil {
		return model.SubscriptionRef{}, err
	}

	return sm.getOrCreate(ctx, model.KindBillAction, userID, bill.ID, func(ctx context.Context) (int64, error) {
		latest, err := sm.legislation.MaxActionOrder(ctx, bill.ID)
		if err != nil {
			if !IsNoData(err) {
				return 0, fmt.Errorf("failed to read latest action of %s: %w", bill.ID, err)
			}
			latest = model.NoOrderSeen
		}
		sub, err := sm.subscriptions.SaveBillAction(ctx, model.NewBillActionSubscription(userID, bill.ID, latest, sm.clock.Now()))
		return sub.ID, err
	})
}

// UnsubscribeBill stops following a bill.
func (sm *SubscriptionManager) UnsubscribeBill(ctx context.Context, userID int64, slug string) error {
	bill, err := sm.findBill(ctx, slug)
	if err != nil {
		return err
	}
	return sm.remove(ctx, model.KindBillAction, userID, bill.ID)
}

// SubscribePerson follows the sponsorships of the person with the given slug.
// Current sponsorships are marked as seen.
func (sm *SubscriptionManager) SubscribePerson(ctx context.Context, userID int64, slug string) (model.SubscriptionRef, error) {
	person, err := sm.legislation.FindPersonBySlug(ctx, slug)
	if err != nil {
		return model.SubscriptionRef{}, notFound(err, "person", slug)
	}

	return sm.getOrCreate(ctx, model.KindPerson, userID, person.ID, func(ctx context.Context) (int64, error) {
		sponsorships, err := sm.legislation.FindSponsorships(ctx, person.ID)
		if err = noData(err); err != nil {
			return 0, fmt.Errorf("failed to read sponsorships of %s: %w", person.ID, err)
		}
		ids := make([]string, 0, len(sponsorships))
		for _, s := range sponsorships {
			ids = append(ids, s.ID)
		}

		now := sm.clock.Now()
		sub, err := sm.subscriptions.SavePerson(ctx, model.NewPersonSubscription(userID, person.ID, now))
		if err != nil {
			return 0, err
		}
		if len(ids) > 0 {
			if err := sm.watermarks.AddSeenSponsorships(ctx, sub.ID, ids, now); err != nil {
				return 0, sm.discard(ctx, model.KindPerson, sub.ID, userID, fmt.Errorf("failed to prime sponsorships: %w", err))
			}
		}
		return sub.ID, nil
	})
}

// UnsubscribePerson stops following a person.
func (sm *SubscriptionManager) UnsubscribePerson(ctx context.Context, userID int64, slug string) error {
	person, err := sm.legislation.FindPersonBySlug(ctx, slug)
	if err != nil {
		return notFound(err, "person", slug)
	}
	return sm.remove(ctx, model.KindPerson, userID, person.ID)
}

// SubscribeCommitteeActions follows the actions of a committee.
// Every bill the committee already acted on starts tracked at its latest
// committee action.
func (sm *SubscriptionManager) SubscribeCommitteeActions(ctx context.Context, userID int64, slug string) (model.SubscriptionRef, error) {
	org, err := sm.findOrganization(ctx, slug)
	if err != nil {
		return model.SubscriptionRef{}, err
	}

	return sm.getOrCreate(ctx, model.KindCommitteeAction, userID, org.ID, func(ctx context.Context) (int64, error) {
		actions, err := sm.legislation.FindCommitteeActions(ctx, org.ID)
		if err = noData(err); err != nil {
			return 0, fmt.Errorf("failed to read actions of %s: %w", org.ID, err)
		}
		groups, billOrder := groupActionsByBill(actions)

		sub, err := sm.subscriptions.SaveCommitteeAction(ctx, model.NewCommitteeActionSubscription(userID, org.ID, sm.clock.Now()))
		if err != nil {
			return 0, err
		}
		for _, billID := range billOrder {
			row := model.SeenBill{SubscriptionID: sub.ID, BillID: billID, LastSeenOrder: maxOrder(groups[billID], model.NoOrderSeen)}
			if _, err := sm.watermarks.CreateSeenBill(ctx, row); err != nil && !IsConflict(err) {
				return 0, sm.discard(ctx, model.KindCommitteeAction, sub.ID, userID, fmt.Errorf("failed to prime bill %s: %w", billID, err))
			}
		}
		return sub.ID, nil
	})
}

// UnsubscribeCommitteeActions stops following a committee's actions.
func (sm *SubscriptionManager) UnsubscribeCommitteeActions(ctx context.Context, userID int64, slug string) error {
	org, err := sm.findOrganization(ctx, slug)
	if err != nil {
		return err
	}
	return sm.remove(ctx, model.KindCommitteeAction, userID, org.ID)
}

// SubscribeCommitteeEvents follows the events of a committee.
func (sm *SubscriptionManager) SubscribeCommitteeEvents(ctx context.Context, userID int64, slug string) (model.SubscriptionRef, error) {
	org, err := sm.findOrganization(ctx, slug)
	if err != nil {
		return model.SubscriptionRef{}, err
	}

	return sm.getOrCreate(ctx, model.KindCommitteeEvent, userID, org.ID, func(ctx context.Context) (int64, error) {
		sub, err := sm.subscriptions.SaveCommitteeEvent(ctx, model.NewCommitteeEventSubscription(userID, org.ID, sm.clock.Now()))
		return sub.ID, err
	})
}

// UnsubscribeCommitteeEvents stops following a committee's events.
func (sm *SubscriptionManager) UnsubscribeCommitteeEvents(ctx context.Context, userID int64, slug string) error {
	org, err := sm.findOrganization(ctx, slug)
	if err != nil {
		return err
	}
	return sm.remove(ctx, model.KindCommitteeEvent, userID, org.ID)
}

// SubscribeEvents follows every event.
func (sm *SubscriptionManager) SubscribeEvents(ctx context.Context, userID int64) (model.SubscriptionRef, error) {
	return sm.getOrCreate(ctx, model.KindEvents, userID, "", func(ctx context.Context) (int64, error) {
		sub, err := sm.subscriptions.SaveEvents(ctx, model.NewEventsSubscription(userID, sm.clock.Now()))
		return sub.ID, err
	})
}

// UnsubscribeEvents stops following events.
func (sm *SubscriptionManager) UnsubscribeEvents(ctx context.Context, userID int64) error {
	return sm.remove(ctx, model.KindEvents, userID, "")
}

// SubscribeSearch saves a search. Equivalent params (same term, same facet
// values in any order) map to the same subscription.
func (sm *SubscriptionManager) SubscribeSearch(ctx context.Context, userID int64, params model.SearchParams) (model.SubscriptionRef, error) {
	encoded, err := encodeSearchParams(params)
	if err != nil {
		return model.SubscriptionRef{}, err
	}

	return sm.getOrCreate(ctx, model.KindBillSearch, userID, encoded, func(ctx context.Context) (int64, error) {
		sub, err := model.NewBillSearchSubscription(userID, params, sm.clock.Now())
		if err != nil {
			return 0, NewErrorWithCause(ErrCodeValidation, "invalid search parameters", err)
		}
		sub, err = sm.subscriptions.SaveBillSearch(ctx, sub)
		return sub.ID, err
	})
}

// CheckSearch reports whether the user already saved an equivalent search.
func (sm *SubscriptionManager) CheckSearch(ctx context.Context, userID int64, params model.SearchParams) (model.SubscriptionRef, bool, error) {
	encoded, err := encodeSearchParams(params)
	if err != nil {
		return model.SubscriptionRef{}, false, err
	}

	ref, err := sm.subscriptions.FindRef(ctx, model.KindBillSearch, userID, encoded)
	if err != nil {
		if IsNoData(err) {
			return model.SubscriptionRef{}, false, nil
		}
		return model.SubscriptionRef{}, false, NewErrorWithCause(ErrCodeDatabase, "failed to look up search subscription", err)
	}
	return ref, true, nil
}

// UnsubscribeSearch removes a saved search by id. Only the owner can remove it.
func (sm *SubscriptionManager) UnsubscribeSearch(ctx context.Context, userID, subscriptionID int64) error {
	ref, err := sm.subscriptions.LoadRef(ctx, model.KindBillSearch, subscriptionID)
	if err != nil {
		if IsNoData(err) {
			return NewError(ErrCodeNotFound, fmt.Sprintf("search subscription %d not found", subscriptionID))
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load search subscription", err)
	}
	if ref.UserID != userID {
		return NewError(ErrCodeNotFound, fmt.Sprintf("search subscription %d not found", subscriptionID))
	}
	return sm.delete(ctx, ref)
}

// ListSubscriptions returns every subscription of a user grouped by kind.
func (sm *SubscriptionManager) ListSubscriptions(ctx context.Context, userID int64) (model.UserSubscriptions, error) {
	subs, err := sm.subscriptions.ListForUser(ctx, userID)
	if err = noData(err); err != nil {
		return model.UserSubscriptions{}, NewErrorWithCause(ErrCodeDatabase, "failed to list subscriptions", err)
	}
	subs.UserID = userID
	return subs, nil
}

// HasSubscriptions reports whether the user follows anything.
func (sm *SubscriptionManager) HasSubscriptions(ctx context.Context, userID int64) (bool, error) {
	subs, err := sm.ListSubscriptions(ctx, userID)
	if err != nil {
		return false, err
	}
	return !subs.Empty(), nil
}

// getOrCreate returns the existing subscription or creates one with create.
// A conflict from a concurrent create resolves to the winner's row.
func (sm *SubscriptionManager) getOrCreate(
	ctx context.Context,
	kind model.Kind,
	userID int64,
	target string,
	create func(ctx context.Context) (int64, error),
) (model.SubscriptionRef, error) {
	if userID == 0 {
		return model.SubscriptionRef{}, NewError(ErrCodeValidation, "user ID is required")
	}

	ref, err := sm.subscriptions.FindRef(ctx, kind, userID, target)
	if err == nil {
		sm.logger.Debugf("Subscription already exists: kind=%s, id=%d, user=%d", kind, ref.ID, userID)
		return ref, nil
	}
	if !IsNoData(err) {
		return model.SubscriptionRef{}, NewErrorWithCause(ErrCodeDatabase, "failed to look up subscription", err)
	}

	id, err := create(ctx)
	if err != nil {
		if IsConflict(err) {
			return sm.subscriptions.FindRef(ctx, kind, userID, target)
		}
		var notifyErr *Error
		if errors.As(err, &notifyErr) {
			return model.SubscriptionRef{}, err
		}
		return model.SubscriptionRef{}, NewErrorWithCause(ErrCodeDatabase, "failed to create subscription", err)
	}

	ref = model.SubscriptionRef{Kind: kind, ID: id, UserID: userID, Target: target}
	sm.logger.Infof("Subscription created: kind=%s, id=%d, user=%d", kind, id, userID)

	if err := sm.notificationService.NotifySubscriptionCreated(ctx, ref); err != nil {
		sm.logger.Warnf("Failed to send subscription created notification: %v", err)
	}
	return ref, nil
}

// discard deletes a subscription whose seen set could not be primed and
// returns cause.
func (sm *SubscriptionManager) discard(ctx context.Context, kind model.Kind, id, userID int64, cause error) error {
	ref := model.SubscriptionRef{Kind: kind, ID: id, UserID: userID}
	if err := sm.subscriptions.Delete(ctx, ref); err != nil {
		sm.logger.Errorf("Failed to discard unprimed subscription: kind=%s, id=%d: %v", kind, id, err)
	}
	return cause
}

func (sm *SubscriptionManager) remove(ctx context.Context, kind model.Kind, userID int64, target string) error {
	ref, err := sm.subscriptions.FindRef(ctx, kind, userID, target)
	if err != nil {
		if IsNoData(err) {
			return NewError(ErrCodeNotFound, fmt.Sprintf("no %s subscription found", kind))
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to look up subscription", err)
	}
	return sm.delete(ctx, ref)
}

func (sm *SubscriptionManager) delete(ctx context.Context, ref model.SubscriptionRef) error {
	if err := sm.subscriptions.Delete(ctx, ref); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to delete subscription", err)
	}

	sm.logger.Infof("Subscription deleted: kind=%s, id=%d, user=%d", ref.Kind, ref.ID, ref.UserID)
	if err := sm.notificationService.NotifySubscriptionDeleted(ctx, ref); err != nil {
		sm.logger.Warnf("Failed to send subscription deleted notification: %v", err)
	}
	return nil
}

func (sm *SubscriptionManager) findBill(ctx context.Context, slug string) (model.Bill, error) {
	bill, err := sm.legislation.FindBillBySlug(ctx, slug)
	if err != nil {
		return model.Bill{}, notFound(err, "bill", slug)
	}
	return bill, nil
}

func (sm *SubscriptionManager) findOrganization(ctx context.Context, slug string) (model.Organization, error) {
	org, err := sm.legislation.FindOrganizationBySlug(ctx, slug)
	if err != nil {
		return model.Organization{}, notFound(err, "committee", slug)
	}
	return org, nil
}

// notFound maps ErrNoData from a slug lookup to a user-visible error.
func notFound(err error, what, slug string) error {
	if IsNoData(err) {
		return NewError(ErrCodeNotFound, fmt.Sprintf("%s %q not found", what, slug))
	}
	return NewErrorWithCause(ErrCodeDatabase, fmt.Sprintf("failed to load %s %q", what, slug), err)
}

// ValidateSearchParams checks a search before it is saved.
func ValidateSearchParams(p model.SearchParams) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Term, validation.Length(0, 255)),
		validation.Field(&p.Facets,
			validation.By(func(value interface{}) error {
				facets, _ := value.(map[string][]string)
				for name := range facets {
					if name == "" {
						return errors.New("facet names must not be empty")
					}
				}
				return nil
			}),
			validation.Each(validation.Required),
		),
	)
}

func encodeSearchParams(params model.SearchParams) (string, error) {
	if err := ValidateSearchParams(params); err != nil {
		return "", NewErrorWithCause(ErrCodeValidation, "invalid search parameters", err)
	}
	encoded, err := params.Encode()
	if err != nil {
		return "", NewErrorWithCause(ErrCodeValidation, "invalid search parameters", err)
	}
	return encoded, nil
}
