package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coregx/notify/model"
)

type slugSubscribe func(ctx context.Context, userID int64, slug string) (model.SubscriptionRef, error)

type slugUnsubscribe func(ctx context.Context, userID int64, slug string) error

func (a *API) subscribeBySlug(c echo.Context, subscribe slugSubscribe) error {
	ref, err := subscribe(c.Request().Context(), userID(c), c.Param("slug"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (a *API) unsubscribeBySlug(c echo.Context, unsubscribe slugUnsubscribe) error {
	if err := unsubscribe(c.Request().Context(), userID(c), c.Param("slug")); err != nil {
		return a.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) HandleSubscribeBill(c echo.Context) error {
	return a.subscribeBySlug(c, a.subscriptions.SubscribeBill)
}

func (a *API) HandleUnsubscribeBill(c echo.Context) error {
	return a.unsubscribeBySlug(c, a.subscriptions.UnsubscribeBill)
}

func (a *API) HandleSubscribePerson(c echo.Context) error {
	return a.subscribeBySlug(c, a.subscriptions.SubscribePerson)
}

func (a *API) HandleUnsubscribePerson(c echo.Context) error {
	return a.unsubscribeBySlug(c, a.subscriptions.UnsubscribePerson)
}

func (a *API) HandleSubscribeCommitteeActions(c echo.Context) error {
	return a.subscribeBySlug(c, a.subscriptions.SubscribeCommitteeActions)
}

func (a *API) HandleUnsubscribeCommitteeActions(c echo.Context) error {
	return a.unsubscribeBySlug(c, a.subscriptions.UnsubscribeCommitteeActions)
}

func (a *API) HandleSubscribeCommitteeEvents(c echo.Context) error {
	return a.subscribeBySlug(c, a.subscriptions.SubscribeCommitteeEvents)
}

func (a *API) HandleUnsubscribeCommitteeEvents(c echo.Context) error {
	return a.unsubscribeBySlug(c, a.subscriptions.UnsubscribeCommitteeEvents)
}

func (a *API) HandleSubscribeEvents(c echo.Context) error {
	ref, err := a.subscriptions.SubscribeEvents(c.Request().Context(), userID(c))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (a *API) HandleUnsubscribeEvents(c echo.Context) error {
	if err := a.subscriptions.UnsubscribeEvents(c.Request().Context(), userID(c)); err != nil {
		return a.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindSearch(c echo.Context) (model.SearchParams, error) {
	var params model.SearchParams
	if err := c.Bind(&params); err != nil {
		return params, err
	}
	return params, nil
}

// HandleSubscribeSearch saves the search in the request body.
func (a *API) HandleSubscribeSearch(c echo.Context) error {
	params, err := bindSearch(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid search parameters"))
	}
	ref, err := a.subscriptions.SubscribeSearch(c.Request().Context(), userID(c), params)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

type searchCheckResponse struct {
	Subscribed   bool                   `json:"subscribed"`
	Subscription *model.SubscriptionRef `json:"subscription,omitempty"`
}

// HandleCheckSearch tells whether the search in the request body is saved.
func (a *API) HandleCheckSearch(c echo.Context) error {
	params, err := bindSearch(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid search parameters"))
	}
	ref, ok, err := a.subscriptions.CheckSearch(c.Request().Context(), userID(c), params)
	if err != nil {
		return a.fail(c, err)
	}
	resp := searchCheckResponse{Subscribed: ok}
	if ok {
		resp.Subscription = &ref
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *API) HandleUnsubscribeSearch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return a.fail(c, err)
	}
	if err := a.subscriptions.UnsubscribeSearch(c.Request().Context(), userID(c), id); err != nil {
		return a.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleListSubscriptions returns the caller's subscriptions grouped by kind.
func (a *API) HandleListSubscriptions(c echo.Context) error {
	subs, err := a.subscriptions.ListSubscriptions(c.Request().Context(), userID(c))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, subs)
}
