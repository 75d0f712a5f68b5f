// Package api exposes subscription management, account signup and delivery
// administration over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/coregx/notify"
)

// UserHeader carries the id of the signed-in user. It is set by the
// authentication layer in front of this server.
const UserHeader = "X-Notify-User"

const defaultHistoryLimit = 20

// API holds the services behind the HTTP handlers.
type API struct {
	subscriptions *notify.SubscriptionManager
	accounts      *notify.AccountService
	runner        *notify.Runner
	worker        *notify.DeliveryWorker
	window        time.Duration
	logger        *slog.Logger
}

// NewAPI creates the handler set. window is the look-back used for digests
// sent on demand.
func NewAPI(
	subscriptions *notify.SubscriptionManager,
	accounts *notify.AccountService,
	runner *notify.Runner,
	worker *notify.DeliveryWorker,
	window time.Duration,
	logger *slog.Logger,
) *API {
	return &API{
		subscriptions: subscriptions,
		accounts:      accounts,
		runner:        runner,
		worker:        worker,
		window:        window,
		logger:        logger,
	}
}

// Register mounts every route under /api/v1.
func (a *API) Register(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.GET("/health", a.HandleHealth)
	g.POST("/signup", a.HandleSignup)
	g.GET("/activation/:key", a.HandleActivate)

	u := g.Group("", a.requireUser)
	u.POST("/bills/:slug/subscription", a.HandleSubscribeBill)
	u.DELETE("/bills/:slug/subscription", a.HandleUnsubscribeBill)
	u.POST("/people/:slug/subscription", a.HandleSubscribePerson)
	u.DELETE("/people/:slug/subscription", a.HandleUnsubscribePerson)
	u.POST("/committees/:slug/actions/subscription", a.HandleSubscribeCommitteeActions)
	u.DELETE("/committees/:slug/actions/subscription", a.HandleUnsubscribeCommitteeActions)
	u.POST("/committees/:slug/events/subscription", a.HandleSubscribeCommitteeEvents)
	u.DELETE("/committees/:slug/events/subscription", a.HandleUnsubscribeCommitteeEvents)
	u.POST("/events/subscription", a.HandleSubscribeEvents)
	u.DELETE("/events/subscription", a.HandleUnsubscribeEvents)
	u.POST("/searches/subscription", a.HandleSubscribeSearch)
	u.POST("/searches/check", a.HandleCheckSearch)
	u.DELETE("/searches/subscription/:id", a.HandleUnsubscribeSearch)
	u.GET("/subscriptions", a.HandleListSubscriptions)
	u.POST("/notifications/send", a.HandleSendNow)
	u.GET("/deliveries", a.HandleDeliveries)

	admin := u.Group("/admin")
	admin.GET("/dlq", a.HandleListDLQ)
	admin.GET("/dlq/stats", a.HandleDLQStats)
	admin.POST("/dlq/:id/resolve", a.HandleResolveDLQ)
	admin.POST("/dlq/:id/requeue", a.HandleRequeueDLQ)
}

const userIDKey = "notify.user"

// requireUser reads the caller identity from UserHeader.
func (a *API) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(UserHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			return c.JSON(http.StatusUnauthorized, errorBody("sign in required"))
		}
		c.Set(userIDKey, id)
		return next(c)
	}
}

func userID(c echo.Context) int64 {
	id, _ := c.Get(userIDKey).(int64)
	return id
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, notify.NewError(notify.ErrCodeValidation, "invalid id "+strconv.Quote(c.Param("id")))
	}
	return id, nil
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// fail maps a service error onto a status code and a JSON body. Internal
// failures are logged and reported without detail.
func (a *API) fail(c echo.Context, err error) error {
	var notifyErr *notify.Error
	if errors.As(err, &notifyErr) {
		switch notifyErr.Code {
		case notify.ErrCodeNotFound, notify.ErrCodeNoData:
			return c.JSON(http.StatusNotFound, errorBody(notifyErr.Error()))
		case notify.ErrCodeValidation:
			return c.JSON(http.StatusBadRequest, errorBody(notifyErr.Error()))
		case notify.ErrCodeConflict:
			return c.JSON(http.StatusConflict, errorBody(notifyErr.Error()))
		case notify.ErrCodeDelivery, notify.ErrCodeSearch:
			a.logger.Warn("upstream failure", "path", c.Path(), "err", err)
			return c.JSON(http.StatusBadGateway, errorBody(notifyErr.Message))
		}
	}

	a.logger.Error("request failed", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}
