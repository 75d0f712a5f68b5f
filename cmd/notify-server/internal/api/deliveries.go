package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/coregx/notify/model"
)

type sendResponse struct {
	Sent        bool         `json:"sent"`
	JobID       int64        `json:"jobID,omitempty"`
	QueueID     int64        `json:"queueID,omitempty"`
	FailedKinds []model.Kind `json:"failedKinds,omitempty"`
	Conflicts   int          `json:"conflicts"`
}

// HandleSendNow builds and queues the caller's digest immediately.
func (a *API) HandleSendNow(c echo.Context) error {
	result, err := a.runner.RunForUser(c.Request().Context(), userID(c), a.window)
	if err != nil {
		return a.fail(c, err)
	}

	resp := sendResponse{Sent: result.Sent(), FailedKinds: result.FailedKinds, Conflicts: result.Conflicts}
	if result.Dispatch != nil {
		resp.JobID = result.Dispatch.JobID
		resp.QueueID = result.Dispatch.QueueID
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleDeliveries returns the caller's queue, DLQ and log entries.
func (a *API) HandleDeliveries(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
		}
		limit = n
	}

	history, err := a.worker.History(c.Request().Context(), userID(c), limit)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

type healthResponse struct {
	Status        string `json:"status"`
	UnresolvedDLQ int    `json:"unresolvedDLQ"`
}

func (a *API) HandleHealth(c echo.Context) error {
	count, err := a.worker.CountUnresolvedDLQ(c.Request().Context())
	if err != nil {
		a.logger.Error("health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", UnresolvedDLQ: count})
}

// HandleListDLQ lists unresolved DLQ entries. With ?older_than=1h only
// entries waiting longer than that are returned.
func (a *API) HandleListDLQ(c echo.Context) error {
	ctx := c.Request().Context()
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		items []model.DeadLetterQueue
		err   error
	)
	if raw := c.QueryParam("older_than"); raw != "" {
		age, perr := time.ParseDuration(raw)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, errorBody("older_than must be a duration like 1h"))
		}
		items, err = a.worker.StaleDLQ(ctx, age, limit)
	} else {
		items, err = a.worker.UnresolvedDLQ(ctx, limit)
	}
	if err != nil {
		return a.fail(c, err)
	}
	if items == nil {
		items = []model.DeadLetterQueue{}
	}
	return c.JSON(http.StatusOK, items)
}

func (a *API) HandleDLQStats(c echo.Context) error {
	stats, err := a.worker.GetDLQStats(c.Request().Context())
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (a *API) HandleResolveDLQ(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return a.fail(c, err)
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	entry, err := a.worker.ResolveDLQItem(c.Request().Context(), id, operator(c), req.Note)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (a *API) HandleRequeueDLQ(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return a.fail(c, err)
	}

	item, err := a.worker.RequeueDLQItem(c.Request().Context(), id, operator(c))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// operator names the caller in DLQ resolutions.
func operator(c echo.Context) string {
	return "user:" + strconv.FormatInt(userID(c), 10)
}
