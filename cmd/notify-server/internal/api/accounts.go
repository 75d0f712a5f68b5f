package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coregx/notify"
)

// HandleSignup creates an inactive account and mails its activation link.
func (a *API) HandleSignup(c echo.Context) error {
	var req notify.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid signup request"))
	}

	user, err := a.accounts.Signup(c.Request().Context(), req)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

type activationResponse struct {
	Outcome notify.ActivationOutcome `json:"outcome"`
	Message string                   `json:"message"`
}

func (a *API) HandleActivate(c echo.Context) error {
	outcome, err := a.accounts.Activate(c.Request().Context(), c.Param("key"))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(http.StatusOK, activationResponse{Outcome: outcome, Message: outcome.Message()})
}
