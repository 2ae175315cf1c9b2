package handler

import (
	"net/http"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/middleware"

	"github.com/labstack/echo/v4"
)

func userIDFromContext(c echo.Context) (string, error) {
	userID, _ := c.Get(middleware.UserIDKey).(string)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	return userID, nil
}

// httpError maps a service error onto its response; details stay internal.
func httpError(err error) error {
	return echo.NewHTTPError(apperr.HTTPStatus(err), apperr.PublicMessage(err)).SetInternal(err)
}
