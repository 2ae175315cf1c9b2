package handler

import (
	"io"
	"log/slog"
	"net/http"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
)

const maxNotificationBytes = 1 << 20

// NotificationAccepted is the body the provider expects before it stops redelivering.
const NotificationAccepted = "[accepted]"

type WebhookHandler struct {
	reconciler service.OrderReconciler
	logger     *slog.Logger
}

func NewWebhookHandler(reconciler service.OrderReconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger.With("component", "webhook_handler"),
	}
}

// AdyenNotification answers 400, 401 or 202 only. A 5xx would make the
// provider redeliver the whole batch.
func (h *WebhookHandler) AdyenNotification(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	err = h.reconciler.HandleNotification(ctx, body)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindValidation):
		return echo.NewHTTPError(http.StatusBadRequest, apperr.PublicMessage(err))
	case apperr.Is(err, apperr.KindAuthenticity):
		return echo.NewHTTPError(http.StatusUnauthorized, apperr.PublicMessage(err))
	default:
		h.logger.Error("notification handling failed", "error", err)
	}

	return c.String(http.StatusAccepted, NotificationAccepted)
}
