package handler

import (
	"log/slog"
	"net/http"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
	reconciler   service.OrderReconciler
	logger       *slog.Logger
}

func NewOrderHandler(orderService service.OrderService, reconciler service.OrderReconciler, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		reconciler:   reconciler,
		logger:       logger.With("component", "order_handler"),
	}
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.GetOrder(ctx, userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetNotifications(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	events, err := h.reconciler.History(ctx, userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, events)
}

func (h *OrderHandler) FinalizeOrder(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	var req dto.FinalizeOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.FinalizeOrder(ctx, userID, req.OrderID, req.ResultCode)
	if err != nil {
		if !apperr.Is(err, apperr.KindValidation) && !apperr.Is(err, apperr.KindNotFound) {
			h.logger.Error("finalize order", "order_id", req.OrderID, "user_id", userID, "error", err)
		}
		return httpError(err)
	}

	return c.JSON(http.StatusOK, &dto.FinalizeOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
	})
}

func (h *OrderHandler) RefundOrder(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := userIDFromContext(c)
	if err != nil {
		return err
	}

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	entry, err := h.reconciler.InitiateRefund(ctx, userID, req.OrderID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, entry)
}
