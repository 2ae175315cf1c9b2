package service

import (
	"context"
	"log/slog"
	"net/url"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"strings"
)

type CheckoutService interface {
	// StartCheckout turns the user's cart into a PENDING order and opens a
	// provider session for it.
	StartCheckout(ctx context.Context, userID string) (*model.CheckoutSession, error)
	GetSession(ctx context.Context, userID, orderID string) (*model.CheckoutSession, error)
	// CancelSession drops one of the user's sessions, e.g. when the shopper
	// leaves the payment page. The order stays PENDING.
	CancelSession(ctx context.Context, userID, sessionID string) error
}

type checkoutServiceImpl struct {
	orderService OrderService
	gateway      PaymentGateway
	sessionRepo  repository.SessionRepository
	baseURL      string
	logger       *slog.Logger
}

func NewCheckoutService(
	orderService OrderService,
	gateway PaymentGateway,
	sessionRepo repository.SessionRepository,
	baseURL string,
	logger *slog.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		orderService: orderService,
		gateway:      gateway,
		sessionRepo:  sessionRepo,
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger.With("component", "checkout_service"),
	}
}

func (s *checkoutServiceImpl) StartCheckout(ctx context.Context, userID string) (*model.CheckoutSession, error) {
	order, err := s.orderService.CreatePendingOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	req, idempotencyKey, err := s.gateway.CreateSessionRequest(OrderLines(order), order.ID, s.returnURL(order.ID), userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.CreateSession(ctx, req, idempotencyKey)
	if err != nil {
		// the order stays PENDING; a new checkout opens a new order
		return nil, err
	}

	session, err := s.sessionRepo.Put(ctx, userID, order.ID, resp)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionRepo.DeleteForUser(ctx, userID, session.SessionID); err != nil {
		s.logger.Warn("cleanup of older sessions failed", "user_id", userID, "keep_session_id", session.SessionID, "error", err)
	}

	return session, nil
}

func (s *checkoutServiceImpl) GetSession(ctx context.Context, userID, orderID string) (*model.CheckoutSession, error) {
	if orderID == "" {
		return nil, apperr.Validation("order id is required")
	}
	return s.sessionRepo.GetByOrder(ctx, orderID, userID)
}

func (s *checkoutServiceImpl) CancelSession(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return apperr.Validation("session id is required")
	}

	session, err := s.sessionRepo.GetBySession(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteBySession(ctx, session.SessionID); err != nil {
		return err
	}

	s.logger.Info("checkout session cancelled", "user_id", userID, "order_id", session.OrderID, "session_id", sessionID)
	return nil
}

func (s *checkoutServiceImpl) returnURL(orderID string) string {
	return s.baseURL + "/checkout/return?orderId=" + url.QueryEscape(orderID)
}
