package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client-reported checkout results. Anything else is treated as in flight.
const (
	ResultAuthorised = "Authorised"
	ResultPending    = "Pending"
	ResultReceived   = "Received"
	ResultRefused    = "Refused"
	ResultCancelled  = "Cancelled"
	ResultError      = "Error"
)

var unfinishedResults = map[string]bool{
	ResultRefused:   true,
	ResultCancelled: true,
	ResultError:     true,
}

type OrderService interface {
	// CreatePendingOrder snapshots userID's cart into a new PENDING order. The
	// cart is left alone until the order is finalized.
	CreatePendingOrder(ctx context.Context, userID string) (*model.Order, error)
	// FinalizeOrder makes sure orderID exists once the client reports a
	// completed payment, then clears the cart and drops the order's sessions.
	// It is safe to call again for the same order.
	FinalizeOrder(ctx context.Context, userID, orderID, resultCode string) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	sessionRepo repository.SessionRepository
	currency    string
	logger      *slog.Logger
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	sessionRepo repository.SessionRepository,
	currency string,
	logger *slog.Logger,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		sessionRepo: sessionRepo,
		currency:    currency,
		logger:      logger.With("component", "order_service"),
	}
}

func (s *orderServiceImpl) CreatePendingOrder(ctx context.Context, userID string) (*model.Order, error) {
	lines, err := loadCartLines(ctx, nil, s.cartRepo, s.productRepo, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	order := s.newOrder(uuid.NewString(), userID, lines)
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, apperr.Persistence("create order", err)
	}

	s.logger.Info("pending order created",
		"order_id", order.ID, "user_id", userID, "total", order.Total.StringFixed(2), "items", len(order.Items))
	return order, nil
}

func (s *orderServiceImpl) FinalizeOrder(ctx context.Context, userID, orderID, resultCode string) (*model.Order, error) {
	if orderID == "" {
		return nil, apperr.Validation("order id is required")
	}
	if resultCode == "" {
		return nil, apperr.Validation("result code is required")
	}
	if unfinishedResults[resultCode] {
		return nil, apperr.Validation(fmt.Sprintf("payment not completed: %s", resultCode))
	}

	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.orderRepo.FindByID(ctx, tx, orderID)
		switch {
		case err == nil:
			if existing.UserID != userID {
				return apperr.NotFound("order not found")
			}
			order = existing

		case errors.Is(err, gorm.ErrRecordNotFound):
			lines, err := loadCartLines(ctx, tx, s.cartRepo, s.productRepo, userID)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return apperr.Validation("cart is empty")
			}

			order = s.newOrder(orderID, userID, lines)
			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return apperr.Persistence("create order", err)
			}

		default:
			return apperr.Persistence("find order", err)
		}

		if err := s.cartRepo.Clear(ctx, tx, userID); err != nil {
			return apperr.Persistence("clear cart", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("finalize order failed", "order_id", orderID, "user_id", userID, "error", err)
		return nil, err
	}

	if _, err := s.sessionRepo.DeleteForOrder(ctx, orderID, ""); err != nil {
		s.logger.Warn("purge sessions after finalize failed", "order_id", orderID, "error", err)
	}

	s.logger.Info("order finalized",
		"order_id", orderID, "user_id", userID, "result_code", resultCode, "status", order.Status)
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, storeError(err, "order not found", "find order")
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (s *orderServiceImpl) newOrder(orderID, userID string, lines []model.CartLine) *model.Order {
	totals := ComputeTotals(lines)

	items := make([]model.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = model.OrderItem{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}

	return &model.Order{
		ID:       orderID,
		UserID:   userID,
		Status:   model.OrderStatusPending,
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
		Currency: s.currency,
		Items:    items,
	}
}
