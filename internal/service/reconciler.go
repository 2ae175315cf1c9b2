package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderReconciler owns order status after checkout: provider notifications
// and user-initiated refunds.
type OrderReconciler interface {
	// HandleNotification returns a Validation error for an undecodable or empty
	// envelope and an Authenticity error when the first item fails
	// verification. Once that passes it returns nil; per-item failures are
	// logged, never returned.
	HandleNotification(ctx context.Context, body []byte) error
	InitiateRefund(ctx context.Context, userID, orderID string) (*model.PaymentLedgerEntry, error)
	// History lists the notifications recorded for one of userID's orders.
	History(ctx context.Context, userID, orderID string) ([]*model.NotificationEvent, error)
}

type orderReconcilerImpl struct {
	db               *gorm.DB
	verifier         WebhookVerifier
	hmacKey          string
	gateway          PaymentGateway
	orderRepo        repository.OrderRepository
	ledgerRepo       repository.LedgerRepository
	notificationRepo repository.NotificationEventRepository
	sessionRepo      repository.SessionRepository
	publisher        client.EventPublisher
	logger           *slog.Logger
	now              func() time.Time
}

func NewOrderReconciler(
	db *gorm.DB,
	verifier WebhookVerifier,
	hmacKey string,
	gateway PaymentGateway,
	orderRepo repository.OrderRepository,
	ledgerRepo repository.LedgerRepository,
	notificationRepo repository.NotificationEventRepository,
	sessionRepo repository.SessionRepository,
	publisher client.EventPublisher,
	logger *slog.Logger,
) OrderReconciler {
	return &orderReconcilerImpl{
		db:               db,
		verifier:         verifier,
		hmacKey:          hmacKey,
		gateway:          gateway,
		orderRepo:        orderRepo,
		ledgerRepo:       ledgerRepo,
		notificationRepo: notificationRepo,
		sessionRepo:      sessionRepo,
		publisher:        publisher,
		logger:           logger.With("component", "order_reconciler"),
		now:              time.Now,
	}
}

func (s *orderReconcilerImpl) HandleNotification(ctx context.Context, body []byte) error {
	var envelope model.NotificationRequest
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperr.Validation("malformed notification payload")
	}
	if len(envelope.NotificationItems) == 0 {
		return apperr.Validation("notification has no items")
	}

	for i, container := range envelope.NotificationItems {
		raw := container.NotificationRequestItem
		item, ok := s.verifier.Decode(raw, s.hmacKey)
		if !ok {
			attrs := []any{"index", i}
			if item != nil {
				attrs = append(attrs,
					"psp_reference", item.PspReference,
					"merchant_reference", item.MerchantReference,
					"event_code", item.EventCode)
			}

			if i == 0 {
				s.logger.Warn("notification failed verification", attrs...)
				return apperr.Authenticity("invalid notification signature")
			}
			s.logger.Warn("skipping unverified notification item", attrs...)
			continue
		}

		if err := s.processItem(ctx, raw, item); err != nil {
			s.logger.Error("notification item not applied",
				"psp_reference", item.PspReference,
				"merchant_reference", item.MerchantReference,
				"event_code", item.EventCode,
				"success", item.Success,
				"error", err)
		}
	}

	return nil
}

// transition is the outcome of one applied item, acted on after commit.
type transition struct {
	orderID       string
	events        []*model.OrderStatusEvent // empty for same-state replays
	purgeSessions bool
}

func (s *orderReconcilerImpl) processItem(ctx context.Context, raw json.RawMessage, item *model.NotificationRequestItem) error {
	var result *transition

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen, err := s.notificationRepo.Exists(ctx, tx, item.PspReference, item.EventCode, item.Succeeded())
		if err != nil {
			return fmt.Errorf("check notification log: %w", err)
		}
		if seen {
			s.logger.Info("duplicate notification ignored",
				"psp_reference", item.PspReference, "event_code", item.EventCode, "success", item.Success)
			return nil
		}

		switch item.EventCode {
		case model.EventAuthorisation:
			result, err = s.applyAuthorisation(ctx, tx, raw, item)
		case model.EventCancelOrRefund, model.EventRefund, model.EventCancellation:
			result, err = s.applyModification(ctx, tx, raw, item)
		default:
			s.logger.Debug("unhandled notification event",
				"psp_reference", item.PspReference, "event_code", item.EventCode)
		}
		return err
	})
	if err != nil {
		return err
	}

	if result != nil {
		s.afterTransition(ctx, result)
	}
	return nil
}

func (s *orderReconcilerImpl) applyAuthorisation(ctx context.Context, tx *gorm.DB, raw json.RawMessage, item *model.NotificationRequestItem) (*transition, error) {
	orderID := item.MerchantReference

	order, err := s.findOrder(ctx, tx, orderID, item)
	if err != nil || order == nil {
		return nil, err
	}

	target := model.OrderStatusFailed
	if item.Succeeded() {
		target = model.OrderStatusSuccessful
	}

	applied, err := s.orderRepo.TransitionStatus(ctx, tx, orderID, target)
	if err != nil {
		return nil, fmt.Errorf("transition order %s to %s: %w", orderID, target, err)
	}
	if !applied {
		return nil, s.reject(ctx, tx, raw, item, order, target)
	}

	entry := &model.PaymentLedgerEntry{
		OrderID:             orderID,
		PspReference:        item.PspReference,
		MerchantAccountCode: item.MerchantAccountCode,
		PaymentMethod:       item.PaymentMethod,
		Success:             item.Succeeded(),
		EventCode:           item.EventCode,
		Amount:              FromMinorUnits(item.Amount.Value),
		Currency:            item.Amount.Currency,
		EventDate:           item.OccurredAt(s.now()),
		RawPayload:          datatypes.JSON(raw),
	}
	if err := s.ledgerRepo.Upsert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("upsert ledger for order %s: %w", orderID, err)
	}

	if err := s.record(ctx, tx, raw, item, orderID, model.NotificationApplied); err != nil {
		return nil, err
	}

	s.logger.Info("authorisation applied",
		"order_id", orderID, "psp_reference", item.PspReference, "from", order.Status, "to", target)

	// a finished payment leaves nothing for its sessions to do
	result := &transition{
		orderID:       orderID,
		events:        s.statusEvents(order, target, item),
		purgeSessions: true,
	}

	if item.Succeeded() {
		replayed, err := s.replayRejected(ctx, tx, orderID, item.PspReference)
		if err != nil {
			return nil, err
		}
		result.events = append(result.events, replayed...)
	}

	return result, nil
}

// replayRejected re-applies refunds and cancels that arrived before the
// payment they modify. The provider considers them delivered, so nothing
// else would ever apply them.
func (s *orderReconcilerImpl) replayRejected(ctx context.Context, tx *gorm.DB, orderID, pspReference string) ([]*model.OrderStatusEvent, error) {
	parked, err := s.notificationRepo.ListRejectedModifications(ctx, tx, orderID, pspReference)
	if err != nil {
		return nil, fmt.Errorf("list rejected notifications for order %s: %w", orderID, err)
	}

	var events []*model.OrderStatusEvent
	for _, stored := range parked {
		raw := json.RawMessage(stored.RawPayload)

		var item model.NotificationRequestItem
		if err := json.Unmarshal(raw, &item); err != nil {
			s.logger.Warn("stored notification does not decode",
				"order_id", orderID, "psp_reference", stored.PspReference, "error", err)
			continue
		}

		s.logger.Info("replaying notification received before its payment",
			"order_id", orderID, "psp_reference", item.PspReference, "event_code", item.EventCode)

		result, err := s.applyModification(ctx, tx, raw, &item)
		if err != nil {
			return nil, err
		}
		if result != nil {
			events = append(events, result.events...)
		}
	}

	return events, nil
}

func (s *orderReconcilerImpl) applyModification(ctx context.Context, tx *gorm.DB, raw json.RawMessage, item *model.NotificationRequestItem) (*transition, error) {
	original, err := s.resolvePayment(ctx, tx, item)
	if err != nil {
		return nil, err
	}

	orderID := item.MerchantReference
	if original != nil {
		orderID = original.OrderID
	}

	order, err := s.findOrder(ctx, tx, orderID, item)
	if err != nil || order == nil {
		return nil, err
	}

	if !item.Succeeded() {
		s.logger.Warn("refund or cancel failed at provider",
			"order_id", orderID,
			"psp_reference", item.PspReference,
			"original_reference", item.OriginalReference,
			"status", order.Status,
			"reason", item.Reason)
		return nil, s.record(ctx, tx, raw, item, orderID, model.NotificationIgnored)
	}

	target := modificationTarget(item)

	applied, err := s.orderRepo.TransitionStatus(ctx, tx, orderID, target)
	if err != nil {
		return nil, fmt.Errorf("transition order %s to %s: %w", orderID, target, err)
	}
	if !applied {
		return nil, s.reject(ctx, tx, raw, item, order, target)
	}

	entry := &model.PaymentLedgerEntry{
		OrderID:               orderID,
		PspReference:          item.OriginalReference,
		ModificationReference: item.PspReference,
		MerchantAccountCode:   item.MerchantAccountCode,
		PaymentMethod:         item.PaymentMethod,
		Success:               true,
		EventCode:             item.EventCode,
		Amount:                FromMinorUnits(item.Amount.Value),
		Currency:              item.Amount.Currency,
		EventDate:             item.OccurredAt(s.now()),
		RawPayload:            datatypes.JSON(raw),
	}
	if original != nil {
		// keep the payment reference so later refunds still correlate
		entry.PspReference = original.PspReference
		if entry.PaymentMethod == "" {
			entry.PaymentMethod = original.PaymentMethod
		}
	}
	if entry.PspReference == "" {
		entry.PspReference = item.PspReference
	}

	if err := s.ledgerRepo.Upsert(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("upsert ledger for order %s: %w", orderID, err)
	}

	if err := s.record(ctx, tx, raw, item, orderID, model.NotificationApplied); err != nil {
		return nil, err
	}

	s.logger.Info("modification applied",
		"order_id", orderID,
		"psp_reference", entry.PspReference,
		"modification_reference", item.PspReference,
		"from", order.Status,
		"to", target)

	return &transition{orderID: orderID, events: s.statusEvents(order, target, item)}, nil
}

// resolvePayment finds the ledger entry a modification refers to: by the
// original payment reference, then by the item's own reference. It returns
// nil when neither is known.
func (s *orderReconcilerImpl) resolvePayment(ctx context.Context, tx *gorm.DB, item *model.NotificationRequestItem) (*model.PaymentLedgerEntry, error) {
	for _, ref := range []string{item.OriginalReference, item.PspReference} {
		if ref == "" {
			continue
		}

		entry, err := s.ledgerRepo.FindByPspReference(ctx, tx, ref)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find ledger by psp reference %s: %w", ref, err)
		}
	}
	return nil, nil
}

// findOrder locks the order for the rest of tx. It returns nil, nil for
// orders this service does not know.
func (s *orderReconcilerImpl) findOrder(ctx context.Context, tx *gorm.DB, orderID string, item *model.NotificationRequestItem) (*model.Order, error) {
	if orderID == "" {
		s.logger.Warn("notification without merchant reference",
			"psp_reference", item.PspReference, "event_code", item.EventCode)
		return nil, nil
	}

	order, err := s.orderRepo.LockByID(ctx, tx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("notification for unknown order dropped",
			"order_id", orderID, "psp_reference", item.PspReference, "event_code", item.EventCode)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *orderReconcilerImpl) reject(ctx context.Context, tx *gorm.DB, raw json.RawMessage, item *model.NotificationRequestItem, order *model.Order, target model.OrderStatus) error {
	s.logger.Warn("notification rejected by order status",
		"order_id", order.ID,
		"psp_reference", item.PspReference,
		"event_code", item.EventCode,
		"status", order.Status,
		"target", target)
	return s.record(ctx, tx, raw, item, order.ID, model.NotificationRejected)
}

func (s *orderReconcilerImpl) record(ctx context.Context, tx *gorm.DB, raw json.RawMessage, item *model.NotificationRequestItem, orderID string, outcome model.NotificationOutcome) error {
	err := s.notificationRepo.Record(ctx, tx, &model.NotificationEvent{
		PspReference:      item.PspReference,
		EventCode:         item.EventCode,
		Success:           item.Succeeded(),
		OriginalReference: item.OriginalReference,
		MerchantReference: item.MerchantReference,
		OrderID:           orderID,
		Outcome:           outcome,
		RawPayload:        datatypes.JSON(raw),
		ReceivedAt:        s.now(),
	})
	if err != nil {
		return fmt.Errorf("record notification %s: %w", item.PspReference, err)
	}
	return nil
}

// statusEvents describes the move from the locked order's status to target.
// A concurrent redelivery that lost the race reads target and publishes nothing.
func (s *orderReconcilerImpl) statusEvents(order *model.Order, target model.OrderStatus, item *model.NotificationRequestItem) []*model.OrderStatusEvent {
	if order.Status == target {
		return nil
	}

	return []*model.OrderStatusEvent{{
		OrderID:      order.ID,
		UserID:       order.UserID,
		From:         order.Status,
		To:           target,
		EventCode:    item.EventCode,
		PspReference: item.PspReference,
		OccurredAt:   s.now(),
	}}
}

// afterTransition runs the best-effort follow-ups of a committed transition.
func (s *orderReconcilerImpl) afterTransition(ctx context.Context, t *transition) {
	if t.purgeSessions {
		if _, err := s.sessionRepo.DeleteForOrder(ctx, t.orderID, ""); err != nil {
			s.logger.Warn("purge sessions after payment failed", "order_id", t.orderID, "error", err)
		}
	}

	for _, event := range t.events {
		s.publish(ctx, event)
	}
}

func (s *orderReconcilerImpl) publish(ctx context.Context, event *model.OrderStatusEvent) {
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Warn("publish order status event failed",
			"order_id", event.OrderID, "to", event.To, "error", err)
	}
}

func modificationTarget(item *model.NotificationRequestItem) model.OrderStatus {
	switch item.EventCode {
	case model.EventRefund:
		return model.OrderStatusRefunded
	case model.EventCancellation:
		return model.OrderStatusCancelled
	}

	if item.ModificationAction() == model.ModificationActionCancel {
		return model.OrderStatusCancelled
	}
	return model.OrderStatusRefunded
}

func (s *orderReconcilerImpl) InitiateRefund(ctx context.Context, userID, orderID string) (*model.PaymentLedgerEntry, error) {
	if orderID == "" {
		return nil, apperr.Validation("order id is required")
	}

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && order.UserID != userID) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, apperr.Persistence("find order", err)
	}

	entry, err := s.ledgerRepo.FindByOrderID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperr.Persistence("find payment", err)
	}
	if entry.PspReference == "" {
		return nil, apperr.Validation("order has no payment information")
	}

	// same-state writes are allowed for replays, but a second refund is not
	if order.Status == model.OrderStatusRefundInProgress ||
		!model.CanTransition(order.Status, model.OrderStatusRefundInProgress) {
		return nil, apperr.Validation(fmt.Sprintf("order in status %s cannot be refunded", order.Status))
	}

	if _, err := s.gateway.Refund(ctx, entry); err != nil {
		return nil, err
	}

	var event *model.OrderStatusEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		applied, err := s.orderRepo.TransitionStatus(ctx, tx, orderID, model.OrderStatusRefundInProgress)
		if err != nil || !applied || current.Status == model.OrderStatusRefundInProgress {
			return err
		}

		event = &model.OrderStatusEvent{
			OrderID:      orderID,
			UserID:       order.UserID,
			From:         current.Status,
			To:           model.OrderStatusRefundInProgress,
			PspReference: entry.PspReference,
			OccurredAt:   s.now(),
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("mark refund in progress", err)
	}
	if event == nil {
		// a concurrent request or the refund notification already moved the order on
		s.logger.Info("refund requested after order moved on", "order_id", orderID)
		return entry, nil
	}

	s.logger.Info("refund in progress", "order_id", orderID, "psp_reference", entry.PspReference)
	s.publish(ctx, event)

	return entry, nil
}

func (s *orderReconcilerImpl) History(ctx context.Context, userID, orderID string) ([]*model.NotificationEvent, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && order.UserID != userID) {
		return nil, apperr.NotFound("order not found")
	}
	if err != nil {
		return nil, apperr.Persistence("find order", err)
	}

	events, err := s.notificationRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperr.Persistence("list notifications", err)
	}
	return events, nil
}
