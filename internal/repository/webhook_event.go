package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationEventRepository interface {
	// Exists reports whether the event was already settled. Rejected events
	// do not count, so a redelivery after the order catches up is applied.
	Exists(ctx context.Context, tx *gorm.DB, pspReference string, eventCode model.EventCode, success bool) (bool, error)
	// Record stores the event once per (pspReference, eventCode, success);
	// a repeat overwrites the outcome of the earlier attempt.
	Record(ctx context.Context, tx *gorm.DB, event *model.NotificationEvent) error
	// ListRejectedModifications returns refund and cancel events refused
	// earlier for the order or for the payment pspReference, oldest first.
	ListRejectedModifications(ctx context.Context, tx *gorm.DB, orderID, pspReference string) ([]*model.NotificationEvent, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*model.NotificationEvent, error)
}

type notificationEventRepoImpl struct {
	db *gorm.DB
}

func NewNotificationEventRepository(db *gorm.DB) NotificationEventRepository {
	return &notificationEventRepoImpl{db: db}
}

func (r *notificationEventRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *notificationEventRepoImpl) Exists(ctx context.Context, tx *gorm.DB, pspReference string, eventCode model.EventCode, success bool) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).Model(&model.NotificationEvent{}).
		Where("psp_reference = ? AND event_code = ? AND success = ?", pspReference, eventCode, success).
		Where("outcome <> ?", model.NotificationRejected).
		Count(&count).Error

	return count > 0, err
}

func (r *notificationEventRepoImpl) Record(ctx context.Context, tx *gorm.DB, event *model.NotificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "psp_reference"}, {Name: "event_code"}, {Name: "success"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_id",
				"outcome",
				"raw_payload",
				"received_at",
			}),
		}).
		Create(event).Error
}

func (r *notificationEventRepoImpl) ListRejectedModifications(ctx context.Context, tx *gorm.DB, orderID, pspReference string) ([]*model.NotificationEvent, error) {
	var events []*model.NotificationEvent
	err := r.conn(tx).WithContext(ctx).
		Where(`
			outcome = ?
			AND success = ?
			AND event_code IN ?
			AND (order_id = ? OR original_reference = ?)
		`,
			model.NotificationRejected,
			true,
			[]model.EventCode{model.EventCancelOrRefund, model.EventRefund, model.EventCancellation},
			orderID,
			pspReference,
		).
		Order("received_at ASC, id ASC").
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *notificationEventRepoImpl) ListByOrderID(ctx context.Context, orderID string) ([]*model.NotificationEvent, error) {
	var events []*model.NotificationEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("received_at ASC").
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}
