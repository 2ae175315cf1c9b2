package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository interface {
	// Upsert writes the entry keyed by order id, replacing whatever event was
	// recorded for that order before.
	Upsert(ctx context.Context, tx *gorm.DB, entry *model.PaymentLedgerEntry) error
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.PaymentLedgerEntry, error)
	FindByPspReference(ctx context.Context, tx *gorm.DB, pspReference string) (*model.PaymentLedgerEntry, error)
}

type ledgerRepoImpl struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepoImpl{
		db: db,
	}
}

func (r *ledgerRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ledgerRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, entry *model.PaymentLedgerEntry) error {
	entry.UpdatedAt = time.Now()

	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"psp_reference",
			"modification_reference",
			"merchant_account_code",
			"payment_method",
			"success",
			"event_code",
			"amount",
			"currency",
			"event_date",
			"raw_payload",
			"updated_at",
		}),
	}).Create(entry).Error
}

func (r *ledgerRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.PaymentLedgerEntry, error) {
	var entry model.PaymentLedgerEntry
	err := r.conn(tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&entry).Error

	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *ledgerRepoImpl) FindByPspReference(ctx context.Context, tx *gorm.DB, pspReference string) (*model.PaymentLedgerEntry, error) {
	var entry model.PaymentLedgerEntry
	err := r.conn(tx).WithContext(ctx).
		Where("psp_reference = ?", pspReference).
		Order("updated_at DESC").
		First(&entry).Error

	if err != nil {
		return nil, err
	}

	return &entry, nil
}
