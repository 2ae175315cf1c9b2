package repository

import (
	"context"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	AddItem(ctx context.Context, item *model.CartItem) error
	GetItems(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartItem, error)
	Clear(ctx context.Context, tx *gorm.DB, userID string) error
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

// AddItem adds to the quantity already in the cart for that product.
func (r *cartRepoImpl) AddItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", item.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(item).Error
}

func (r *cartRepoImpl) GetItems(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartItem, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}

	var items []*model.CartItem
	err := conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, product_id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *cartRepoImpl) Clear(ctx context.Context, tx *gorm.DB, userID string) error {
	return tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartItem{}).Error
}
