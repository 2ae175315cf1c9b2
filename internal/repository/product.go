package repository

import (
	"context"
	"storefront-payments/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindMany(ctx context.Context, tx *gorm.DB, productIDs []string) ([]*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "tshirt_black", Name: "Black T-Shirt", Description: "Organic cotton tee", Price: decimal.RequireFromString("25.00"), Currency: "USD"},
		{ID: "mug_logo", Name: "Logo Mug", Description: "350ml ceramic mug", Price: decimal.RequireFromString("12.50"), Currency: "USD"},
		{ID: "sticker_pack", Name: "Sticker Pack", Description: "Ten vinyl stickers", Price: decimal.RequireFromString("4.99"), Currency: "USD"},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindMany(ctx context.Context, tx *gorm.DB, productIDs []string) ([]*model.Product, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}

	var products []*model.Product
	err := conn.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Order("id").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
