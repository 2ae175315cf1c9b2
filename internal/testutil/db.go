// Package testutil provides shared fixtures for repository, service and
// handler tests.
package testutil

import (
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated, private in-memory SQLite database that lives
// for the duration of the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// a shared-cache memory database disappears with its last connection
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := client.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SeedProducts inserts a small catalog and returns it keyed by sku.
func SeedProducts(t *testing.T, db *gorm.DB) map[string]model.Product {
	t.Helper()

	products := []model.Product{
		{ID: "tshirt", Name: "T-Shirt", Price: decimal.RequireFromString("20.00"), Currency: "USD"},
		{ID: "mug", Name: "Mug", Price: decimal.RequireFromString("10.00"), Currency: "USD"},
		{ID: "sticker", Name: "Sticker", Price: decimal.RequireFromString("0.99"), Currency: "USD"},
	}
	if err := db.Create(&products).Error; err != nil {
		t.Fatalf("Failed to seed products: %v", err)
	}

	bySku := make(map[string]model.Product, len(products))
	for _, p := range products {
		bySku[p.ID] = p
	}
	return bySku
}

// SeedCart puts quantity units of each sku in userID's cart.
func SeedCart(t *testing.T, db *gorm.DB, userID string, quantities map[string]int32) {
	t.Helper()

	for sku, qty := range quantities {
		item := &model.CartItem{UserID: userID, ProductID: sku, Quantity: qty}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("Failed to seed cart item %s: %v", sku, err)
		}
	}
}
