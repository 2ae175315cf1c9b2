package repository

import (
	"context"
	"storefront-payments/internal/model"
	"storefront-payments/internal/testutil"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createOrder(t *testing.T, db *gorm.DB, id string, status model.OrderStatus) *model.Order {
	t.Helper()

	order := &model.Order{
		ID:       id,
		UserID:   "user-1",
		Status:   status,
		Subtotal: decimal.RequireFromString("50.00"),
		Tax:      decimal.RequireFromString("4.00"),
		Total:    decimal.RequireFromString("54.00"),
		Currency: "USD",
		Items: []model.OrderItem{
			{ProductID: "tshirt", Name: "T-Shirt", Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
			{ProductID: "mug", Name: "Mug", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	require.NoError(t, NewOrderRepository(db).Create(context.Background(), nil, order))
	return order
}

func TestOrderRepositoryCreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewOrderRepository(db)
	createOrder(t, db, "order-1", model.OrderStatusPending)

	got, err := repo.FindByID(context.Background(), nil, "order-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("54.00")))
	assert.Len(t, got.Items, 2)

	_, err = repo.FindByID(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepositoryTransitionStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    model.OrderStatus
		to      model.OrderStatus
		applied bool
	}{
		{"pending to successful", model.OrderStatusPending, model.OrderStatusSuccessful, true},
		{"pending to failed", model.OrderStatusPending, model.OrderStatusFailed, true},
		{"successful replay", model.OrderStatusSuccessful, model.OrderStatusSuccessful, true},
		{"successful to refund in progress", model.OrderStatusSuccessful, model.OrderStatusRefundInProgress, true},
		{"refund in progress to refunded", model.OrderStatusRefundInProgress, model.OrderStatusRefunded, true},
		{"refunded cannot go back to successful", model.OrderStatusRefunded, model.OrderStatusSuccessful, false},
		{"failed cannot become successful", model.OrderStatusFailed, model.OrderStatusSuccessful, false},
		{"cancelled cannot be refunded", model.OrderStatusCancelled, model.OrderStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewTestDB(t)
			repo := NewOrderRepository(db)
			createOrder(t, db, "order-1", tt.from)

			applied, err := repo.TransitionStatus(context.Background(), nil, "order-1", tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.applied, applied)

			got, err := repo.FindByID(context.Background(), nil, "order-1")
			require.NoError(t, err)
			if tt.applied {
				assert.Equal(t, tt.to, got.Status)
			} else {
				assert.Equal(t, tt.from, got.Status)
			}
		})
	}
}

func TestOrderRepositoryTransitionUnknownOrder(t *testing.T) {
	db := testutil.NewTestDB(t)

	applied, err := NewOrderRepository(db).TransitionStatus(context.Background(), nil, "missing", model.OrderStatusSuccessful)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestLedgerRepositoryUpsertKeepsOneRowPerOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewLedgerRepository(db)

	require.NoError(t, repo.Upsert(ctx, nil, &model.PaymentLedgerEntry{
		OrderID:      "order-1",
		PspReference: "PSP1",
		Success:      true,
		EventCode:    model.EventAuthorisation,
		Amount:       decimal.New(5400, -2),
		Currency:     "USD",
		EventDate:    time.Now(),
	}))
	require.NoError(t, repo.Upsert(ctx, nil, &model.PaymentLedgerEntry{
		OrderID:               "order-1",
		PspReference:          "PSP1",
		ModificationReference: "MOD1",
		Success:               true,
		EventCode:             model.EventCancelOrRefund,
		Amount:                decimal.New(5400, -2),
		Currency:              "USD",
		EventDate:             time.Now(),
	}))

	var count int64
	require.NoError(t, db.Model(&model.PaymentLedgerEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.FindByOrderID(ctx, nil, "order-1")
	require.NoError(t, err)
	assert.Equal(t, model.EventCancelOrRefund, got.EventCode)
	assert.Equal(t, "MOD1", got.ModificationReference)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("54.00")))

	byRef, err := repo.FindByPspReference(ctx, nil, "PSP1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", byRef.OrderID)
}

func TestNotificationEventRepositoryDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewNotificationEventRepository(db)

	event := func() *model.NotificationEvent {
		return &model.NotificationEvent{
			PspReference:      "PSP1",
			EventCode:         model.EventAuthorisation,
			Success:           true,
			MerchantReference: "order-1",
			OrderID:           "order-1",
			Outcome:           model.NotificationApplied,
		}
	}

	exists, err := repo.Exists(ctx, nil, "PSP1", model.EventAuthorisation, true)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Record(ctx, nil, event()))
	require.NoError(t, repo.Record(ctx, nil, event()), "a duplicate is folded into the first row")

	exists, err = repo.Exists(ctx, nil, "PSP1", model.EventAuthorisation, true)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, nil, "PSP1", model.EventAuthorisation, false)
	require.NoError(t, err)
	assert.False(t, exists, "a failed authorisation is a different event")

	events, err := repo.ListByOrderID(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].ReceivedAt.IsZero())
}

func TestNotificationEventRepositoryRejectedCanBeRetried(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewNotificationEventRepository(db)

	rejected := &model.NotificationEvent{
		PspReference: "PSP1",
		EventCode:    model.EventCancelOrRefund,
		Success:      true,
		OrderID:      "order-1",
		Outcome:      model.NotificationRejected,
	}
	require.NoError(t, repo.Record(ctx, nil, rejected))

	exists, err := repo.Exists(ctx, nil, "PSP1", model.EventCancelOrRefund, true)
	require.NoError(t, err)
	assert.False(t, exists)

	applied := &model.NotificationEvent{
		PspReference: "PSP1",
		EventCode:    model.EventCancelOrRefund,
		Success:      true,
		OrderID:      "order-1",
		Outcome:      model.NotificationApplied,
	}
	require.NoError(t, repo.Record(ctx, nil, applied))

	exists, err = repo.Exists(ctx, nil, "PSP1", model.EventCancelOrRefund, true)
	require.NoError(t, err)
	assert.True(t, exists)

	events, err := repo.ListByOrderID(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.NotificationApplied, events[0].Outcome)
}

func TestCartRepositoryAddItemAccumulates(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	testutil.SeedProducts(t, db)
	repo := NewCartRepository(db)

	require.NoError(t, repo.AddItem(ctx, &model.CartItem{UserID: "user-1", ProductID: "tshirt", Quantity: 1}))
	require.NoError(t, repo.AddItem(ctx, &model.CartItem{UserID: "user-1", ProductID: "tshirt", Quantity: 2}))
	require.NoError(t, repo.AddItem(ctx, &model.CartItem{UserID: "user-1", ProductID: "mug", Quantity: 1}))

	items, err := repo.GetItems(ctx, nil, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	quantities := map[string]int32{}
	for _, item := range items {
		quantities[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[string]int32{"tshirt": 3, "mug": 1}, quantities)

	err = db.Transaction(func(tx *gorm.DB) error {
		return repo.Clear(ctx, tx, "user-1")
	})
	require.NoError(t, err)

	items, err = repo.GetItems(ctx, nil, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProductRepositorySeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	products, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	found, err := repo.FindMany(ctx, nil, []string{"mug_logo", "missing"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Logo Mug", found[0].Name)
}

func TestNotificationEventRepositoryListRejectedModifications(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewNotificationEventRepository(db)
	base := time.Now()

	events := []*model.NotificationEvent{
		{PspReference: "MOD2", EventCode: model.EventCancelOrRefund, Success: true, OriginalReference: "PSP1", OrderID: "order-1", Outcome: model.NotificationRejected, ReceivedAt: base.Add(2 * time.Second)},
		{PspReference: "MOD1", EventCode: model.EventRefund, Success: true, OriginalReference: "PSP1", Outcome: model.NotificationRejected, ReceivedAt: base.Add(time.Second)},
		{PspReference: "MOD3", EventCode: model.EventCancellation, Success: false, OrderID: "order-1", Outcome: model.NotificationRejected, ReceivedAt: base},
		{PspReference: "MOD4", EventCode: model.EventCancelOrRefund, Success: true, OrderID: "order-1", Outcome: model.NotificationApplied, ReceivedAt: base},
		{PspReference: "PSP2", EventCode: model.EventAuthorisation, Success: true, OrderID: "order-1", Outcome: model.NotificationRejected, ReceivedAt: base},
		{PspReference: "MOD5", EventCode: model.EventCancelOrRefund, Success: true, OrderID: "order-2", Outcome: model.NotificationRejected, ReceivedAt: base},
	}
	for _, event := range events {
		require.NoError(t, repo.Record(ctx, nil, event))
	}

	got, err := repo.ListRejectedModifications(ctx, nil, "order-1", "PSP1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MOD1", got[0].PspReference, "matched by payment reference, oldest first")
	assert.Equal(t, "MOD2", got[1].PspReference)
}

func TestOrderRepositoryLockByID(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := NewOrderRepository(db)
	createOrder(t, db, "order-1", model.OrderStatusPending)

	err := db.Transaction(func(tx *gorm.DB) error {
		order, err := repo.LockByID(ctx, tx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPending, order.Status)

		applied, err := repo.TransitionStatus(ctx, tx, "order-1", model.OrderStatusSuccessful)
		require.NoError(t, err)
		assert.True(t, applied)

		order, err = repo.LockByID(ctx, tx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusSuccessful, order.Status, "reads see the transaction's own writes")
		return nil
	})
	require.NoError(t, err)

	_, err = repo.LockByID(ctx, nil, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
