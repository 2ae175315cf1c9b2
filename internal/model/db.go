package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID          string          `gorm:"primaryKey;size:64;not null" json:"sku"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"size:512" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency    string          `gorm:"size:8;not null" json:"currency"`
}

type CartItem struct {
	UserID    string `gorm:"primaryKey;size:64"`
	ProductID string `gorm:"primaryKey;size:64;not null"`
	Quantity  int32  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID        string          `gorm:"primaryKey;size:64;not null" json:"id"` // also the provider merchant reference
	UserID    string          `gorm:"size:64;index;not null" json:"user_id"`
	Status    OrderStatus     `gorm:"size:32;index;not null" json:"status"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency  string          `gorm:"size:8;not null" json:"currency"`
	Items     []OrderItem     `gorm:"foreignKey:OrderID;references:ID" json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	OrderID string `gorm:"size:64;index;not null" json:"-"`
	// FK → product.id; price below is the snapshot taken when the order was created
	ProductID string          `gorm:"size:64;not null" json:"sku"`
	Name      string          `gorm:"size:128" json:"name"`
	Quantity  int32           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`

	CreatedAt time.Time `json:"-"`
}

// CheckoutSession rows are insert-only; several may exist for one order until
// cleanup runs.
type CheckoutSession struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	SessionID   string    `gorm:"size:128;index;not null" json:"session_id"`
	OrderID     string    `gorm:"size:64;index;not null" json:"order_id"`
	UserID      string    `gorm:"size:64;index;not null" json:"-"`
	SessionData string    `gorm:"type:text;not null" json:"session_data"`
	Amount      int64     `gorm:"not null" json:"amount"` // minor units
	Currency    string    `gorm:"size:8;not null" json:"currency"`
	CountryCode string    `gorm:"size:8" json:"country_code"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
	Reference   string    `gorm:"size:128" json:"reference"`
	ReturnURL   string    `gorm:"size:512" json:"return_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

// PaymentLedgerEntry is the latest known payment outcome for an order. It is
// upserted by order id; the per-event history lives in NotificationEvent.
type PaymentLedgerEntry struct {
	OrderID               string          `gorm:"primaryKey;size:64;not null" json:"order_id"`
	PspReference          string          `gorm:"size:64;index" json:"psp_reference"`
	ModificationReference string          `gorm:"size:64" json:"modification_reference,omitempty"`
	MerchantAccountCode   string          `gorm:"size:128" json:"merchant_account_code"`
	PaymentMethod         string          `gorm:"size:64" json:"payment_method"`
	Success               bool            `gorm:"not null" json:"success"`
	EventCode             EventCode       `gorm:"size:32;not null" json:"event_code"`
	Amount                decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency              string          `gorm:"size:8" json:"currency"`
	EventDate             time.Time       `json:"event_date"`
	RawPayload            datatypes.JSON  `json:"-"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (PaymentLedgerEntry) TableName() string { return "payment_ledger" }

type NotificationOutcome string

const (
	NotificationApplied  NotificationOutcome = "applied"
	NotificationRejected NotificationOutcome = "rejected"
	NotificationIgnored  NotificationOutcome = "ignored"
)

// NotificationEvent is an append-only record of every provider notification
// item that reached the reconciler for a known order.
type NotificationEvent struct {
	ID                string              `gorm:"primaryKey;size:36;not null" json:"id"`
	PspReference      string              `gorm:"size:64;not null;uniqueIndex:idx_notification_identity" json:"psp_reference"`
	EventCode         EventCode           `gorm:"size:32;not null;uniqueIndex:idx_notification_identity" json:"event_code"`
	Success           bool                `gorm:"not null;uniqueIndex:idx_notification_identity" json:"success"`
	OriginalReference string              `gorm:"size:64" json:"original_reference,omitempty"`
	MerchantReference string              `gorm:"size:64;index" json:"merchant_reference"`
	OrderID           string              `gorm:"size:64;index" json:"order_id"`
	Outcome           NotificationOutcome `gorm:"size:16;not null" json:"outcome"`
	RawPayload        datatypes.JSON      `json:"-"`
	ReceivedAt        time.Time           `json:"received_at"`
	CreatedAt         time.Time           `json:"-"`
}
