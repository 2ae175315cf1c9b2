package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusSuccessful       OrderStatus = "SUCCESSFUL"
	OrderStatusFailed           OrderStatus = "FAILED"
	OrderStatusRefundInProgress OrderStatus = "REFUND IN PROGRESS"
	OrderStatusRefunded         OrderStatus = "REFUNDED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// allowedFrom lists, for each target status, the statuses an order may be in
// when that target is written. Every target also accepts itself so replays
// are no-ops rather than rejections.
var allowedFrom = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusPending},
	OrderStatusSuccessful:       {OrderStatusPending, OrderStatusSuccessful},
	OrderStatusFailed:           {OrderStatusPending, OrderStatusFailed},
	OrderStatusRefundInProgress: {OrderStatusSuccessful, OrderStatusRefundInProgress},
	OrderStatusRefunded:         {OrderStatusSuccessful, OrderStatusRefundInProgress, OrderStatusRefunded},
	OrderStatusCancelled: {
		OrderStatusPending, OrderStatusSuccessful, OrderStatusRefundInProgress,
		OrderStatusFailed, OrderStatusCancelled,
	},
}

// AllowedFrom returns the statuses from which target may be written.
func AllowedFrom(target OrderStatus) []OrderStatus {
	return allowedFrom[target]
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// CartLine is a cart entry priced against the catalog, ready for totals and
// provider line items.
type CartLine struct {
	ProductID string
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// OrderStatusEvent is published after a status write lands.
type OrderStatusEvent struct {
	OrderID      string      `json:"order_id"`
	UserID       string      `json:"user_id"`
	From         OrderStatus `json:"from"`
	To           OrderStatus `json:"to"`
	EventCode    EventCode   `json:"event_code,omitempty"`
	PspReference string      `json:"psp_reference,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}
