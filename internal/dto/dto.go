package dto

import (
	"storefront-payments/internal/model"
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	Sku      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

type CartLine struct {
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CartResponse struct {
	Items    []*CartLine     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

type CheckoutResponse struct {
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	SessionData string    `json:"session_data"` // opaque, passed to the drop-in as is
	Amount      int64     `json:"amount"`       // minor units
	Currency    string    `json:"currency"`
	CountryCode string    `json:"country_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	ReturnURL   string    `json:"return_url"`
}

type FinalizeOrderRequest struct {
	OrderID    string `json:"order_id"`
	ResultCode string `json:"result_code"`
}

type FinalizeOrderResponse struct {
	OrderID string            `json:"order_id"`
	Status  model.OrderStatus `json:"status"`
}

type RefundRequest struct {
	OrderID string `json:"order_id"`
}

func NewCheckoutResponse(session *model.CheckoutSession) *CheckoutResponse {
	return &CheckoutResponse{
		OrderID:     session.OrderID,
		SessionID:   session.SessionID,
		SessionData: session.SessionData,
		Amount:      session.Amount,
		Currency:    session.Currency,
		CountryCode: session.CountryCode,
		ExpiresAt:   session.ExpiresAt,
		ReturnURL:   session.ReturnURL,
	}
}
