package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventCode string

const (
	EventAuthorisation  EventCode = "AUTHORISATION"
	EventCancelOrRefund EventCode = "CANCEL_OR_REFUND"
	EventRefund         EventCode = "REFUND"
	EventCancellation   EventCode = "CANCELLATION"
)

const (
	ModificationActionRefund = "refund"
	ModificationActionCancel = "cancel"
)

// NotificationRequest is the webhook envelope. Items stay raw so one malformed
// item cannot fail decoding of the whole batch.
type NotificationRequest struct {
	Live              string                  `json:"live"`
	NotificationItems []NotificationContainer `json:"notificationItems"`
}

type NotificationContainer struct {
	NotificationRequestItem json.RawMessage `json:"NotificationRequestItem"`
}

type Amount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"` // minor units
}

type NotificationRequestItem struct {
	AdditionalData      map[string]any `json:"additionalData,omitempty"`
	Amount              Amount         `json:"amount"`
	EventCode           EventCode      `json:"eventCode"`
	EventDate           string         `json:"eventDate"`
	MerchantAccountCode string         `json:"merchantAccountCode"`
	MerchantReference   string         `json:"merchantReference"`
	OriginalReference   string         `json:"originalReference,omitempty"`
	PaymentMethod       string         `json:"paymentMethod,omitempty"`
	PspReference        string         `json:"pspReference"`
	Reason              string         `json:"reason,omitempty"`
	Success             string         `json:"success"`
	Operations          []string       `json:"operations,omitempty"`
}

func (i *NotificationRequestItem) Succeeded() bool {
	return i.Success == "true"
}

// Additional returns additionalData[key] as a string, or "" when absent.
func (i *NotificationRequestItem) Additional(key string) string {
	v, ok := i.AdditionalData[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ModificationAction is "refund" or "cancel" for CANCEL_OR_REFUND items,
// defaulting to refund when the provider omits it.
func (i *NotificationRequestItem) ModificationAction() string {
	if i.Additional("modification.action") == ModificationActionCancel {
		return ModificationActionCancel
	}
	return ModificationActionRefund
}

// OccurredAt parses eventDate, falling back to fallback when it is missing or malformed.
func (i *NotificationRequestItem) OccurredAt(fallback time.Time) time.Time {
	if i.EventDate == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, i.EventDate)
	if err != nil {
		return fallback
	}
	return t
}

// Checkout API request/response shapes.

type LineItem struct {
	ID                 string `json:"id"`
	Description        string `json:"description"`
	Quantity           int32  `json:"quantity"`
	AmountExcludingTax int64  `json:"amountExcludingTax"`
	TaxAmount          int64  `json:"taxAmount"`
	AmountIncludingTax int64  `json:"amountIncludingTax"`
}

type SessionRequest struct {
	MerchantAccount  string     `json:"merchantAccount"`
	Amount           Amount     `json:"amount"`
	Reference        string     `json:"reference"`
	ReturnURL        string     `json:"returnUrl"`
	CountryCode      string     `json:"countryCode"`
	ShopperReference string     `json:"shopperReference"`
	LineItems        []LineItem `json:"lineItems"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
}

type SessionResponse struct {
	ID          string    `json:"id"`
	SessionData string    `json:"sessionData"`
	Amount      Amount    `json:"amount"`
	CountryCode string    `json:"countryCode"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Reference   string    `json:"reference"`
	ReturnURL   string    `json:"returnUrl"`
}

type ReversalRequest struct {
	MerchantAccount string  `json:"merchantAccount"`
	Reference       string  `json:"reference"`
	Amount          *Amount `json:"-"` // not sent to Adyen; the braintree client refunds this amount
}

type ReversalResponse struct {
	PspReference        string `json:"pspReference"`
	PaymentPspReference string `json:"paymentPspReference"`
	Reference           string `json:"reference"`
	Status              string `json:"status"`
}
