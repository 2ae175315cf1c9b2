package client

import (
	"encoding/json"
	"fmt"

	"github.com/adyen/adyen-go-api-library/v4/src/hmacvalidator"
	"github.com/adyen/adyen-go-api-library/v4/src/notification"
)

// SignatureValidator signs and checks a notification item in the provider's
// wire format. The signature travels in additionalData.hmacSignature.
type SignatureValidator interface {
	Sign(item json.RawMessage, hexKey string) (string, error)
	Valid(item json.RawMessage, hexKey string) bool
}

type adyenHMACValidator struct{}

func NewHMACValidator() SignatureValidator {
	return adyenHMACValidator{}
}

func (adyenHMACValidator) Sign(item json.RawMessage, hexKey string) (string, error) {
	n, err := toNotificationItem(item)
	if err != nil {
		return "", err
	}

	sig, err := hmacvalidator.CalculateHmac(n, hexKey)
	if err != nil {
		return "", fmt.Errorf("calculate hmac: %w", err)
	}
	return sig, nil
}

func (adyenHMACValidator) Valid(item json.RawMessage, hexKey string) bool {
	n, err := toNotificationItem(item)
	if err != nil || n.AdditionalData == nil {
		return false
	}
	if sig, _ := (*n.AdditionalData)["hmacSignature"].(string); sig == "" {
		return false
	}

	return hmacvalidator.ValidateHmac(n, hexKey)
}

// signedFields is the part of an item the signature covers, plus the
// signature itself. Decoding only these keeps unrelated provider fields
// from failing validation.
type signedFields struct {
	AdditionalData      map[string]any `json:"additionalData,omitempty"`
	Amount              signedAmount   `json:"amount"`
	EventCode           string         `json:"eventCode"`
	MerchantAccountCode string         `json:"merchantAccountCode"`
	MerchantReference   string         `json:"merchantReference"`
	OriginalReference   string         `json:"originalReference,omitempty"`
	PspReference        string         `json:"pspReference"`
	Success             string         `json:"success"`
}

type signedAmount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

func toNotificationItem(raw json.RawMessage) (notification.NotificationRequestItem, error) {
	var n notification.NotificationRequestItem

	var fields signedFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return n, fmt.Errorf("decode notification item: %w", err)
	}
	trimmed, err := json.Marshal(fields)
	if err != nil {
		return n, fmt.Errorf("encode notification item: %w", err)
	}
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return n, fmt.Errorf("decode notification item: %w", err)
	}
	return n, nil
}
