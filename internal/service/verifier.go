package service

import (
	"encoding/json"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
)

// WebhookVerifier authenticates single notification items. It is a pure
// predicate: anything it cannot check is reported as invalid.
type WebhookVerifier interface {
	Verify(item *model.NotificationRequestItem, hmacKey string) bool
	// Decode parses a raw item and verifies it. The item is nil when the
	// payload does not decode.
	Decode(raw json.RawMessage, hmacKey string) (*model.NotificationRequestItem, bool)
}

type webhookVerifierImpl struct {
	signer client.SignatureValidator
}

func NewWebhookVerifier(signer client.SignatureValidator) WebhookVerifier {
	return &webhookVerifierImpl{signer: signer}
}

func (v *webhookVerifierImpl) Verify(item *model.NotificationRequestItem, hmacKey string) bool {
	if item == nil {
		return false
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return false
	}
	return v.valid(raw, hmacKey)
}

func (v *webhookVerifierImpl) Decode(raw json.RawMessage, hmacKey string) (*model.NotificationRequestItem, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var item model.NotificationRequestItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, false
	}

	return &item, v.valid(raw, hmacKey)
}

func (v *webhookVerifierImpl) valid(raw json.RawMessage, hmacKey string) bool {
	if hmacKey == "" {
		return false
	}
	return v.signer.Valid(raw, hmacKey)
}
