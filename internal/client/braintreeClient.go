package client

import (
	"context"
	"fmt"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"time"

	"github.com/braintree-go/braintree-go"
	"github.com/google/uuid"
)

// Braintree client tokens are valid for 24 hours.
const braintreeTokenTTL = 24 * time.Hour

type braintreeClientImpl struct {
	gateway *braintree.Braintree
	now     func() time.Time
}

// NewBraintreeClient initializes the Braintree SDK gateway behind the same
// CheckoutClient contract as Adyen. A checkout session is a client token for
// the Drop-in UI; the provider has no idempotency keys, so they are ignored.
func NewBraintreeClient(cfg *config.Braintree) CheckoutClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
		now:     time.Now,
	}
}

func (c *braintreeClientImpl) CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error) {
	token, err := c.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("braintree generate client token: %w", err)
	}

	return &model.SessionResponse{
		ID:          "bt_" + uuid.NewString(),
		SessionData: token,
		Amount:      req.Amount,
		CountryCode: req.CountryCode,
		ExpiresAt:   c.now().Add(braintreeTokenTTL),
		Reference:   req.Reference,
		ReturnURL:   req.ReturnURL,
	}, nil
}

// RefundOrCancel voids a transaction that has not settled yet and refunds one
// that has, mirroring a provider-side reversal.
func (c *braintreeClientImpl) RefundOrCancel(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error) {
	tx, err := c.gateway.Transaction().Find(ctx, pspReference)
	if err != nil {
		return nil, fmt.Errorf("braintree find transaction: %w", err)
	}

	switch tx.Status {
	case braintree.TransactionStatusAuthorized, braintree.TransactionStatusSubmittedForSettlement:
		voided, err := c.gateway.Transaction().Void(ctx, pspReference)
		if err != nil {
			return nil, fmt.Errorf("braintree void transaction: %w", err)
		}
		return &model.ReversalResponse{
			PspReference:        voided.Id,
			PaymentPspReference: pspReference,
			Reference:           req.Reference,
			Status:              "received",
		}, nil
	}

	var amounts []*braintree.Decimal
	if req.Amount != nil {
		// Braintree expects NewDecimal(unscaled, scale); minor units are scale 2.
		amounts = append(amounts, braintree.NewDecimal(req.Amount.Value, 2))
	}

	refund, err := c.gateway.Transaction().Refund(ctx, pspReference, amounts...)
	if err != nil {
		return nil, fmt.Errorf("braintree refund transaction: %w", err)
	}

	return &model.ReversalResponse{
		PspReference:        refund.Id,
		PaymentPspReference: pspReference,
		Reference:           req.Reference,
		Status:              "received",
	}, nil
}
