package service

import (
	"context"
	"fmt"
	"log/slog"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"
	"time"

	"github.com/google/uuid"
)

// MaxIdempotencyKeyLen is the longest Idempotency-Key the provider accepts.
const MaxIdempotencyKeyLen = 64

const defaultSessionTTL = time.Hour

type GatewayConfig struct {
	MerchantAccount string
	Currency        string
	CountryCode     string
	SessionTTL      time.Duration
}

// PaymentGateway turns local orders into provider calls. It never retries: a
// retried session creation with a fresh key could open a second session.
type PaymentGateway interface {
	// CreateSessionRequest prices lines and returns the request together with a
	// fresh idempotency key. Resubmitting the same request must reuse that key.
	CreateSessionRequest(lines []model.CartLine, orderID, returnURL, userID string) (*model.SessionRequest, string, error)
	CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error)
	// Refund reverses the payment behind entry, keyed by its provider reference
	// so repeated attempts collapse into one at the provider.
	Refund(ctx context.Context, entry *model.PaymentLedgerEntry) (*model.ReversalResponse, error)
}

type paymentGatewayImpl struct {
	checkout client.CheckoutClient
	cfg      GatewayConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewPaymentGateway(checkout client.CheckoutClient, cfg GatewayConfig, logger *slog.Logger) PaymentGateway {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	return &paymentGatewayImpl{
		checkout: checkout,
		cfg:      cfg,
		logger:   logger.With("component", "payment_gateway"),
		now:      time.Now,
	}
}

func (g *paymentGatewayImpl) CreateSessionRequest(lines []model.CartLine, orderID, returnURL, userID string) (*model.SessionRequest, string, error) {
	if orderID == "" {
		return nil, "", apperr.Validation("order id is required")
	}
	if len(lines) == 0 {
		return nil, "", apperr.Validation("cart is empty")
	}

	lineItems := make([]model.LineItem, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, "", apperr.Validation(fmt.Sprintf("quantity for %s must be positive", line.ProductID))
		}

		unitTax := line.UnitPrice.Mul(TaxRate).Round(2)
		lineItems[i] = model.LineItem{
			ID:                 line.ProductID,
			Description:        line.Name,
			Quantity:           line.Quantity,
			AmountExcludingTax: ToMinorUnits(line.UnitPrice),
			TaxAmount:          ToMinorUnits(unitTax),
			AmountIncludingTax: ToMinorUnits(line.UnitPrice.Add(unitTax)),
		}
	}

	totals := ComputeTotals(lines)
	lineItems = absorbTaxResidue(lineItems, ToMinorUnits(totals.Tax))
	expiresAt := g.now().Add(g.cfg.SessionTTL).UTC()

	req := &model.SessionRequest{
		MerchantAccount:  g.cfg.MerchantAccount,
		Amount:           model.Amount{Currency: g.cfg.Currency, Value: totals.MinorAmount()},
		Reference:        orderID,
		ReturnURL:        returnURL,
		CountryCode:      g.cfg.CountryCode,
		ShopperReference: userID,
		LineItems:        lineItems,
		ExpiresAt:        &expiresAt,
	}

	return req, NewIdempotencyKey(orderID), nil
}

func (g *paymentGatewayImpl) CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error) {
	resp, err := g.checkout.CreateSession(ctx, req, idempotencyKey)
	if err != nil {
		g.logger.Error("create checkout session failed",
			"order_id", req.Reference, "idempotency_key", idempotencyKey, "error", err)
		return nil, apperr.Upstream("failed to start checkout", err)
	}

	g.logger.Info("checkout session created",
		"order_id", req.Reference, "session_id", resp.ID, "amount", req.Amount.Value, "currency", req.Amount.Currency)
	return resp, nil
}

func (g *paymentGatewayImpl) Refund(ctx context.Context, entry *model.PaymentLedgerEntry) (*model.ReversalResponse, error) {
	if entry.PspReference == "" {
		return nil, apperr.Validation("payment has no provider reference")
	}

	currency := entry.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	req := &model.ReversalRequest{
		MerchantAccount: g.cfg.MerchantAccount,
		Reference:       entry.OrderID,
		Amount:          &model.Amount{Currency: currency, Value: ToMinorUnits(entry.Amount)},
	}

	resp, err := g.checkout.RefundOrCancel(ctx, entry.PspReference, req, entry.PspReference)
	if err != nil {
		g.logger.Error("refund request failed",
			"order_id", entry.OrderID, "psp_reference", entry.PspReference, "error", err)
		return nil, apperr.Upstream("failed to refund payment", err)
	}

	g.logger.Info("refund requested",
		"order_id", entry.OrderID, "psp_reference", entry.PspReference, "status", resp.Status)
	return resp, nil
}

// NewIdempotencyKey returns orderID-<uuid>, shortening the order id part when
// needed so the random suffix always survives the provider's length limit.
func NewIdempotencyKey(orderID string) string {
	suffix := uuid.NewString()
	room := MaxIdempotencyKeyLen - len(suffix) - 1
	if len(orderID) > room {
		orderID = orderID[:room]
	}
	return orderID + "-" + suffix
}

// absorbTaxResidue makes the line items add up to the charged amount. Tax is
// rounded per unit on the lines but once on the subtotal for the order; the
// difference lands on a single unit split off the last line.
func absorbTaxResidue(items []model.LineItem, orderTax int64) []model.LineItem {
	var lineTax int64
	for _, item := range items {
		lineTax += item.TaxAmount * int64(item.Quantity)
	}

	residue := orderTax - lineTax
	if residue == 0 {
		return items
	}

	last := &items[len(items)-1]
	if last.Quantity > 1 {
		last.Quantity--
		unit := *last
		unit.Quantity = 1
		items = append(items, unit)
		last = &items[len(items)-1]
	}

	last.TaxAmount += residue
	last.AmountIncludingTax += residue
	return items
}
