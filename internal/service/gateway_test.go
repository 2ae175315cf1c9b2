package service

import (
	"context"
	"errors"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/model"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(checkout *mockCheckoutClient) *paymentGatewayImpl {
	return NewPaymentGateway(checkout, GatewayConfig{
		MerchantAccount: "StoreECOM",
		Currency:        "USD",
		CountryCode:     "US",
		SessionTTL:      30 * time.Minute,
	}, discardLogger()).(*paymentGatewayImpl)
}

func TestCreateSessionRequest(t *testing.T) {
	gw := newTestGateway(&mockCheckoutClient{})
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	gw.now = func() time.Time { return now }

	lines := []model.CartLine{line("tshirt", 2, "20.00"), line("mug", 1, "10.00")}
	req, key, err := gw.CreateSessionRequest(lines, "order-1", "http://shop/return", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "StoreECOM", req.MerchantAccount)
	assert.Equal(t, model.Amount{Currency: "USD", Value: 5400}, req.Amount)
	assert.Equal(t, "order-1", req.Reference)
	assert.Equal(t, "http://shop/return", req.ReturnURL)
	assert.Equal(t, "US", req.CountryCode)
	assert.Equal(t, "user-1", req.ShopperReference)
	require.NotNil(t, req.ExpiresAt)
	assert.Equal(t, now.Add(30*time.Minute), *req.ExpiresAt)

	require.Len(t, req.LineItems, 2)
	assert.Equal(t, model.LineItem{
		ID:                 "tshirt",
		Description:        "tshirt",
		Quantity:           2,
		AmountExcludingTax: 2000,
		TaxAmount:          160,
		AmountIncludingTax: 2160,
	}, req.LineItems[0])

	assert.True(t, strings.HasPrefix(key, "order-1-"))
	assert.LessOrEqual(t, len(key), MaxIdempotencyKeyLen)
}

func TestCreateSessionRequestLineItemsAddUpToAmount(t *testing.T) {
	gw := newTestGateway(&mockCheckoutClient{})

	tests := []struct {
		name  string
		lines []model.CartLine
		want  []model.LineItem
	}{
		{
			name:  "rounded-down unit tax",
			lines: []model.CartLine{line("sticker", 3, "0.05")},
			want: []model.LineItem{
				{ID: "sticker", Description: "sticker", Quantity: 2, AmountExcludingTax: 5, TaxAmount: 0, AmountIncludingTax: 5},
				{ID: "sticker", Description: "sticker", Quantity: 1, AmountExcludingTax: 5, TaxAmount: 1, AmountIncludingTax: 6},
			},
		},
		{
			name:  "rounded-up unit tax",
			lines: []model.CartLine{line("a", 1, "0.07"), line("b", 1, "0.07"), line("c", 1, "0.07")},
			want: []model.LineItem{
				{ID: "a", Description: "a", Quantity: 1, AmountExcludingTax: 7, TaxAmount: 1, AmountIncludingTax: 8},
				{ID: "b", Description: "b", Quantity: 1, AmountExcludingTax: 7, TaxAmount: 1, AmountIncludingTax: 8},
				{ID: "c", Description: "c", Quantity: 1, AmountExcludingTax: 7, TaxAmount: 0, AmountIncludingTax: 7},
			},
		},
		{
			name:  "no residue",
			lines: []model.CartLine{line("tshirt", 2, "20.00")},
			want: []model.LineItem{
				{ID: "tshirt", Description: "tshirt", Quantity: 2, AmountExcludingTax: 2000, TaxAmount: 160, AmountIncludingTax: 2160},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _, err := gw.CreateSessionRequest(tt.lines, "order-1", "", "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.LineItems)

			var sum int64
			for _, item := range req.LineItems {
				sum += item.AmountIncludingTax * int64(item.Quantity)
			}
			assert.Equal(t, req.Amount.Value, sum)
		})
	}
}

func TestCreateSessionRequestValidation(t *testing.T) {
	gw := newTestGateway(&mockCheckoutClient{})

	_, _, err := gw.CreateSessionRequest(nil, "order-1", "", "user-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = gw.CreateSessionRequest([]model.CartLine{line("tshirt", 1, "20.00")}, "", "", "user-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = gw.CreateSessionRequest([]model.CartLine{line("tshirt", 0, "20.00")}, "order-1", "", "user-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestIdempotencyKeys(t *testing.T) {
	gw := newTestGateway(&mockCheckoutClient{})
	lines := []model.CartLine{line("tshirt", 1, "20.00")}

	_, first, err := gw.CreateSessionRequest(lines, "order-1", "", "user-1")
	require.NoError(t, err)
	_, second, err := gw.CreateSessionRequest(lines, "order-1", "", "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each checkout attempt mints a new key")

	long := strings.Repeat("x", 100)
	key := NewIdempotencyKey(long)
	assert.Len(t, key, MaxIdempotencyKeyLen)
	assert.NotEqual(t, key, NewIdempotencyKey(long), "the random part survives truncation")
}

func TestCreateSessionReusesKeyAndDoesNotRetry(t *testing.T) {
	providerErr := errors.New("adyen error 500: internal")
	checkout := &mockCheckoutClient{
		CreateSessionFn: func(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error) {
			return nil, providerErr
		},
	}
	gw := newTestGateway(checkout)

	req, key, err := gw.CreateSessionRequest([]model.CartLine{line("tshirt", 1, "20.00")}, "order-1", "", "user-1")
	require.NoError(t, err)

	_, err = gw.CreateSession(context.Background(), req, key)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 1, checkout.sessionCalls())
	assert.Equal(t, []string{key}, checkout.sessionKeys)
}

func TestRefundKeyedByPaymentReference(t *testing.T) {
	checkout := &mockCheckoutClient{}
	gw := newTestGateway(checkout)

	entry := &model.PaymentLedgerEntry{
		OrderID:      "order-1",
		PspReference: "PSP1",
		Amount:       decimal.RequireFromString("54.00"),
		Currency:     "USD",
	}

	_, err := gw.Refund(context.Background(), entry)
	require.NoError(t, err)
	_, err = gw.Refund(context.Background(), entry)
	require.NoError(t, err)

	calls := checkout.refundCalls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, "PSP1", call.pspReference)
		assert.Equal(t, "PSP1", call.idempotencyKey)
		assert.Equal(t, "order-1", call.req.Reference)
		assert.Equal(t, "StoreECOM", call.req.MerchantAccount)
		assert.Equal(t, &model.Amount{Currency: "USD", Value: 5400}, call.req.Amount)
	}
}

func TestRefundErrors(t *testing.T) {
	checkout := &mockCheckoutClient{
		RefundOrCancelFn: func(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error) {
			return nil, errors.New("adyen error 422: not refundable")
		},
	}
	gw := newTestGateway(checkout)

	_, err := gw.Refund(context.Background(), &model.PaymentLedgerEntry{OrderID: "order-1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, checkout.refundCalls())

	_, err = gw.Refund(context.Background(), &model.PaymentLedgerEntry{OrderID: "order-1", PspReference: "PSP1"})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
