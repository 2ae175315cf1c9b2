package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"time"
)

// CheckoutClient is the provider's hosted-checkout API as the gateway sees it.
type CheckoutClient interface {
	CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error)
	RefundOrCancel(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error)
}

type adyenClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
}

func NewAdyenClient(adyenCfg *config.Adyen) CheckoutClient {
	return &adyenClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: adyenCfg.BaseApiURL,
		apiKey:     adyenCfg.APIKey,
	}
}

func (c *adyenClientImpl) CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error) {
	var result model.SessionResponse
	if err := c.post(ctx, "/sessions", req, idempotencyKey, &result); err != nil {
		return nil, fmt.Errorf("adyen create session: %w", err)
	}
	return &result, nil
}

func (c *adyenClientImpl) RefundOrCancel(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error) {
	path := fmt.Sprintf("/payments/%s/reversals", url.PathEscape(pspReference))

	var result model.ReversalResponse
	if err := c.post(ctx, path, req, idempotencyKey, &result); err != nil {
		return nil, fmt.Errorf("adyen reversal: %w", err)
	}
	return &result, nil
}

func (c *adyenClientImpl) post(ctx context.Context, path string, payload any, idempotencyKey string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("adyen error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode adyen response: %w", err)
	}
	return nil
}
