// Package paypal implements the gateway connector for PayPal's Orders API.
package paypal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/schema"
)

const defaultBaseURL = "https://api-m.paypal.com"

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	HTTPClient    *http.Client
}

// Client talks to PayPal Orders v2. Only order creation is exposed; refunds,
// voids, captures and subscriptions run against capture IDs that the order
// flow does not hand back here, so those operations report ErrNotSupported.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    cfg.HTTPClient,
	}
}

func (c *Client) Name() schema.Gateway { return schema.GatewayPayPal }

func (c *Client) WithAPIKey(key string) gateway.Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

func (c *Client) ProcessPayment(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	resp, err := gateway.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+req.Endpoint, headers, req.Payload)
	if err != nil {
		return nil, fmt.Errorf("paypal: %w", err)
	}
	return resp, nil
}

func (c *Client) RefundPayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error) {
	return nil, fmt.Errorf("paypal: refund: %w", gateway.ErrNotSupported)
}

func (c *Client) VoidPayment(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	return nil, fmt.Errorf("paypal: void: %w", gateway.ErrNotSupported)
}

func (c *Client) CapturePayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error) {
	return nil, fmt.Errorf("paypal: capture: %w", gateway.ErrNotSupported)
}

func (c *Client) SetupRecurringPayment(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error) {
	return nil, fmt.Errorf("paypal: recurring: %w", gateway.ErrNotSupported)
}

func (c *Client) VerifyWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	return gateway.VerifySignature(c.webhookSecret, payload, signature), nil
}
