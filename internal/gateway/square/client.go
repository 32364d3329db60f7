// Package square implements the gateway connector for Square's Payments API.
package square

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/schema"
)

const (
	defaultBaseURL = "https://connect.squareup.com"
	apiVersion     = "2024-01-18"
)

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	HTTPClient    *http.Client
}

// Client talks to the Square Payments, Refunds and Subscriptions APIs. It is
// the only connector supporting the full operation set.
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

func (c *Client) Name() schema.Gateway { return schema.GatewaySquare }

func (c *Client) WithAPIKey(key string) gateway.Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

func (c *Client) headers(extra map[string]string) map[string]string {
	h := map[string]string{
		"Authorization":  "Bearer " + c.apiKey,
		"Content-Type":   "application/json",
		"Square-Version": apiVersion,
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any, extra map[string]string) (map[string]any, error) {
	resp, err := gateway.DoJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+endpoint, c.headers(extra), payload)
	if err != nil {
		return nil, fmt.Errorf("square: %w", err)
	}
	return resp, nil
}

func (c *Client) ProcessPayment(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
	return c.post(ctx, req.Endpoint, req.Payload, req.Headers)
}

func (c *Client) RefundPayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	payload := map[string]any{
		"idempotency_key": idempotencyKey,
		"payment_id":      gatewayTransactionID,
		"amount_money": map[string]any{
			"amount":   amount.Mul(decimal.NewFromInt(100)).IntPart(),
			"currency": string(currency),
		},
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return c.post(ctx, "/v2/refunds", payload, nil)
}

func (c *Client) VoidPayment(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	return c.post(ctx, "/v2/payments/"+gatewayTransactionID+"/cancel", map[string]any{}, nil)
}

func (c *Client) CapturePayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error) {
	// Square completes the payment for the authorized amount; a partial
	// capture amount is not accepted by the complete endpoint.
	return c.post(ctx, "/v2/payments/"+gatewayTransactionID+"/complete", map[string]any{}, nil)
}

func (c *Client) SetupRecurringPayment(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error) {
	payload := map[string]any{
		"idempotency_key": uuid.NewString(),
		"plan_name":       req.SubscriptionName,
		"cadence":         req.Schedule.Frequency,
		"start_date":      req.Schedule.StartDate.Format("2006-01-02"),
	}
	if req.PaymentRequest.PaymentToken != nil {
		payload["card_id"] = req.PaymentRequest.PaymentToken.Token
	}
	if req.PaymentRequest.Customer != nil {
		payload["customer_id"] = req.PaymentRequest.Customer.Email
	}
	return c.post(ctx, "/v2/subscriptions", payload, nil)
}

func (c *Client) VerifyWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	return gateway.VerifySignature(c.webhookSecret, payload, signature), nil
}
