// Package stripe implements the gateway connector for Stripe's Charges API.
package stripe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/schema"
)

const defaultBaseURL = "https://api.stripe.com"

// Config holds connector settings. BaseURL is overridable for tests.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	HTTPClient    *http.Client
}

// Client talks to Stripe. Charges are form-encoded; refunds and delayed
// captures are supported, recurring setup and voids are not exposed through
// this connector (Stripe voids an uncaptured charge via refund).
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

func (c *Client) Name() schema.Gateway { return schema.GatewayStripe }

func (c *Client) WithAPIKey(key string) gateway.Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

// stripeError is Stripe's error envelope.
type stripeError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		DeclineCode string `json:"decline_code"`
	} `json:"error"`
}

func (c *Client) ProcessPayment(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
	form := url.Values{}
	for k, v := range req.Payload {
		switch val := v.(type) {
		case string:
			form.Set(k, val)
		case int64:
			form.Set(k, strconv.FormatInt(val, 10))
		case int:
			form.Set(k, strconv.Itoa(val))
		case map[string]string:
			for mk, mv := range val {
				form.Set(k+"["+mk+"]", mv)
			}
		default:
			form.Set(k, fmt.Sprint(v))
		}
	}

	headers := map[string]string{}
	for k, v := range req.Headers {
		headers[k] = v
	}
	return c.doForm(ctx, req.Endpoint, form, headers)
}

func (c *Client) RefundPayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error) {
	form := url.Values{}
	form.Set("charge", gatewayTransactionID)
	if !amount.IsZero() {
		cents := amount.Mul(decimal.NewFromInt(100))
		form.Set("amount", strconv.FormatInt(cents.IntPart(), 10))
	}
	if reason != "" {
		form.Set("reason", reason)
	}
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	return c.doForm(ctx, "/v1/refunds", form, headers)
}

func (c *Client) VoidPayment(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	return nil, fmt.Errorf("stripe: void: %w", gateway.ErrNotSupported)
}

func (c *Client) CapturePayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error) {
	form := url.Values{}
	if !amount.IsZero() {
		cents := amount.Mul(decimal.NewFromInt(100))
		form.Set("amount", strconv.FormatInt(cents.IntPart(), 10))
	}
	return c.doForm(ctx, "/v1/charges/"+gatewayTransactionID+"/capture", form, nil)
}

func (c *Client) SetupRecurringPayment(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error) {
	return nil, fmt.Errorf("stripe: recurring: %w", gateway.ErrNotSupported)
}

func (c *Client) VerifyWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	return gateway.VerifySignature(c.webhookSecret, payload, signature), nil
}

func (c *Client) doForm(ctx context.Context, endpoint string, form url.Values, headers map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("stripe: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stripe: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var stripeErr stripeError
		if err := sonic.Unmarshal(raw, &stripeErr); err == nil && stripeErr.Error.Message != "" {
			code := stripeErr.Error.Code
			if stripeErr.Error.DeclineCode != "" {
				code = stripeErr.Error.DeclineCode
			}
			return nil, fmt.Errorf("stripe: HTTP %d (%s): %s", resp.StatusCode, code, stripeErr.Error.Message)
		}
		return nil, fmt.Errorf("stripe: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	decoded := make(map[string]any)
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("stripe: decode response body: %w", err)
	}
	return decoded, nil
}
