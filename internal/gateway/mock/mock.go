// Package mock provides a scriptable gateway.Client for tests.
package mock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/schema"
)

// Client is a mock implementation of the gateway.Client interface. Each
// operation calls the matching Func field when set, otherwise returns a
// default successful payload shaped like the real gateway's response.
type Client struct {
	GatewayName schema.Gateway

	// UsedAPIKey records the key passed via WithAPIKey, "" when the
	// configured credential was used.
	UsedAPIKey string

	ProcessFunc   func(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error)
	RefundFunc    func(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error)
	VoidFunc      func(ctx context.Context, gatewayTransactionID string) (map[string]any, error)
	CaptureFunc   func(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error)
	RecurringFunc func(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error)
	VerifyFunc    func(ctx context.Context, payload []byte, signature string) (bool, error)

	// ProcessCalls counts ProcessPayment invocations across retries.
	ProcessCalls int
}

func New(g schema.Gateway) *Client {
	return &Client{GatewayName: g}
}

func (m *Client) Name() schema.Gateway { return m.GatewayName }

func (m *Client) WithAPIKey(key string) gateway.Client {
	m.UsedAPIKey = key
	return m
}

func (m *Client) ProcessPayment(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
	m.ProcessCalls++
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, req)
	}
	return defaultSuccess(m.GatewayName), nil
}

func (m *Client) RefundPayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, gatewayTransactionID, amount, currency, reason, idempotencyKey)
	}
	return map[string]any{"id": uuid.NewString(), "status": "succeeded"}, nil
}

func (m *Client) VoidPayment(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	if m.VoidFunc != nil {
		return m.VoidFunc(ctx, gatewayTransactionID)
	}
	return map[string]any{"id": gatewayTransactionID, "status": "CANCELED"}, nil
}

func (m *Client) CapturePayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, gatewayTransactionID, amount, currency)
	}
	return map[string]any{"id": gatewayTransactionID, "status": "COMPLETED"}, nil
}

func (m *Client) SetupRecurringPayment(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error) {
	if m.RecurringFunc != nil {
		return m.RecurringFunc(ctx, req)
	}
	return map[string]any{"id": "sub_" + uuid.NewString(), "status": "ACTIVE"}, nil
}

func (m *Client) VerifyWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, payload, signature)
	}
	return true, nil
}

func defaultSuccess(g schema.Gateway) map[string]any {
	switch g {
	case schema.GatewayPayPal:
		return map[string]any{"id": uuid.NewString(), "status": "COMPLETED"}
	case schema.GatewaySquare:
		return map[string]any{"payment": map[string]any{"id": uuid.NewString(), "status": "COMPLETED"}}
	default:
		return map[string]any{"id": "ch_" + uuid.NewString(), "status": "succeeded"}
	}
}
