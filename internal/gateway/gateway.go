// Package gateway defines the capability contract an external payment
// gateway connector must satisfy, and the registry the engine dispatches
// through. Connectors own the actual network calls, provider authentication
// and raw error text; everything above this seam is gateway-agnostic.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// ErrNotSupported signals that a gateway does not implement an optional
// operation. It is a distinct, immediately-surfaced condition, never a
// retryable fault and never a generic failure.
var ErrNotSupported = errors.New("operation not supported for this gateway")

// Client is the per-gateway connector contract. ProcessPayment is mandatory;
// every other operation may return ErrNotSupported (wrapped with the
// operation name). All calls honor ctx cancellation for the outbound request,
// though a request already in flight runs to the connector's own timeout.
type Client interface {
	Name() schema.Gateway

	// ProcessPayment executes a converter-produced native request and
	// returns the raw native response for the converter's inverse mapping.
	ProcessPayment(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error)

	// RefundPayment refunds a settled payment. A zero amount means a full
	// refund.
	RefundPayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency, reason, idempotencyKey string) (map[string]any, error)

	// VoidPayment cancels an authorized, uncaptured payment.
	VoidPayment(ctx context.Context, gatewayTransactionID string) (map[string]any, error)

	// CapturePayment completes an authorized payment. A zero amount captures
	// the full authorized amount.
	CapturePayment(ctx context.Context, gatewayTransactionID string, amount decimal.Decimal, currency schema.Currency) (map[string]any, error)

	// SetupRecurringPayment creates a subscription at the gateway.
	SetupRecurringPayment(ctx context.Context, req schema.RecurringPaymentRequest) (map[string]any, error)

	// VerifyWebhook checks a webhook payload's signature. A false result is
	// a validation failure, never a successful payload.
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (bool, error)

	// WithAPIKey returns a client using the given credential instead of the
	// configured one, for per-request credential overrides.
	WithAPIKey(key string) Client
}

// Registry holds the configured connectors keyed by gateway.
type Registry struct {
	clients map[schema.Gateway]Client
}

// NewRegistry builds a registry from the given connectors.
func NewRegistry(clients ...Client) *Registry {
	m := make(map[schema.Gateway]Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &Registry{clients: m}
}

// Client returns the connector for a gateway.
func (r *Registry) Client(g schema.Gateway) (Client, error) {
	c, ok := r.clients[g]
	if !ok {
		return nil, schema.NewGatewayError(g, "unsupported gateway: "+g.String(), nil)
	}
	return c, nil
}

// Gateways lists the registered gateways.
func (r *Registry) Gateways() []schema.Gateway {
	out := make([]schema.Gateway, 0, len(r.clients))
	for g := range r.clients {
		out = append(out, g)
	}
	return out
}
