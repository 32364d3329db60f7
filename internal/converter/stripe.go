package converter

import (
	"strings"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// StripeConverter maps canonical requests to the Stripe Charges format.
// Stripe expects integer minor-unit amounts, a lowercase currency code and
// the card token in the "source" field. Bank account payments are not
// expressible through this mapping and are rejected outright.
type StripeConverter struct{}

func (c *StripeConverter) Gateway() schema.Gateway { return schema.GatewayStripe }

func (c *StripeConverter) Convert(req schema.UniversalPaymentRequest) (schema.GatewayNativeRequest, error) {
	if req.PaymentMethod != schema.MethodCard {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewayStripe, "payment_method",
			"unsupported payment method "+req.PaymentMethod.String())
	}
	if req.PaymentToken == nil || req.PaymentToken.Token == "" {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewayStripe, "payment_token", "card token is required")
	}

	amount, err := minorUnits(schema.GatewayStripe, req.Amount)
	if err != nil {
		return schema.GatewayNativeRequest{}, err
	}

	payload := map[string]any{
		"amount":   amount,
		"currency": strings.ToLower(req.Currency.String()),
		"source":   req.PaymentToken.Token,
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}
	if req.Customer != nil && req.Customer.Email != "" {
		payload["receipt_email"] = req.Customer.Email
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	native := schema.GatewayNativeRequest{
		Gateway:  schema.GatewayStripe,
		Endpoint: "/v1/charges",
		Payload:  payload,
	}

	// Stripe carries idempotency in a header; only the caller's key is
	// forwarded, Stripe itself deduplicates on retries of the same key.
	if req.IdempotencyKey != "" {
		native.Headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}
	return native, nil
}

var stripeStatuses = map[string]schema.PaymentStatus{
	"succeeded": schema.StatusCompleted,
	"pending":   schema.StatusPending,
	"failed":    schema.StatusFailed,
}

func (c *StripeConverter) Normalize(raw map[string]any) NormalizedResponse {
	status, ok := stripeStatuses[asString(raw["status"])]
	if !ok {
		status = schema.StatusFailed
	}
	return NormalizedResponse{
		Status:               status,
		GatewayTransactionID: asString(raw["id"]),
		Raw:                  raw,
	}
}
