package converter

import (
	"github.com/yourorg/payment-adapter/internal/schema"
)

// PayPalConverter maps canonical requests to the PayPal Orders v2 format.
// PayPal wants decimal-string amounts and a payer name decomposed into
// given name and surname.
type PayPalConverter struct{}

func (c *PayPalConverter) Gateway() schema.Gateway { return schema.GatewayPayPal }

func (c *PayPalConverter) Convert(req schema.UniversalPaymentRequest) (schema.GatewayNativeRequest, error) {
	if req.PaymentMethod != schema.MethodCard {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewayPayPal, "payment_method",
			"unsupported payment method "+req.PaymentMethod.String())
	}
	if req.PaymentToken == nil || req.PaymentToken.Token == "" {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewayPayPal, "payment_token", "card token is required")
	}

	// The amount must render as an exact two-decimal string; reject
	// sub-cent precision the same way the minor-unit gateways do.
	if _, err := minorUnits(schema.GatewayPayPal, req.Amount); err != nil {
		return schema.GatewayNativeRequest{}, err
	}

	purchaseUnit := map[string]any{
		"amount": map[string]any{
			"currency_code": req.Currency.String(),
			"value":         req.Amount.StringFixed(2),
		},
	}
	if req.Description != "" {
		purchaseUnit["description"] = req.Description
	}

	payload := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []map[string]any{purchaseUnit},
		"payment_source": map[string]any{
			"token": map[string]any{
				"id":   req.PaymentToken.Token,
				"type": "PAYMENT_METHOD_TOKEN",
			},
		},
	}

	if req.Customer != nil {
		payer := map[string]any{}
		if req.Customer.Email != "" {
			payer["email_address"] = req.Customer.Email
		}
		if req.Customer.Name != "" {
			given, surname := splitName(req.Customer.Name)
			payer["name"] = map[string]any{
				"given_name": given,
				"surname":    surname,
			}
		}
		if len(payer) > 0 {
			payload["payer"] = payer
		}
	}

	return schema.GatewayNativeRequest{
		Gateway:  schema.GatewayPayPal,
		Endpoint: "/v2/checkout/orders",
		Payload:  payload,
	}, nil
}

var paypalStatuses = map[string]schema.PaymentStatus{
	"COMPLETED": schema.StatusCompleted,
	"PENDING":   schema.StatusPending,
	"FAILED":    schema.StatusFailed,
}

func (c *PayPalConverter) Normalize(raw map[string]any) NormalizedResponse {
	status, ok := paypalStatuses[asString(raw["status"])]
	if !ok {
		status = schema.StatusFailed
	}
	return NormalizedResponse{
		Status:               status,
		GatewayTransactionID: asString(raw["id"]),
		Raw:                  raw,
	}
}
