package converter

import (
	"github.com/google/uuid"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// SquareConverter maps canonical requests to the Square Payments format.
// Square requires an explicit inline idempotency key on every payment; when
// the caller did not supply one the converter generates a random UUID.
type SquareConverter struct{}

func (c *SquareConverter) Gateway() schema.Gateway { return schema.GatewaySquare }

func (c *SquareConverter) Convert(req schema.UniversalPaymentRequest) (schema.GatewayNativeRequest, error) {
	if req.PaymentMethod != schema.MethodCard {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewaySquare, "payment_method",
			"unsupported payment method "+req.PaymentMethod.String())
	}
	if req.PaymentToken == nil || req.PaymentToken.Token == "" {
		return schema.GatewayNativeRequest{}, schema.NewConversionError(
			schema.GatewaySquare, "payment_token", "card token is required")
	}

	amount, err := minorUnits(schema.GatewaySquare, req.Amount)
	if err != nil {
		return schema.GatewayNativeRequest{}, err
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	payload := map[string]any{
		"source_id": req.PaymentToken.Token,
		"amount_money": map[string]any{
			"amount":   amount,
			"currency": req.Currency.String(),
		},
		"idempotency_key": idempotencyKey,
	}
	if req.Description != "" {
		payload["note"] = req.Description
	}
	if req.Customer != nil && req.Customer.Email != "" {
		payload["buyer_email_address"] = req.Customer.Email
	}
	if req.Metadata != nil {
		if ref, ok := req.Metadata["reference_id"]; ok && ref != "" {
			payload["reference_id"] = ref
		}
	}

	return schema.GatewayNativeRequest{
		Gateway:  schema.GatewaySquare,
		Endpoint: "/v2/payments",
		Payload:  payload,
	}, nil
}

var squareStatuses = map[string]schema.PaymentStatus{
	"COMPLETED": schema.StatusCompleted,
	"APPROVED":  schema.StatusAuthorized, // authorized but not yet captured
	"PENDING":   schema.StatusPending,
	"FAILED":    schema.StatusFailed,
	"CANCELED":  schema.StatusCancelled,
	"CANCELLED": schema.StatusCancelled,
}

// Normalize extracts the payment envelope together with Square's card and
// receipt detail, which the other gateways do not report.
func (c *SquareConverter) Normalize(raw map[string]any) NormalizedResponse {
	payment := asMap(raw["payment"])

	status, ok := squareStatuses[asString(payment["status"])]
	if !ok {
		status = schema.StatusFailed
	}

	resp := NormalizedResponse{
		Status:               status,
		GatewayTransactionID: asString(payment["id"]),
		Raw:                  raw,
		ReferenceID:          asString(payment["reference_id"]),
	}

	if cardDetails := asMap(payment["card_details"]); cardDetails != nil {
		card := asMap(cardDetails["card"])
		resp.CardInfo = &CardInfo{
			Brand:       asString(card["card_brand"]),
			Last4:       asString(card["last_4"]),
			CardType:    asString(card["card_type"]),
			ExpMonth:    asInt(card["exp_month"]),
			ExpYear:     asInt(card["exp_year"]),
			EntryMethod: asString(cardDetails["entry_method"]),
			CVVStatus:   asString(cardDetails["cvv_status"]),
			AVSStatus:   asString(cardDetails["avs_status"]),
		}
		resp.ReceiptNumber = asString(payment["receipt_number"])
		resp.ReceiptURL = asString(payment["receipt_url"])
	}

	return resp
}
