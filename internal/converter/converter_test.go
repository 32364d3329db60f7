package converter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-adapter/internal/schema"
)

func cardRequest() schema.UniversalPaymentRequest {
	return schema.UniversalPaymentRequest{
		Amount:        decimal.RequireFromString("100.50"),
		Currency:      schema.CurrencyUSD,
		PaymentMethod: schema.MethodCard,
		PaymentToken:  &schema.PaymentToken{Token: "tok_visa_123"},
		Customer:      &schema.Customer{Email: "jane@example.com", Name: "Jane Q Doe"},
		Description:   "order 42",
	}
}

func TestForGateway(t *testing.T) {
	for _, g := range schema.Gateways() {
		conv, err := ForGateway(g)
		require.NoError(t, err)
		assert.Equal(t, g, conv.Gateway())
	}

	_, err := ForGateway(schema.Gateway("adyen"))
	var convErr *schema.ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestStripeConverter_Convert(t *testing.T) {
	native, err := (&StripeConverter{}).Convert(cardRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v1/charges", native.Endpoint)
	assert.Equal(t, int64(10050), native.Payload["amount"])
	assert.Equal(t, "usd", native.Payload["currency"])
	assert.Equal(t, "tok_visa_123", native.Payload["source"])
	assert.Equal(t, "jane@example.com", native.Payload["receipt_email"])
	assert.Equal(t, "order 42", native.Payload["description"])
	assert.Empty(t, native.Headers)
}

func TestStripeConverter_Convert_IdempotencyHeader(t *testing.T) {
	req := cardRequest()
	req.IdempotencyKey = "idem-1"
	native, err := (&StripeConverter{}).Convert(req)
	require.NoError(t, err)
	assert.Equal(t, "idem-1", native.Headers["Idempotency-Key"])
}

func TestStripeConverter_Convert_RejectsBankPayment(t *testing.T) {
	req := schema.UniversalPaymentRequest{
		Amount:        decimal.RequireFromString("10"),
		Currency:      schema.CurrencyUSD,
		PaymentMethod: schema.MethodBankAccount,
		BankAccount:   &schema.BankAccount{AccountNumber: "1", RoutingNumber: "2"},
	}
	_, err := (&StripeConverter{}).Convert(req)
	var convErr *schema.ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, schema.GatewayStripe, convErr.Gateway)
}

func TestStripeConverter_Convert_RejectsSubCentPrecision(t *testing.T) {
	req := cardRequest()
	req.Amount = decimal.RequireFromString("10.005")
	_, err := (&StripeConverter{}).Convert(req)
	var convErr *schema.ConversionError
	assert.ErrorAs(t, err, &convErr)
}

func TestStripeConverter_Normalize(t *testing.T) {
	conv := &StripeConverter{}

	norm := conv.Normalize(map[string]any{"id": "ch_1", "status": "succeeded"})
	assert.Equal(t, schema.StatusCompleted, norm.Status)
	assert.Equal(t, "ch_1", norm.GatewayTransactionID)

	norm = conv.Normalize(map[string]any{"id": "ch_2", "status": "pending"})
	assert.Equal(t, schema.StatusPending, norm.Status)

	// Unknown native statuses never pass through.
	norm = conv.Normalize(map[string]any{"id": "ch_3", "status": "requires_action"})
	assert.Equal(t, schema.StatusFailed, norm.Status)
}

func TestPayPalConverter_Convert(t *testing.T) {
	native, err := (&PayPalConverter{}).Convert(cardRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v2/checkout/orders", native.Endpoint)
	assert.Equal(t, "CAPTURE", native.Payload["intent"])

	units, ok := native.Payload["purchase_units"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, units, 1)
	amount := units[0]["amount"].(map[string]any)
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "100.50", amount["value"])

	payer := native.Payload["payer"].(map[string]any)
	name := payer["name"].(map[string]any)
	assert.Equal(t, "Jane", name["given_name"])
	assert.Equal(t, "Q Doe", name["surname"])
}

func TestPayPalConverter_Convert_SingleWordName(t *testing.T) {
	req := cardRequest()
	req.Customer.Name = "Cher"
	native, err := (&PayPalConverter{}).Convert(req)
	require.NoError(t, err)

	name := native.Payload["payer"].(map[string]any)["name"].(map[string]any)
	assert.Equal(t, "Cher", name["given_name"])
	assert.Equal(t, "", name["surname"])
}

func TestPayPalConverter_Normalize(t *testing.T) {
	conv := &PayPalConverter{}

	norm := conv.Normalize(map[string]any{"id": "ORD-1", "status": "COMPLETED"})
	assert.Equal(t, schema.StatusCompleted, norm.Status)
	assert.Equal(t, "ORD-1", norm.GatewayTransactionID)

	norm = conv.Normalize(map[string]any{"id": "ORD-2", "status": "PAYER_ACTION_REQUIRED"})
	assert.Equal(t, schema.StatusFailed, norm.Status)
}

func TestSquareConverter_Convert(t *testing.T) {
	native, err := (&SquareConverter{}).Convert(cardRequest())
	require.NoError(t, err)

	assert.Equal(t, "/v2/payments", native.Endpoint)
	assert.Equal(t, "tok_visa_123", native.Payload["source_id"])
	money := native.Payload["amount_money"].(map[string]any)
	assert.Equal(t, int64(10050), money["amount"])
	assert.Equal(t, "USD", money["currency"])
	assert.Equal(t, "order 42", native.Payload["note"])
	// Square always gets an idempotency key, generated when absent.
	assert.NotEmpty(t, native.Payload["idempotency_key"])
}

func TestSquareConverter_Convert_CallerIdempotencyKeyWins(t *testing.T) {
	req := cardRequest()
	req.IdempotencyKey = "caller-key"
	native, err := (&SquareConverter{}).Convert(req)
	require.NoError(t, err)
	assert.Equal(t, "caller-key", native.Payload["idempotency_key"])
}

func TestSquareConverter_Normalize_StatusMapping(t *testing.T) {
	conv := &SquareConverter{}
	cases := map[string]schema.PaymentStatus{
		"COMPLETED": schema.StatusCompleted,
		"APPROVED":  schema.StatusAuthorized,
		"PENDING":   schema.StatusPending,
		"FAILED":    schema.StatusFailed,
		"CANCELED":  schema.StatusCancelled,
		"CANCELLED": schema.StatusCancelled,
		"WEIRD":     schema.StatusFailed,
	}
	for native, want := range cases {
		norm := conv.Normalize(map[string]any{
			"payment": map[string]any{"id": "sq_1", "status": native},
		})
		assert.Equal(t, want, norm.Status, "square status %s", native)
	}
}

func TestSquareConverter_Normalize_CardDetails(t *testing.T) {
	raw := map[string]any{
		"payment": map[string]any{
			"id":             "sq_9",
			"status":         "COMPLETED",
			"receipt_number": "R123",
			"receipt_url":    "https://squareup.com/receipt/R123",
			"reference_id":   "order-42",
			"card_details": map[string]any{
				"entry_method": "KEYED",
				"cvv_status":   "CVV_ACCEPTED",
				"avs_status":   "AVS_ACCEPTED",
				"card": map[string]any{
					"card_brand": "VISA",
					"last_4":     "1111",
					"card_type":  "CREDIT",
					"exp_month":  12,
					"exp_year":   2027,
				},
			},
		},
	}

	norm := (&SquareConverter{}).Normalize(raw)
	require.NotNil(t, norm.CardInfo)
	assert.Equal(t, "VISA", norm.CardInfo.Brand)
	assert.Equal(t, "1111", norm.CardInfo.Last4)
	assert.Equal(t, "KEYED", norm.CardInfo.EntryMethod)
	assert.Equal(t, 12, norm.CardInfo.ExpMonth)
	assert.Equal(t, 2027, norm.CardInfo.ExpYear)
	assert.Equal(t, "R123", norm.ReceiptNumber)
	assert.Equal(t, "order-42", norm.ReferenceID)
}

func TestSplitName(t *testing.T) {
	given, surname := splitName("Jane Q Doe")
	assert.Equal(t, "Jane", given)
	assert.Equal(t, "Q Doe", surname)

	given, surname = splitName("Cher")
	assert.Equal(t, "Cher", given)
	assert.Equal(t, "", surname)
}

func TestMinorUnits(t *testing.T) {
	cents, err := minorUnits(schema.GatewayStripe, decimal.RequireFromString("100.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(10050), cents)

	_, err = minorUnits(schema.GatewayStripe, decimal.RequireFromString("0.001"))
	assert.Error(t, err)
}
