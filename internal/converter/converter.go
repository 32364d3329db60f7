// Package converter implements the bidirectional mapping between the
// canonical payment schema and each gateway's native request/response shape.
// Converters are pure: no I/O, no clock, no shared state. The only
// nondeterminism is idempotency-key generation for gateways that require one.
package converter

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// CardInfo carries card details extracted from a native response, when the
// gateway reports them.
type CardInfo struct {
	Brand       string `json:"brand,omitempty"`
	Last4       string `json:"last_4,omitempty"`
	CardType    string `json:"card_type,omitempty"`
	ExpMonth    int    `json:"exp_month,omitempty"`
	ExpYear     int    `json:"exp_year,omitempty"`
	EntryMethod string `json:"entry_method,omitempty"`
	CVVStatus   string `json:"cvv_status,omitempty"`
	AVSStatus   string `json:"avs_status,omitempty"`
}

// NormalizedResponse is the gateway-agnostic view of a native payment
// response produced by a converter's inverse mapping.
type NormalizedResponse struct {
	Status               schema.PaymentStatus
	GatewayTransactionID string
	Raw                  map[string]any
	CardInfo             *CardInfo
	ReceiptNumber        string
	ReceiptURL           string
	ReferenceID          string
}

// Converter maps canonical requests to one gateway's native format and
// native responses back to the normalized shape. An unrecognized native
// status always normalizes to failed, never passes through.
type Converter interface {
	Gateway() schema.Gateway
	Convert(req schema.UniversalPaymentRequest) (schema.GatewayNativeRequest, error)
	Normalize(raw map[string]any) NormalizedResponse
}

// ForGateway returns the converter for the given gateway.
func ForGateway(g schema.Gateway) (Converter, error) {
	switch g {
	case schema.GatewayStripe:
		return &StripeConverter{}, nil
	case schema.GatewayPayPal:
		return &PayPalConverter{}, nil
	case schema.GatewaySquare:
		return &SquareConverter{}, nil
	}
	return nil, schema.NewConversionError(g, "", "no converter registered for gateway")
}

// minorUnits converts a decimal amount to integer minor units (cents). The
// conversion must be lossless: amounts with sub-cent precision are rejected
// rather than rounded.
func minorUnits(g schema.Gateway, amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, schema.NewConversionError(g, "amount",
			"amount "+amount.String()+" has sub-cent precision and cannot be encoded as minor units")
	}
	return cents.IntPart(), nil
}

// splitName splits a full name on the first space: everything before it is
// the given name, everything after it (further spaces included) is the
// surname. A name with no space yields an empty surname. This rule is pinned
// by tests; downstream gateways depend on it being exactly this.
func splitName(full string) (given, surname string) {
	idx := strings.Index(full, " ")
	if idx < 0 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
