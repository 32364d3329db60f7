// Package schema defines the canonical, gateway-agnostic payment types that
// every converter and the orchestration engine operate on, together with the
// error taxonomy shared across the module. Converters translate these types
// into gateway-native payloads and back; nothing outside the gateway
// connectors should ever see a native shape.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway identifies a supported payment gateway.
type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewayPayPal Gateway = "paypal"
	GatewaySquare Gateway = "square"
)

// Gateways lists every supported gateway in lexical order. Selection
// tie-breaks rely on this ordering being stable.
func Gateways() []Gateway {
	return []Gateway{GatewayPayPal, GatewaySquare, GatewayStripe}
}

func (g Gateway) Valid() bool {
	switch g {
	case GatewayStripe, GatewayPayPal, GatewaySquare:
		return true
	}
	return false
}

func (g Gateway) String() string { return string(g) }

// PaymentStatus is the normalized transaction status shared by all gateways.
type PaymentStatus string

const (
	StatusPending           PaymentStatus = "pending"
	StatusAuthorized        PaymentStatus = "authorized"
	StatusCompleted         PaymentStatus = "completed"
	StatusFailed            PaymentStatus = "failed"
	StatusCancelled         PaymentStatus = "cancelled"
	StatusRefunded          PaymentStatus = "refunded"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

func (s PaymentStatus) String() string { return string(s) }

// Refundable reports whether a transaction in this status may be refunded.
func (s PaymentStatus) Refundable() bool {
	return s == StatusCompleted || s == StatusPartiallyRefunded
}

// PaymentMethod enumerates the supported payment instruments.
type PaymentMethod string

const (
	MethodCard        PaymentMethod = "card"
	MethodBankAccount PaymentMethod = "bank_account"
)

func (m PaymentMethod) String() string { return string(m) }

// Currency is an ISO 4217 code. All supported currencies use two minor-unit
// decimal places, which the converters rely on when encoding amounts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyCAD, CurrencyAUD:
		return true
	}
	return false
}

func (c Currency) String() string { return string(c) }

// Address is a customer billing or shipping address.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Customer carries optional purchaser details forwarded to the gateway.
type Customer struct {
	Email   string   `json:"email,omitempty"`
	Name    string   `json:"name,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// PaymentToken is an opaque card token minted by a client-side widget. The
// core never sees raw card data.
type PaymentToken struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4,omitempty"`
	ExpMonth  int    `json:"exp_month,omitempty"`
	ExpYear   int    `json:"exp_year,omitempty"`
}

// BankAccount holds ACH-style bank account details.
type BankAccount struct {
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	AccountType   string `json:"account_type,omitempty"`
	HolderName    string `json:"holder_name,omitempty"`
}

// UniversalPaymentRequest is the canonical payment description every
// converter consumes. Exactly one of PaymentToken/BankAccount must be set,
// consistent with PaymentMethod.
type UniversalPaymentRequest struct {
	Amount         decimal.Decimal   `json:"amount"`
	Currency       Currency          `json:"currency"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	Customer       *Customer         `json:"customer,omitempty"`
	PaymentToken   *PaymentToken     `json:"payment_token,omitempty"`
	BankAccount    *BankAccount      `json:"bank_account_details,omitempty"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`

	// GatewayKeys optionally overrides the configured API credential for a
	// gateway, keyed by gateway name.
	GatewayKeys map[string]string `json:"gateway_keys,omitempty"`
}

// Validate checks the canonical invariants before any gateway is contacted.
func (r *UniversalPaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return NewValidationError("amount must be greater than zero")
	}
	if !r.Currency.Valid() {
		return NewValidationError("unrecognized currency: " + string(r.Currency))
	}
	switch r.PaymentMethod {
	case MethodCard:
		if r.PaymentToken == nil || r.PaymentToken.Token == "" {
			return NewValidationError("payment_token is required for card payments")
		}
		if r.BankAccount != nil {
			return NewValidationError("bank_account_details must not be set for card payments")
		}
	case MethodBankAccount:
		if r.BankAccount == nil {
			return NewValidationError("bank_account_details is required for bank account payments")
		}
		if r.PaymentToken != nil {
			return NewValidationError("payment_token must not be set for bank account payments")
		}
	default:
		return NewValidationError("unrecognized payment method: " + string(r.PaymentMethod))
	}
	return nil
}

// GatewayNativeRequest is a gateway-specific payload produced by a converter.
// The engine treats it as opaque and hands it to the gateway connector.
type GatewayNativeRequest struct {
	Gateway  Gateway           `json:"gateway"`
	Endpoint string            `json:"endpoint"`
	Payload  map[string]any    `json:"payload"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// UniversalPaymentResponse is the normalized result of a payment attempt.
type UniversalPaymentResponse struct {
	TransactionID        string            `json:"transaction_id"`
	Gateway              Gateway           `json:"gateway"`
	Status               PaymentStatus     `json:"status"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             Currency          `json:"currency"`
	GatewayTransactionID string            `json:"gateway_transaction_id,omitempty"`
	Fee                  *decimal.Decimal  `json:"fee,omitempty"`
	Savings              *decimal.Decimal  `json:"savings,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// RefundRequest asks for a full or partial refund of an existing transaction.
// A zero Amount means a full refund.
type RefundRequest struct {
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type RefundResponse struct {
	RefundID        string          `json:"refund_id"`
	TransactionID   string          `json:"transaction_id"`
	Gateway         Gateway         `json:"gateway"`
	Status          PaymentStatus   `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        Currency        `json:"currency"`
	GatewayRefundID string          `json:"gateway_refund_id,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CaptureRequest completes a previously authorized payment. A zero Amount
// captures the full authorized amount.
type CaptureRequest struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
}

type CaptureResponse struct {
	CaptureID        string          `json:"capture_id"`
	TransactionID    string          `json:"transaction_id"`
	Gateway          Gateway         `json:"gateway"`
	Status           PaymentStatus   `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         Currency        `json:"currency"`
	GatewayCaptureID string          `json:"gateway_capture_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// VoidResponse confirms cancellation of an authorized payment.
type VoidResponse struct {
	TransactionID   string         `json:"transaction_id"`
	Status          PaymentStatus  `json:"status"`
	GatewayResponse map[string]any `json:"gateway_response,omitempty"`
}

// Schedule describes a recurring billing cadence. Billing-cycle computation
// beyond the start date is out of scope; the engine only records it.
type Schedule struct {
	Frequency string    `json:"frequency"`
	StartDate time.Time `json:"start_date"`
}

type RecurringPaymentRequest struct {
	SubscriptionName string                  `json:"subscription_name"`
	PaymentRequest   UniversalPaymentRequest `json:"payment_request"`
	Schedule         Schedule                `json:"schedule"`
}

type RecurringPaymentResponse struct {
	SubscriptionID  string    `json:"subscription_id"`
	Gateway         Gateway   `json:"gateway"`
	Status          string    `json:"status"`
	Schedule        Schedule  `json:"schedule"`
	NextPaymentDate time.Time `json:"next_payment_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// WebhookEvent is a gateway-originated notification after signature
// verification.
type WebhookEvent struct {
	Gateway              Gateway        `json:"gateway"`
	EventType            string         `json:"event_type"`
	GatewayTransactionID string         `json:"gateway_transaction_id,omitempty"`
	Payload              map[string]any `json:"payload"`
	Signature            string         `json:"signature,omitempty"`
}

// WebhookResult acknowledges a processed webhook.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
	EventType string `json:"event_type"`
}
