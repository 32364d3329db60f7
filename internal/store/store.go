// Package store persists transaction records across their lifecycle.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
)

// ErrNotFound reports a transaction ID with no stored record.
var ErrNotFound = errors.New("transaction not found")

// Transaction is the persisted record for one payment attempt chain. It keeps
// the original canonical request and the last raw gateway response so a
// transaction can be refunded, voided or audited later.
type Transaction struct {
	TransactionID        string                          `json:"transaction_id"`
	Gateway              schema.Gateway                  `json:"gateway"`
	GatewayTransactionID string                          `json:"gateway_transaction_id,omitempty"`
	Status               schema.PaymentStatus            `json:"status"`
	Amount               decimal.Decimal                 `json:"amount"`
	Currency             schema.Currency                 `json:"currency"`
	CustomerEmail        string                          `json:"customer_email,omitempty"`
	PaymentRequest       *schema.UniversalPaymentRequest `json:"payment_request,omitempty"`
	GatewayResponse      map[string]any                  `json:"gateway_response,omitempty"`
	ErrorMessage         string                          `json:"error_message,omitempty"`
	ErrorCode            string                          `json:"error_code,omitempty"`
	RetryCount           int                             `json:"retry_count"`
	RefundedAmount       decimal.Decimal                 `json:"refunded_amount"`
	CreatedAt            time.Time                       `json:"created_at"`
	UpdatedAt            time.Time                       `json:"updated_at"`
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Gateway schema.Gateway
	Status  schema.PaymentStatus
	Limit   int
}

// TransactionStore is the persistence boundary for transaction records.
type TransactionStore interface {
	Create(ctx context.Context, txn *Transaction) error
	Update(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, transactionID string) (*Transaction, error)
	// GetByGatewayTransactionID resolves webhook notifications that only
	// carry the gateway's own transaction ID.
	GetByGatewayTransactionID(ctx context.Context, gatewayTransactionID string) (*Transaction, error)
	// List returns transactions newest first.
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)
}
