// Package reporting aggregates stored transactions into activity summaries.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
	"github.com/yourorg/payment-adapter/internal/store"
)

// Summary aggregates transaction activity over a set of records.
type Summary struct {
	TotalTransactions int                             `json:"total_transactions"`
	Completed         int                             `json:"completed"`
	Failed            int                             `json:"failed"`
	Refunded          int                             `json:"refunded"`
	TotalRetries      int                             `json:"total_retries"`
	VolumeByCurrency  map[schema.Currency]string      `json:"volume_by_currency"`
	CountByGateway    map[schema.Gateway]int          `json:"count_by_gateway"`
	CountByStatus     map[schema.PaymentStatus]int    `json:"count_by_status"`
	ErrorBreakdown    map[string]int                  `json:"error_breakdown,omitempty"`
	DateFrom          time.Time                       `json:"date_from"`
	DateTo            time.Time                       `json:"date_to"`
}

// Summarize builds a summary from transaction records. Completed volume only:
// failed and pending amounts never count toward volume.
func Summarize(txns []*store.Transaction) Summary {
	summary := Summary{
		VolumeByCurrency: make(map[schema.Currency]string),
		CountByGateway:   make(map[schema.Gateway]int),
		CountByStatus:    make(map[schema.PaymentStatus]int),
		ErrorBreakdown:   make(map[string]int),
	}
	if len(txns) == 0 {
		return summary
	}

	volume := make(map[schema.Currency]decimal.Decimal)
	summary.DateFrom = txns[0].CreatedAt
	summary.DateTo = txns[0].CreatedAt

	for _, txn := range txns {
		summary.TotalTransactions++
		summary.CountByGateway[txn.Gateway]++
		summary.CountByStatus[txn.Status]++

		if txn.RetryCount > 1 {
			summary.TotalRetries += txn.RetryCount - 1
		}
		if txn.CreatedAt.Before(summary.DateFrom) {
			summary.DateFrom = txn.CreatedAt
		}
		if txn.CreatedAt.After(summary.DateTo) {
			summary.DateTo = txn.CreatedAt
		}

		switch txn.Status {
		case schema.StatusCompleted:
			summary.Completed++
			volume[txn.Currency] = volume[txn.Currency].Add(txn.Amount)
		case schema.StatusFailed:
			summary.Failed++
			if txn.ErrorCode != "" {
				summary.ErrorBreakdown[txn.ErrorCode]++
			}
		case schema.StatusRefunded, schema.StatusPartiallyRefunded:
			summary.Refunded++
			volume[txn.Currency] = volume[txn.Currency].Add(txn.Amount)
		}
	}

	for currency, total := range volume {
		summary.VolumeByCurrency[currency] = total.StringFixed(2)
	}
	return summary
}
