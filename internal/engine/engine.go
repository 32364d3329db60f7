// Package engine orchestrates payment processing: conversion to the gateway's
// native format, retried submission, response normalization and transaction
// persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/yourorg/payment-adapter/internal/converter"
	"github.com/yourorg/payment-adapter/internal/fees"
	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/monitoring"
	"github.com/yourorg/payment-adapter/internal/router"
	"github.com/yourorg/payment-adapter/internal/schema"
	"github.com/yourorg/payment-adapter/internal/store"
)

// Engine is the gateway-agnostic processing core. All handlers go through it;
// it owns the transaction lifecycle and never exposes retryability to callers.
type Engine struct {
	registry *gateway.Registry
	store    store.TransactionStore
	calc     *fees.Calculator
	router   *router.Router
	retry    RetryConfig
	logger   *zap.Logger
}

func New(registry *gateway.Registry, txnStore store.TransactionStore, calc *fees.Calculator, rt *router.Router, retry RetryConfig, logger *zap.Logger) *Engine {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		store:    txnStore,
		calc:     calc,
		router:   rt,
		retry:    retry,
		logger:   logger,
	}
}

// ProcessPayment runs a payment through the named gateway. Transient gateway
// failures are retried with exponential backoff; the returned error is always
// terminal.
func (e *Engine) ProcessPayment(ctx context.Context, g schema.Gateway, req *schema.UniversalPaymentRequest) (*schema.UniversalPaymentResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.ProcessPayment")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.process(ctx, g, req, nil, nil, nil)
}

// ProcessOptimizedPayment routes the payment to the cheapest healthy gateway
// and reports the fee paid and the savings against the most expensive option.
// Preference weights bias selection without changing the reported fee.
func (e *Engine) ProcessOptimizedPayment(ctx context.Context, req *schema.UniversalPaymentRequest, weights map[schema.Gateway]decimal.Decimal) (*schema.UniversalPaymentResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.ProcessOptimizedPayment")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.router == nil {
		return nil, schema.NewValidationError("fee-optimized routing is not configured")
	}

	sel, err := e.router.Select(req, weights)
	if err != nil {
		return nil, err
	}

	savings := decimal.Zero
	for _, fee := range sel.AllFees {
		if diff := fee.Sub(sel.Fee); diff.GreaterThan(savings) {
			savings = diff
		}
	}
	var savingsPtr *decimal.Decimal
	if !savings.IsZero() {
		savingsPtr = &savings
	}

	// Surface the full comparison so callers can audit the routing decision.
	routingMeta := make(map[string]string, len(sel.AllFees)+1)
	for g, fee := range sel.AllFees {
		routingMeta["fee_"+g.String()] = fee.StringFixed(2)
	}
	routingMeta["routed_gateway"] = sel.Gateway.String()

	return e.process(ctx, sel.Gateway, req, &sel.Fee, savingsPtr, routingMeta)
}

// process is the shared payment path. fee and savings arrive pre-computed
// from optimized routing; for direct payments the fee is looked up from the
// calculator for the chosen gateway.
func (e *Engine) process(ctx context.Context, g schema.Gateway, req *schema.UniversalPaymentRequest, fee, savings *decimal.Decimal, extraMeta map[string]string) (*schema.UniversalPaymentResponse, error) {
	started := time.Now()

	conv, err := converter.ForGateway(g)
	if err != nil {
		return nil, err
	}
	native, err := conv.Convert(*req)
	if err != nil {
		return nil, err
	}

	client, err := e.client(g, req.GatewayKeys)
	if err != nil {
		return nil, err
	}

	txn := &store.Transaction{
		TransactionID:  uuid.NewString(),
		Gateway:        g,
		Status:         schema.StatusPending,
		Amount:         req.Amount,
		Currency:       req.Currency,
		PaymentRequest: req,
	}
	if req.Customer != nil {
		txn.CustomerEmail = req.Customer.Email
	}
	if err := e.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	raw, attemptErr := e.submitWithRetry(ctx, client, native, txn)

	if attemptErr != nil {
		txn.Status = schema.StatusFailed
		txn.ErrorMessage = attemptErr.Error()
		txn.ErrorCode = errorCode(attemptErr)
		if err := e.store.Update(ctx, txn); err != nil {
			e.logger.Error("persist failed transaction", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
		}
		if e.router != nil {
			e.router.ReportFailure(g)
		}
		monitoring.RecordPayment(g.String(), schema.StatusFailed.String())
		monitoring.ObservePaymentDuration(g.String(), time.Since(started).Seconds())

		e.logger.Warn("payment failed",
			zap.String("transaction_id", txn.TransactionID),
			zap.String("gateway", g.String()),
			zap.Int("retry_count", txn.RetryCount),
			zap.Error(attemptErr),
		)
		var gwErr *schema.GatewayError
		if errors.As(attemptErr, &gwErr) {
			return nil, gwErr
		}
		return nil, schema.NewGatewayError(g, "payment failed", attemptErr)
	}

	norm := conv.Normalize(raw)
	txn.Status = norm.Status
	txn.GatewayTransactionID = norm.GatewayTransactionID
	txn.GatewayResponse = raw
	if err := e.store.Update(ctx, txn); err != nil {
		e.logger.Error("persist transaction result", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
	}

	if e.router != nil {
		if norm.Status == schema.StatusFailed {
			e.router.ReportFailure(g)
		} else {
			e.router.ReportSuccess(g)
		}
	}
	monitoring.RecordPayment(g.String(), norm.Status.String())
	monitoring.ObservePaymentDuration(g.String(), time.Since(started).Seconds())

	e.logger.Info("payment processed",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("gateway", g.String()),
		zap.String("status", norm.Status.String()),
		zap.Int("retry_count", txn.RetryCount),
	)

	if fee == nil && e.calc != nil {
		if f, ok := e.calc.Fee(g, req.Amount, router.CardBrand(req), router.International(req)); ok {
			fee = &f
		}
	}

	meta := req.Metadata
	if len(extraMeta) > 0 {
		meta = make(map[string]string, len(req.Metadata)+len(extraMeta))
		for k, v := range req.Metadata {
			meta[k] = v
		}
		for k, v := range extraMeta {
			meta[k] = v
		}
	}

	resp := &schema.UniversalPaymentResponse{
		TransactionID:        txn.TransactionID,
		Gateway:              g,
		Status:               norm.Status,
		Amount:               req.Amount,
		Currency:             req.Currency,
		GatewayTransactionID: norm.GatewayTransactionID,
		Fee:                  fee,
		Savings:              savings,
		Metadata:             meta,
		CreatedAt:            txn.CreatedAt,
	}
	return resp, nil
}

// submitWithRetry runs the gateway call with exponential backoff. Each
// attempt bumps the persisted retry count so a crashed process leaves an
// accurate record. Only transient errors are retried; everything else is
// wrapped as permanent and surfaced after the first attempt.
func (e *Engine) submitWithRetry(ctx context.Context, client gateway.Client, native schema.GatewayNativeRequest, txn *store.Transaction) (map[string]any, error) {
	var raw map[string]any

	op := func() error {
		txn.RetryCount++
		if err := e.store.Update(ctx, txn); err != nil {
			e.logger.Error("persist attempt count", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
		}
		monitoring.RecordAttempt(native.Gateway.String())

		result, err := client.ProcessPayment(ctx, native)
		if err == nil {
			raw = result
			return nil
		}

		if errors.Is(err, gateway.ErrNotSupported) {
			return backoff.Permanent(err)
		}
		if !isTransient(err) {
			return backoff.Permanent(schema.NewGatewayError(native.Gateway, "gateway rejected payment", err))
		}
		e.logger.Warn("transient gateway failure, will retry",
			zap.String("transaction_id", txn.TransactionID),
			zap.String("gateway", native.Gateway.String()),
			zap.Int("attempt", txn.RetryCount),
			zap.Error(err),
		)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialBackoff
	b.MaxInterval = e.retry.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.retry.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// client resolves the connector and applies a per-request API key override.
func (e *Engine) client(g schema.Gateway, overrides map[string]string) (gateway.Client, error) {
	client, err := e.registry.Client(g)
	if err != nil {
		return nil, err
	}
	if key, ok := overrides[g.String()]; ok && key != "" {
		client = client.WithAPIKey(key)
	}
	return client, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, gateway.ErrNotSupported):
		return "not_supported"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "gateway_error"
	}
}

// RefundPayment refunds a completed transaction, fully when the request
// amount is zero. The refund amount may never exceed what remains
// unrefunded.
func (e *Engine) RefundPayment(ctx context.Context, g schema.Gateway, req schema.RefundRequest) (*schema.RefundResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.RefundPayment")
	defer span.End()

	txn, err := e.store.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Gateway != g {
		return nil, schema.NewValidationError(fmt.Sprintf("transaction %s belongs to %s, not %s", txn.TransactionID, txn.Gateway, g))
	}
	if !txn.Status.Refundable() {
		return nil, schema.NewValidationError(fmt.Sprintf("cannot refund transaction in status %s", txn.Status))
	}

	remaining := txn.Amount.Sub(txn.RefundedAmount)
	amount := req.Amount
	if amount.IsZero() {
		amount = remaining
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, schema.NewValidationError("refund amount must be positive")
	}
	if amount.GreaterThan(remaining) {
		return nil, schema.NewValidationError(fmt.Sprintf("refund amount %s exceeds remaining refundable amount %s", amount.StringFixed(2), remaining.StringFixed(2)))
	}

	client, err := e.client(g, nil)
	if err != nil {
		return nil, err
	}
	raw, err := client.RefundPayment(ctx, txn.GatewayTransactionID, amount, txn.Currency, req.Reason, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return nil, schema.NewValidationError(fmt.Sprintf("%s does not support refunds", g))
		}
		return nil, schema.NewGatewayError(g, "refund failed", err)
	}

	txn.RefundedAmount = txn.RefundedAmount.Add(amount)
	if txn.RefundedAmount.GreaterThanOrEqual(txn.Amount) {
		txn.Status = schema.StatusRefunded
	} else {
		txn.Status = schema.StatusPartiallyRefunded
	}
	if err := e.store.Update(ctx, txn); err != nil {
		e.logger.Error("persist refund", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
	}

	e.logger.Info("refund processed",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("gateway", g.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", txn.Status.String()),
	)

	return &schema.RefundResponse{
		RefundID:        uuid.NewString(),
		TransactionID:   txn.TransactionID,
		Gateway:         g,
		Status:          txn.Status,
		Amount:          amount,
		Currency:        txn.Currency,
		GatewayRefundID: refundID(raw),
		Reason:          req.Reason,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// VoidPayment cancels an authorized, uncaptured payment.
func (e *Engine) VoidPayment(ctx context.Context, g schema.Gateway, transactionID string) (*schema.VoidResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.VoidPayment")
	defer span.End()

	txn, err := e.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Gateway != g {
		return nil, schema.NewValidationError(fmt.Sprintf("transaction %s belongs to %s, not %s", txn.TransactionID, txn.Gateway, g))
	}
	if txn.Status != schema.StatusAuthorized {
		return nil, schema.NewValidationError(fmt.Sprintf("cannot void transaction in status %s", txn.Status))
	}

	client, err := e.client(g, nil)
	if err != nil {
		return nil, err
	}
	raw, err := client.VoidPayment(ctx, txn.GatewayTransactionID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return nil, schema.NewValidationError(fmt.Sprintf("%s does not support voids", g))
		}
		return nil, schema.NewGatewayError(g, "void failed", err)
	}

	txn.Status = schema.StatusCancelled
	txn.GatewayResponse = raw
	if err := e.store.Update(ctx, txn); err != nil {
		e.logger.Error("persist void", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
	}

	return &schema.VoidResponse{
		TransactionID:   txn.TransactionID,
		Status:          schema.StatusCancelled,
		GatewayResponse: raw,
	}, nil
}

// CapturePayment completes an authorized payment. A zero request amount
// captures the full authorized amount.
func (e *Engine) CapturePayment(ctx context.Context, g schema.Gateway, req schema.CaptureRequest) (*schema.CaptureResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.CapturePayment")
	defer span.End()

	txn, err := e.store.Get(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn.Gateway != g {
		return nil, schema.NewValidationError(fmt.Sprintf("transaction %s belongs to %s, not %s", txn.TransactionID, txn.Gateway, g))
	}
	if txn.Status != schema.StatusAuthorized {
		return nil, schema.NewValidationError(fmt.Sprintf("cannot capture transaction in status %s", txn.Status))
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = txn.Amount
	}
	if amount.GreaterThan(txn.Amount) {
		return nil, schema.NewValidationError(fmt.Sprintf("capture amount %s exceeds authorized amount %s", amount.StringFixed(2), txn.Amount.StringFixed(2)))
	}

	client, err := e.client(g, nil)
	if err != nil {
		return nil, err
	}
	raw, err := client.CapturePayment(ctx, txn.GatewayTransactionID, amount, txn.Currency)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return nil, schema.NewValidationError(fmt.Sprintf("%s does not support delayed capture", g))
		}
		return nil, schema.NewGatewayError(g, "capture failed", err)
	}

	txn.Status = schema.StatusCompleted
	txn.GatewayResponse = raw
	if err := e.store.Update(ctx, txn); err != nil {
		e.logger.Error("persist capture", zap.Error(err), zap.String("transaction_id", txn.TransactionID))
	}

	return &schema.CaptureResponse{
		CaptureID:        uuid.NewString(),
		TransactionID:    txn.TransactionID,
		Gateway:          g,
		Status:           schema.StatusCompleted,
		Amount:           amount,
		Currency:         txn.Currency,
		GatewayCaptureID: refundID(raw),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// SetupRecurringPayment registers a subscription with the gateway. Billing
// cycle computation stays with the gateway; the engine records the schedule.
func (e *Engine) SetupRecurringPayment(ctx context.Context, g schema.Gateway, req schema.RecurringPaymentRequest) (*schema.RecurringPaymentResponse, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.SetupRecurringPayment")
	defer span.End()

	if err := req.PaymentRequest.Validate(); err != nil {
		return nil, err
	}

	client, err := e.client(g, req.PaymentRequest.GatewayKeys)
	if err != nil {
		return nil, err
	}
	raw, err := client.SetupRecurringPayment(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return nil, schema.NewValidationError(fmt.Sprintf("%s does not support recurring payments", g))
		}
		return nil, schema.NewGatewayError(g, "recurring setup failed", err)
	}

	subID := refundID(raw)
	if subID == "" {
		subID = uuid.NewString()
	}
	return &schema.RecurringPaymentResponse{
		SubscriptionID:  subID,
		Gateway:         g,
		Status:          "active",
		Schedule:        req.Schedule,
		NextPaymentDate: req.Schedule.StartDate,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// HandleWebhook verifies a gateway notification and applies the status it
// carries to the matching transaction. An event referencing a transaction we
// never saw is acknowledged and logged, not failed: gateways retry rejected
// webhooks aggressively.
func (e *Engine) HandleWebhook(ctx context.Context, g schema.Gateway, payload []byte, signature string) (*schema.WebhookResult, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "Engine.HandleWebhook")
	defer span.End()

	client, err := e.client(g, nil)
	if err != nil {
		return nil, err
	}
	valid, err := client.VerifyWebhook(ctx, payload, signature)
	if err != nil {
		return nil, schema.NewGatewayError(g, "webhook verification failed", err)
	}
	if !valid {
		return nil, schema.NewValidationError("invalid webhook signature")
	}

	var body map[string]any
	if err := sonic.Unmarshal(payload, &body); err != nil {
		return nil, schema.NewValidationError("malformed webhook payload")
	}

	eventID, eventType, object := extractEvent(g, body)
	result := &schema.WebhookResult{EventID: eventID, Status: "processed", EventType: eventType}

	if object == nil {
		e.logger.Info("webhook without transaction object acknowledged",
			zap.String("gateway", g.String()),
			zap.String("event_type", eventType),
		)
		result.Status = "ignored"
		return result, nil
	}

	conv, err := converter.ForGateway(g)
	if err != nil {
		return nil, err
	}
	norm := conv.Normalize(object)
	if norm.GatewayTransactionID == "" {
		result.Status = "ignored"
		return result, nil
	}

	txn, err := e.store.GetByGatewayTransactionID(ctx, norm.GatewayTransactionID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("webhook for unknown transaction acknowledged",
			zap.String("gateway", g.String()),
			zap.String("gateway_transaction_id", norm.GatewayTransactionID),
			zap.String("event_type", eventType),
		)
		result.Status = "ignored"
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	txn.Status = norm.Status
	txn.GatewayResponse = object
	if err := e.store.Update(ctx, txn); err != nil {
		return nil, fmt.Errorf("apply webhook status: %w", err)
	}

	e.logger.Info("webhook applied",
		zap.String("transaction_id", txn.TransactionID),
		zap.String("gateway", g.String()),
		zap.String("event_type", eventType),
		zap.String("status", norm.Status.String()),
	)
	return result, nil
}

// GetTransaction returns a stored transaction record.
func (e *Engine) GetTransaction(ctx context.Context, transactionID string) (*store.Transaction, error) {
	return e.store.Get(ctx, transactionID)
}

// ListTransactions returns stored transactions newest first.
func (e *Engine) ListTransactions(ctx context.Context, filter store.ListFilter) ([]*store.Transaction, error) {
	return e.store.List(ctx, filter)
}

// FeeComparison returns the fee breakdown across all configured gateways.
func (e *Engine) FeeComparison(amount decimal.Decimal, brand schema.CardBrand, international bool) (fees.Comparison, error) {
	return e.calc.Comparison(amount, brand, international)
}

// refundID digs the object ID out of a gateway response, handling both flat
// responses and envelopes like Square's {"refund": {...}}.
func refundID(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	if id, ok := raw["id"].(string); ok {
		return id
	}
	for _, key := range []string{"refund", "payment", "subscription"} {
		if inner, ok := raw[key].(map[string]any); ok {
			if id, ok := inner["id"].(string); ok {
				return id
			}
		}
	}
	return ""
}

// extractEvent pulls the event identity and transaction object out of a
// gateway's webhook envelope.
func extractEvent(g schema.Gateway, body map[string]any) (eventID, eventType string, object map[string]any) {
	str := func(v any) string {
		s, _ := v.(string)
		return s
	}
	obj := func(v any) map[string]any {
		m, _ := v.(map[string]any)
		return m
	}

	switch g {
	case schema.GatewayStripe:
		eventID = str(body["id"])
		eventType = str(body["type"])
		if data := obj(body["data"]); data != nil {
			object = obj(data["object"])
		}
	case schema.GatewayPayPal:
		eventID = str(body["id"])
		eventType = str(body["event_type"])
		object = obj(body["resource"])
	case schema.GatewaySquare:
		eventID = str(body["event_id"])
		eventType = str(body["type"])
		if data := obj(body["data"]); data != nil {
			if inner := obj(data["object"]); inner != nil {
				// Square nests the payment under data.object.payment.
				object = inner
			}
		}
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return eventID, eventType, object
}
