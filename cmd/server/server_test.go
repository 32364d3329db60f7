package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/payment-adapter/internal/engine"
	"github.com/yourorg/payment-adapter/internal/fees"
	"github.com/yourorg/payment-adapter/internal/gateway"
	"github.com/yourorg/payment-adapter/internal/gateway/mock"
	"github.com/yourorg/payment-adapter/internal/policy"
	"github.com/yourorg/payment-adapter/internal/router"
	"github.com/yourorg/payment-adapter/internal/router/circuitbreaker"
	"github.com/yourorg/payment-adapter/internal/schema"
	"github.com/yourorg/payment-adapter/internal/store"
)

const testAPIKey = "test-api-key"

type testApp struct {
	router *gin.Engine
	stripe *mock.Client
	square *mock.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := &testApp{
		stripe: mock.New(schema.GatewayStripe),
		square: mock.New(schema.GatewaySquare),
	}
	registry := gateway.NewRegistry(app.stripe, mock.New(schema.GatewayPayPal), app.square)

	enforcer, err := policy.NewEnforcer(nil)
	require.NoError(t, err)
	calc := fees.DefaultCalculator()
	rt := router.New(calc, circuitbreaker.New(), enforcer, zap.NewNop())

	eng := engine.New(registry, store.NewMemoryStore(), calc, rt, engine.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, zap.NewNop())

	srv := &server{engine: eng, logger: zap.NewNop()}

	r := gin.New()
	r.GET("/health", srv.health)
	r.POST("/webhook/:gateway", srv.handleWebhook)

	authed := r.Group("/", apiKeyAuth(testAPIKey))
	authed.POST("/process/:gateway", srv.processPayment)
	authed.POST("/process-optimized", srv.processOptimizedPayment)
	authed.POST("/refund/:gateway", srv.refundPayment)
	authed.POST("/void/:gateway/:transaction_id", srv.voidPayment)
	authed.POST("/capture/:gateway", srv.capturePayment)
	authed.POST("/recurring/:gateway", srv.setupRecurringPayment)
	authed.GET("/fee-comparison", srv.feeComparison)
	authed.GET("/transactions", srv.listTransactions)
	authed.GET("/transactions/summary", srv.transactionsSummary)
	authed.GET("/transactions/:id", srv.getTransaction)

	app.router = r
	return app
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := make(map[string]any)
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const paymentBody = `{
	"amount": "100.50",
	"currency": "USD",
	"payment_method": "card",
	"payment_token": {"token": "tok_visa_123"},
	"customer": {"email": "jane@example.com", "name": "Jane Doe"}
}`

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/process/stripe", strings.NewReader(paymentBody))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/process/stripe", strings.NewReader(paymentBody))
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProcessPayment(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/process/stripe", paymentBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "stripe", body["gateway"])
	assert.NotEmpty(t, body["transaction_id"])
	assert.Equal(t, "3.21", body["fee"])
}

func TestProcessPayment_UnknownGateway(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/process/adyen", paymentBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessPayment_ValidationError(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/process/stripe", `{
		"amount": "-5", "currency": "USD", "payment_method": "card",
		"payment_token": {"token": "tok_1"}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessPayment_GatewayFailure(t *testing.T) {
	app := newTestApp(t)
	app.stripe.ProcessFunc = func(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
		return nil, errors.New("HTTP 402: card declined")
	}

	w := app.do(t, http.MethodPost, "/process/stripe", paymentBody)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProcessOptimizedPayment(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/process-optimized", paymentBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "square", body["gateway"])
	assert.Equal(t, "2.71", body["fee"])
	assert.Equal(t, "1.29", body["savings"])

	meta, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3.21", meta["fee_stripe"])
	assert.Equal(t, "4.00", meta["fee_paypal"])
}

func TestProcessOptimizedPayment_BadPreferenceWeight(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/process-optimized", `{
		"amount": "10", "currency": "USD", "payment_method": "card",
		"payment_token": {"token": "tok_1"},
		"preferences": {"square": "cheap"}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefundFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/process/stripe", paymentBody)
	require.Equal(t, http.StatusOK, w.Code)
	txnID := decode(t, w)["transaction_id"].(string)

	w = app.do(t, http.MethodPost, "/refund/stripe", `{"transaction_id": "`+txnID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "refunded", decode(t, w)["status"])

	// A fully refunded transaction rejects further refunds.
	w = app.do(t, http.MethodPost, "/refund/stripe", `{"transaction_id": "`+txnID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefund_UnknownTransaction(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/refund/stripe", `{"transaction_id": "missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoidAndCaptureFlow(t *testing.T) {
	app := newTestApp(t)
	app.square.ProcessFunc = func(ctx context.Context, req schema.GatewayNativeRequest) (map[string]any, error) {
		return map[string]any{"payment": map[string]any{"id": "sq_1", "status": "APPROVED"}}, nil
	}

	w := app.do(t, http.MethodPost, "/process/square", paymentBody)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)
	require.Equal(t, "authorized", first["status"])
	txnID := first["transaction_id"].(string)

	w = app.do(t, http.MethodPost, "/capture/square", `{"transaction_id": "`+txnID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode(t, w)["status"])

	// Captured payments cannot be voided.
	w = app.do(t, http.MethodPost, "/void/square/"+txnID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeComparison(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/fee-comparison?amount=100.50&card_brand=visa", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	rec := body["recommendation"].(map[string]any)
	assert.Equal(t, "square", rec["gateway"])

	w = app.do(t, http.MethodGet, "/fee-comparison?amount=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTransactionsAndSummary(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/process/stripe", paymentBody).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/process/square", paymentBody).Code)

	w := app.do(t, http.MethodGet, "/transactions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = app.do(t, http.MethodGet, "/transactions?gateway=stripe", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = app.do(t, http.MethodGet, "/transactions/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)
	assert.EqualValues(t, 2, summary["total_transactions"])
}

func TestGetTransaction(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/process/stripe", paymentBody)
	require.Equal(t, http.StatusOK, w.Code)
	txnID := decode(t, w)["transaction_id"].(string)

	w = app.do(t, http.MethodGet, "/transactions/"+txnID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, txnID, decode(t, w)["transaction_id"])

	w = app.do(t, http.MethodGet, "/transactions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_NoAPIKeyRequired(t *testing.T) {
	app := newTestApp(t)

	payload := `{"id": "evt_1", "type": "charge.succeeded", "data": {"object": {"id": "ch_x", "status": "succeeded"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(payload))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ignored", decode(t, w)["status"])
}

func TestWebhook_InvalidSignature(t *testing.T) {
	app := newTestApp(t)
	app.stripe.VerifyFunc = func(ctx context.Context, payload []byte, signature string) (bool, error) {
		return false, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecurring(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/recurring/square", `{
		"subscription_name": "pro-plan",
		"payment_request": `+paymentBody+`,
		"schedule": {"frequency": "monthly", "start_date": "2026-09-01T00:00:00Z"}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotEmpty(t, body["subscription_id"])
	assert.Equal(t, "active", body["status"])
}
