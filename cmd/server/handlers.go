package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yourorg/payment-adapter/internal/engine"
	"github.com/yourorg/payment-adapter/internal/reporting"
	"github.com/yourorg/payment-adapter/internal/schema"
	"github.com/yourorg/payment-adapter/internal/store"
)

type server struct {
	engine *engine.Engine
	logger *zap.Logger
}

// writeError maps domain errors onto HTTP statuses: authentication 401,
// validation and conversion 400, unknown transaction 404, upstream gateway
// failures 502, everything else 500.
func (s *server) writeError(c *gin.Context, err error) {
	var (
		authErr *schema.AuthenticationError
		valErr  *schema.ValidationError
		convErr *schema.ConversionError
		gwErr   *schema.GatewayError
	)
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Error()})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
	case errors.As(err, &convErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": convErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": gwErr.Error()})
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func parseGateway(c *gin.Context) (schema.Gateway, bool) {
	g := schema.Gateway(c.Param("gateway"))
	if !g.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown gateway: " + c.Param("gateway")})
		return "", false
	}
	return g, true
}

func (s *server) processPayment(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	var req schema.UniversalPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}

	resp, err := s.engine.ProcessPayment(c.Request.Context(), g, &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// optimizedRequest adds routing preferences to the canonical request. A
// weight is added to the gateway's fee when ranking: positive penalizes,
// negative favors.
type optimizedRequest struct {
	schema.UniversalPaymentRequest
	Preferences map[string]string `json:"preferences,omitempty"`
}

func (s *server) processOptimizedPayment(c *gin.Context) {
	var req optimizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}

	var weights map[schema.Gateway]decimal.Decimal
	if len(req.Preferences) > 0 {
		weights = make(map[schema.Gateway]decimal.Decimal, len(req.Preferences))
		for name, w := range req.Preferences {
			g := schema.Gateway(name)
			if !g.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown gateway in preferences: " + name})
				return
			}
			weight, err := decimal.NewFromString(w)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "preference weight for " + name + " must be a number"})
				return
			}
			weights[g] = weight
		}
	}

	resp, err := s.engine.ProcessOptimizedPayment(c.Request.Context(), &req.UniversalPaymentRequest, weights)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) refundPayment(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	var req schema.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}
	if req.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
		return
	}

	resp, err := s.engine.RefundPayment(c.Request.Context(), g, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) voidPayment(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	resp, err := s.engine.VoidPayment(c.Request.Context(), g, c.Param("transaction_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) capturePayment(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	var req schema.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}
	if req.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
		return
	}

	resp, err := s.engine.CapturePayment(c.Request.Context(), g, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) setupRecurringPayment(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	var req schema.RecurringPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format: " + err.Error()})
		return
	}

	resp, err := s.engine.SetupRecurringPayment(c.Request.Context(), g, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) handleWebhook(c *gin.Context) {
	g, ok := parseGateway(c)
	if !ok {
		return
	}
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable webhook body"})
		return
	}
	signature := c.GetHeader("X-Webhook-Signature")

	result, err := s.engine.HandleWebhook(c.Request.Context(), g, payload, signature)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *server) feeComparison(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive number"})
		return
	}
	brand := schema.DetectCardBrand("", c.Query("card_brand"))
	international := c.Query("is_international") == "true"

	comparison, err := s.engine.FeeComparison(amount, brand, international)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

func (s *server) getTransaction(c *gin.Context) {
	txn, err := s.engine.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (s *server) listTransactions(c *gin.Context) {
	filter := store.ListFilter{
		Gateway: schema.Gateway(c.Query("gateway")),
		Status:  schema.PaymentStatus(c.Query("status")),
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	txns, err := s.engine.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

func (s *server) transactionsSummary(c *gin.Context) {
	txns, err := s.engine.ListTransactions(c.Request.Context(), store.ListFilter{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reporting.Summarize(txns))
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
