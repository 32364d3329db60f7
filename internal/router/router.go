// Package router picks the cheapest healthy gateway for a payment.
package router

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/yourorg/payment-adapter/internal/fees"
	"github.com/yourorg/payment-adapter/internal/monitoring"
	"github.com/yourorg/payment-adapter/internal/policy"
	"github.com/yourorg/payment-adapter/internal/router/circuitbreaker"
	"github.com/yourorg/payment-adapter/internal/schema"
)

// Selection is the outcome of fee-optimized routing. Fee is the unweighted
// fee of the chosen gateway; AllFees holds the unweighted fee of every
// candidate so callers can report savings against the most expensive option.
type Selection struct {
	Gateway schema.Gateway
	Fee     decimal.Decimal
	AllFees map[schema.Gateway]decimal.Decimal
	// Skipped maps excluded gateways to the reason they were not candidates.
	Skipped map[schema.Gateway]string
}

// Router filters the configured gateways through circuit health and routing
// policy, then delegates fee comparison to the calculator.
type Router struct {
	calc     *fees.Calculator
	breaker  *circuitbreaker.CircuitBreaker
	enforcer *policy.Enforcer
	logger   *zap.Logger
}

func New(calc *fees.Calculator, breaker *circuitbreaker.CircuitBreaker, enforcer *policy.Enforcer, logger *zap.Logger) *Router {
	if calc == nil {
		panic("fee calculator cannot be nil")
	}
	if breaker == nil {
		panic("circuit breaker cannot be nil")
	}
	return &Router{calc: calc, breaker: breaker, enforcer: enforcer, logger: logger}
}

// Select returns the cheapest gateway allowed for the request. Preference
// weights bias the comparison without changing the reported fee. A request
// for which every gateway is vetoed or unhealthy returns a ValidationError.
func (r *Router) Select(req *schema.UniversalPaymentRequest, weights map[schema.Gateway]decimal.Decimal) (Selection, error) {
	profile := policy.Profile{
		Amount:        req.Amount,
		Currency:      req.Currency,
		CardBrand:     CardBrand(req),
		International: International(req),
	}

	skipped := make(map[schema.Gateway]string)
	candidates := make([]schema.Gateway, 0, 3)
	for _, g := range r.calc.Gateways() {
		if !r.breaker.IsHealthy(g) {
			skipped[g] = "circuit open"
			continue
		}
		if r.enforcer != nil {
			allowed, reason, err := r.enforcer.Allow(g, profile)
			if err != nil {
				return Selection{}, err
			}
			if !allowed {
				skipped[g] = "policy: " + reason
				continue
			}
		}
		candidates = append(candidates, g)
	}

	chosen, fee, allFees, err := r.calc.SelectCheapest(req.Amount, profile.CardBrand, profile.International, candidates, weights)
	if err != nil {
		return Selection{}, err
	}

	monitoring.RecordRoutingSelection(chosen.String())
	if r.logger != nil {
		r.logger.Info("gateway selected",
			zap.String("gateway", chosen.String()),
			zap.String("fee", fee.StringFixed(2)),
			zap.Int("skipped", len(skipped)),
		)
	}
	return Selection{Gateway: chosen, Fee: fee, AllFees: allFees, Skipped: skipped}, nil
}

// ReportSuccess feeds a completed payment back into the breaker.
func (r *Router) ReportSuccess(g schema.Gateway) { r.breaker.RecordSuccess(g) }

// ReportFailure feeds a failed payment back into the breaker.
func (r *Router) ReportFailure(g schema.Gateway) { r.breaker.RecordFailure(g) }

// CardBrand derives the brand used for fee surcharges from the token.
func CardBrand(req *schema.UniversalPaymentRequest) schema.CardBrand {
	if req.PaymentToken == nil {
		return schema.BrandUnknown
	}
	return schema.DetectCardBrand(req.PaymentToken.Token, req.PaymentToken.Brand)
}

// International reports whether the billing country is set and not US.
func International(req *schema.UniversalPaymentRequest) bool {
	if req.Customer == nil || req.Customer.Address == nil {
		return false
	}
	c := req.Customer.Address.Country
	return c != "" && c != "US"
}
