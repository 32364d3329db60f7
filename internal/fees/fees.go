// Package fees implements the per-gateway cost model used for fee-optimized
// routing. The calculator owns its fee table explicitly: it is injected at
// construction and mutated only through UpdateStructure, never through a
// shared process-wide map.
package fees

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yourorg/payment-adapter/internal/schema"
)

var hundred = decimal.NewFromInt(100)

// Structure is the fee schedule for one gateway: a pure cost function of
// amount, card brand and whether the card is international.
type Structure struct {
	Gateway          schema.Gateway  `json:"gateway"`
	PercentageFee    decimal.Decimal `json:"percentage_fee"`
	FixedFee         decimal.Decimal `json:"fixed_fee"`
	AmexSurcharge    decimal.Decimal `json:"amex_surcharge"`
	InternationalFee decimal.Decimal `json:"international_fee"`
	Currency         schema.Currency `json:"currency"`
}

// Fee computes amount x (percentage + surcharges) + fixed, rounded to two
// decimal places half-up. Round here is half-away-from-zero, which equals
// half-up for the non-negative fees this produces; bankers' rounding must
// not be substituted.
func (s Structure) Fee(amount decimal.Decimal, brand schema.CardBrand, international bool) decimal.Decimal {
	pct := s.PercentageFee
	if brand == schema.BrandAmex {
		pct = pct.Add(s.AmexSurcharge)
	}
	if international {
		pct = pct.Add(s.InternationalFee)
	}
	return amount.Mul(pct).Add(s.FixedFee).Round(2)
}

// GatewayFees is one gateway's entry in a fee comparison.
type GatewayFees struct {
	Fee           decimal.Decimal `json:"fee"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}

// Recommendation names the cheapest gateway in a comparison.
type Recommendation struct {
	Gateway       schema.Gateway  `json:"gateway"`
	Fee           decimal.Decimal `json:"fee"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
}

// Savings quantifies the cheapest gateway against the most expensive one.
type Savings struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	VsGateway  schema.Gateway  `json:"vs_gateway"`
}

// Comparison is the full fee breakdown across all configured gateways.
type Comparison struct {
	Amount         decimal.Decimal                `json:"amount"`
	CardBrand      schema.CardBrand               `json:"card_brand"`
	International  bool                           `json:"is_international"`
	Fees           map[schema.Gateway]GatewayFees `json:"fees"`
	Recommendation Recommendation                 `json:"recommendation"`
	Savings        Savings                        `json:"savings"`
}

// Calculator compares gateway fees and selects the cheapest gateway. Safe
// for concurrent use.
type Calculator struct {
	mu         sync.RWMutex
	structures map[schema.Gateway]Structure
}

// NewCalculator builds a calculator from explicit fee structures.
func NewCalculator(structures ...Structure) *Calculator {
	m := make(map[schema.Gateway]Structure, len(structures))
	for _, s := range structures {
		m[s.Gateway] = s
	}
	return &Calculator{structures: m}
}

// DefaultCalculator uses the standard published rates for each gateway.
// Deployments with negotiated rates override these via configuration.
func DefaultCalculator() *Calculator {
	return NewCalculator(
		Structure{
			Gateway:          schema.GatewayStripe,
			PercentageFee:    decimal.RequireFromString("0.029"),
			FixedFee:         decimal.RequireFromString("0.30"),
			AmexSurcharge:    decimal.RequireFromString("0.005"),
			InternationalFee: decimal.RequireFromString("0.015"),
			Currency:         schema.CurrencyUSD,
		},
		Structure{
			Gateway:          schema.GatewaySquare,
			PercentageFee:    decimal.RequireFromString("0.026"),
			FixedFee:         decimal.RequireFromString("0.10"),
			AmexSurcharge:    decimal.Zero,
			InternationalFee: decimal.RequireFromString("0.01"),
			Currency:         schema.CurrencyUSD,
		},
		Structure{
			Gateway:          schema.GatewayPayPal,
			PercentageFee:    decimal.RequireFromString("0.0349"),
			FixedFee:         decimal.RequireFromString("0.49"),
			AmexSurcharge:    decimal.Zero,
			InternationalFee: decimal.RequireFromString("0.0149"),
			Currency:         schema.CurrencyUSD,
		},
	)
}

// Structure returns the fee schedule for one gateway.
func (c *Calculator) Structure(g schema.Gateway) (Structure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.structures[g]
	return s, ok
}

// Gateways returns the configured gateways in lexical order. Selection
// tie-breaks depend on this ordering.
func (c *Calculator) Gateways() []schema.Gateway {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]schema.Gateway, 0, len(c.structures))
	for g := range c.structures {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fee computes the fee one gateway would charge for the transaction profile.
func (c *Calculator) Fee(g schema.Gateway, amount decimal.Decimal, brand schema.CardBrand, international bool) (decimal.Decimal, bool) {
	c.mu.RLock()
	s, ok := c.structures[g]
	c.mu.RUnlock()
	if !ok {
		return decimal.Zero, false
	}
	return s.Fee(amount, brand, international), true
}

// ForAllGateways computes the fee every configured, available gateway would
// charge. A nil available slice means all configured gateways.
func (c *Calculator) ForAllGateways(amount decimal.Decimal, brand schema.CardBrand, international bool, available []schema.Gateway) map[schema.Gateway]decimal.Decimal {
	if available == nil {
		available = c.Gateways()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	fees := make(map[schema.Gateway]decimal.Decimal, len(available))
	for _, g := range available {
		s, ok := c.structures[g]
		if !ok {
			continue
		}
		fees[g] = s.Fee(amount, brand, international)
	}
	return fees
}

// SelectCheapest returns the gateway with the lowest fee for the profile.
// Preference weights are added to a gateway's fee for ranking only; a
// positive weight penalizes the gateway, a negative one favors it. The
// returned fee is always the original unweighted one. Ties break lexically
// by gateway name.
func (c *Calculator) SelectCheapest(
	amount decimal.Decimal,
	brand schema.CardBrand,
	international bool,
	available []schema.Gateway,
	weights map[schema.Gateway]decimal.Decimal,
) (schema.Gateway, decimal.Decimal, map[schema.Gateway]decimal.Decimal, error) {
	fees := c.ForAllGateways(amount, brand, international, available)
	if len(fees) == 0 {
		return "", decimal.Zero, nil, schema.NewValidationError("no available gateways for fee calculation")
	}

	ordered := make([]schema.Gateway, 0, len(fees))
	for g := range fees {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var cheapest schema.Gateway
	var cheapestAdjusted decimal.Decimal
	for i, g := range ordered {
		adjusted := fees[g]
		if w, ok := weights[g]; ok {
			adjusted = adjusted.Add(w)
		}
		if i == 0 || adjusted.LessThan(cheapestAdjusted) {
			cheapest = g
			cheapestAdjusted = adjusted
		}
	}
	return cheapest, fees[cheapest], fees, nil
}

// Comparison reports the fee of every gateway, the recommended (cheapest)
// one, and the savings versus the most expensive alternative. A zero amount
// yields an effective rate of zero rather than a division error.
func (c *Calculator) Comparison(amount decimal.Decimal, brand schema.CardBrand, international bool) (Comparison, error) {
	fees := c.ForAllGateways(amount, brand, international, nil)
	if len(fees) == 0 {
		return Comparison{}, schema.NewValidationError("no gateways configured")
	}

	effectiveRate := func(fee decimal.Decimal) decimal.Decimal {
		if amount.IsZero() {
			return decimal.Zero
		}
		return fee.Div(amount).Mul(hundred)
	}

	cmp := Comparison{
		Amount:        amount,
		CardBrand:     brand,
		International: international,
		Fees:          make(map[schema.Gateway]GatewayFees, len(fees)),
	}

	ordered := make([]schema.Gateway, 0, len(fees))
	for g := range fees {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	cheapest, mostExpensive := ordered[0], ordered[0]
	for _, g := range ordered {
		fee := fees[g]
		cmp.Fees[g] = GatewayFees{
			Fee:           fee,
			EffectiveRate: effectiveRate(fee),
			NetAmount:     amount.Sub(fee),
		}
		if fee.LessThan(fees[cheapest]) {
			cheapest = g
		}
		if fee.GreaterThan(fees[mostExpensive]) {
			mostExpensive = g
		}
	}

	cmp.Recommendation = Recommendation{
		Gateway:       cheapest,
		Fee:           fees[cheapest],
		EffectiveRate: effectiveRate(fees[cheapest]),
	}

	saved := fees[mostExpensive].Sub(fees[cheapest])
	savedPct := decimal.Zero
	if fees[mostExpensive].IsPositive() {
		savedPct = saved.Div(fees[mostExpensive]).Mul(hundred)
	}
	cmp.Savings = Savings{
		Amount:     saved,
		Percentage: savedPct,
		VsGateway:  mostExpensive,
	}
	return cmp, nil
}

// StructureUpdate carries the fields of a fee schedule to change; nil fields
// keep their current value.
type StructureUpdate struct {
	PercentageFee    *decimal.Decimal
	FixedFee         *decimal.Decimal
	AmexSurcharge    *decimal.Decimal
	InternationalFee *decimal.Decimal
}

// UpdateStructure replaces parts of a gateway's fee schedule, e.g. after
// negotiating better rates. This is the only mutation path into the table.
func (c *Calculator) UpdateStructure(g schema.Gateway, update StructureUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.structures[g]
	if !ok {
		return schema.NewValidationError("gateway " + g.String() + " not found in fee structures")
	}
	if update.PercentageFee != nil {
		current.PercentageFee = *update.PercentageFee
	}
	if update.FixedFee != nil {
		current.FixedFee = *update.FixedFee
	}
	if update.AmexSurcharge != nil {
		current.AmexSurcharge = *update.AmexSurcharge
	}
	if update.InternationalFee != nil {
		current.InternationalFee = *update.InternationalFee
	}
	c.structures[g] = current
	return nil
}
