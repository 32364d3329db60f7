package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-adapter/internal/schema"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStructure_Fee_SquareExample(t *testing.T) {
	calc := DefaultCalculator()

	// 100.50 x 0.026 + 0.10 = 2.713 -> 2.71
	fee, ok := calc.Fee(schema.GatewaySquare, d("100.50"), schema.BrandVisa, false)
	require.True(t, ok)
	assert.True(t, fee.Equal(d("2.71")), "got %s", fee)
}

func TestStructure_Fee_AmexSurcharge(t *testing.T) {
	calc := DefaultCalculator()

	// Stripe: 100 x (0.029 + 0.005) + 0.30 = 3.70
	fee, ok := calc.Fee(schema.GatewayStripe, d("100"), schema.BrandAmex, false)
	require.True(t, ok)
	assert.True(t, fee.Equal(d("3.70")), "got %s", fee)
}

func TestStructure_Fee_InternationalSurcharge(t *testing.T) {
	calc := DefaultCalculator()

	// Stripe: 100 x (0.029 + 0.015) + 0.30 = 4.70
	fee, ok := calc.Fee(schema.GatewayStripe, d("100"), schema.BrandVisa, true)
	require.True(t, ok)
	assert.True(t, fee.Equal(d("4.70")), "got %s", fee)
}

func TestStructure_Fee_RoundsHalfUp(t *testing.T) {
	s := Structure{
		Gateway:       schema.GatewayStripe,
		PercentageFee: d("0.025"),
		FixedFee:      d("0"),
		Currency:      schema.CurrencyUSD,
	}
	// 10.10 x 0.025 = 0.2525 -> 0.25; 10.30 x 0.025 = 0.2575 -> 0.26
	assert.True(t, s.Fee(d("10.10"), schema.BrandVisa, false).Equal(d("0.25")))
	assert.True(t, s.Fee(d("10.30"), schema.BrandVisa, false).Equal(d("0.26")))
}

func TestCalculator_Gateways_SortedLexically(t *testing.T) {
	calc := DefaultCalculator()
	assert.Equal(t, []schema.Gateway{schema.GatewayPayPal, schema.GatewaySquare, schema.GatewayStripe}, calc.Gateways())
}

func TestCalculator_SelectCheapest(t *testing.T) {
	calc := DefaultCalculator()

	// Square is cheapest at default rates for a domestic visa payment.
	g, fee, allFees, err := calc.SelectCheapest(d("100.50"), schema.BrandVisa, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.GatewaySquare, g)
	assert.True(t, fee.Equal(d("2.71")), "got %s", fee)
	assert.Len(t, allFees, 3)
}

func TestCalculator_SelectCheapest_WeightsBiasButDoNotChangeFee(t *testing.T) {
	calc := DefaultCalculator()

	// A 0.60 penalty added to square's 2.71 puts it behind stripe's 3.21;
	// the returned fee must still be stripe's unweighted fee.
	weights := map[schema.Gateway]decimal.Decimal{
		schema.GatewaySquare: d("0.60"),
	}
	g, fee, _, err := calc.SelectCheapest(d("100.50"), schema.BrandVisa, false, nil, weights)
	require.NoError(t, err)
	assert.Equal(t, schema.GatewayStripe, g)

	unweighted, ok := calc.Fee(schema.GatewayStripe, d("100.50"), schema.BrandVisa, false)
	require.True(t, ok)
	assert.True(t, fee.Equal(unweighted))
}

func TestCalculator_SelectCheapest_NegativeWeightFavors(t *testing.T) {
	calc := DefaultCalculator()

	// -2.00 ranks paypal at 2.00, under square's 2.71; the returned fee is
	// still paypal's real 4.00.
	weights := map[schema.Gateway]decimal.Decimal{
		schema.GatewayPayPal: d("-2.00"),
	}
	g, fee, _, err := calc.SelectCheapest(d("100.50"), schema.BrandVisa, false, nil, weights)
	require.NoError(t, err)
	assert.Equal(t, schema.GatewayPayPal, g)
	assert.True(t, fee.Equal(d("4.00")), "got %s", fee)
}

func TestCalculator_SelectCheapest_TieBreaksLexically(t *testing.T) {
	flat := func(g schema.Gateway) Structure {
		return Structure{Gateway: g, PercentageFee: d("0.02"), FixedFee: d("0.10"), Currency: schema.CurrencyUSD}
	}
	calc := NewCalculator(flat(schema.GatewayStripe), flat(schema.GatewaySquare), flat(schema.GatewayPayPal))

	g, _, _, err := calc.SelectCheapest(d("50"), schema.BrandVisa, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.GatewayPayPal, g)
}

func TestCalculator_SelectCheapest_NoCandidates(t *testing.T) {
	calc := DefaultCalculator()
	_, _, _, err := calc.SelectCheapest(d("50"), schema.BrandVisa, false, []schema.Gateway{}, nil)
	var valErr *schema.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestCalculator_SelectCheapest_RestrictedToAvailable(t *testing.T) {
	calc := DefaultCalculator()
	g, _, allFees, err := calc.SelectCheapest(d("100"), schema.BrandVisa, false, []schema.Gateway{schema.GatewayStripe, schema.GatewayPayPal}, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.GatewayStripe, g)
	assert.NotContains(t, allFees, schema.GatewaySquare)
}

func TestCalculator_Comparison(t *testing.T) {
	calc := DefaultCalculator()

	cmp, err := calc.Comparison(d("100.50"), schema.BrandVisa, false)
	require.NoError(t, err)

	assert.Equal(t, schema.GatewaySquare, cmp.Recommendation.Gateway)
	assert.Len(t, cmp.Fees, 3)

	// Savings is measured against the most expensive gateway (paypal at
	// default rates: 100.50 x 0.0349 + 0.49 = 4.00).
	assert.Equal(t, schema.GatewayPayPal, cmp.Savings.VsGateway)
	assert.True(t, cmp.Savings.Amount.Equal(d("1.29")), "got %s", cmp.Savings.Amount)

	square := cmp.Fees[schema.GatewaySquare]
	assert.True(t, square.NetAmount.Equal(d("97.79")), "got %s", square.NetAmount)
}

func TestCalculator_Comparison_ZeroAmountRate(t *testing.T) {
	calc := NewCalculator(Structure{
		Gateway:       schema.GatewayStripe,
		PercentageFee: d("0.029"),
		FixedFee:      d("0.30"),
		Currency:      schema.CurrencyUSD,
	})
	cmp, err := calc.Comparison(decimal.Zero, schema.BrandVisa, false)
	require.NoError(t, err)
	assert.True(t, cmp.Fees[schema.GatewayStripe].EffectiveRate.IsZero())
}

func TestCalculator_UpdateStructure(t *testing.T) {
	calc := DefaultCalculator()
	pct := d("0.020")
	require.NoError(t, calc.UpdateStructure(schema.GatewayStripe, StructureUpdate{PercentageFee: &pct}))

	s, ok := calc.Structure(schema.GatewayStripe)
	require.True(t, ok)
	assert.True(t, s.PercentageFee.Equal(pct))
	// Untouched fields stay as they were.
	assert.True(t, s.FixedFee.Equal(d("0.30")))

	err := calc.UpdateStructure(schema.Gateway("adyen"), StructureUpdate{PercentageFee: &pct})
	assert.Error(t, err)
}
