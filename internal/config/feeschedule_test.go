package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-adapter/internal/schema"
)

func writeSchedule(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fees.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFeeSchedule_EmptyPathUsesDefaults(t *testing.T) {
	calc, err := LoadFeeSchedule("")
	require.NoError(t, err)
	assert.Len(t, calc.Gateways(), 3)
}

func TestLoadFeeSchedule_OverridesRates(t *testing.T) {
	path := writeSchedule(t, `{
		"gateways": [
			{"gateway": "stripe", "percentage_fee": "0.020", "fixed_fee": "0.25"},
			{"gateway": "square", "percentage_fee": "0.024", "fixed_fee": "0.10", "amex_surcharge": "0.002"}
		]
	}`)

	calc, err := LoadFeeSchedule(path)
	require.NoError(t, err)
	assert.Len(t, calc.Gateways(), 2)

	s, ok := calc.Structure(schema.GatewayStripe)
	require.True(t, ok)
	assert.True(t, s.PercentageFee.Equal(decimal.RequireFromString("0.020")))
	assert.Equal(t, schema.CurrencyUSD, s.Currency)
}

func TestLoadFeeSchedule_RejectsUnknownGateway(t *testing.T) {
	path := writeSchedule(t, `{"gateways": [{"gateway": "adyen", "percentage_fee": "0.02", "fixed_fee": "0.10"}]}`)
	_, err := LoadFeeSchedule(path)
	assert.Error(t, err)
}

func TestLoadFeeSchedule_RejectsMissingFields(t *testing.T) {
	path := writeSchedule(t, `{"gateways": [{"gateway": "stripe"}]}`)
	_, err := LoadFeeSchedule(path)
	assert.Error(t, err)
}

func TestLoadFeeSchedule_MissingFile(t *testing.T) {
	_, err := LoadFeeSchedule(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "https://api.stripe.com", cfg.Gateways.Stripe.BaseURL)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_INITIAL_BACKOFF", "500ms")
	t.Setenv("CACHE_ENABLED", "true")

	cfg := NewConfig()
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "500ms", cfg.Retry.InitialBackoff.String())
	assert.True(t, cfg.Cache.Enabled)
}
