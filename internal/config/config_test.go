package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServerConfig() Config {
	cfg := Defaults()
	cfg.Broker.APIKey = "key"
	cfg.Broker.APISecret = "secret"
	return cfg
}

func TestDefaultsValidateInScanMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "scan" // no broker credentials needed
	require.NoError(t, cfg.Validate())
}

func TestDefaultsCarryThresholds(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 500.0, cfg.Harvest.MinLossAmount)
	assert.Equal(t, 5.0, cfg.Harvest.MinLossPct)
	assert.Equal(t, 0.27, cfg.Harvest.TaxRate)
	assert.Equal(t, 30, cfg.Harvest.WashSaleWindowDays)
	assert.Contains(t, cfg.Alternatives.Symbols["SPY"], "VOO")
}

func TestValidateRequiresBrokerCredentialsInServerMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "server"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validServerConfig()
	cfg.Mode = "bogus"
	cfg.Harvest.TaxRate = 1.5
	cfg.Harvest.MinLossAmount = -1
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "tax_rate")
	assert.Contains(t, msg, "min_loss_amount")
	assert.Contains(t, msg, "redis: addr")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n"), 3)
}

func TestValidateRejectsBadPercentage(t *testing.T) {
	for _, pct := range []float64{0, -5, 100, 250} {
		cfg := validServerConfig()
		cfg.Harvest.MinLossPct = pct
		assert.Error(t, cfg.Validate(), "pct=%v", pct)
	}
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := validServerConfig()
	cfg.S3.Enabled = false
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	assert.Error(t, cfg.Validate())
}
