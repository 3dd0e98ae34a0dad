package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "scan"
log_level = "debug"

[harvest]
min_loss_amount = 1000.0
order_timeout = "45s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1000.0, cfg.Harvest.MinLossAmount)
	assert.Equal(t, 45*time.Second, cfg.Harvest.OrderTimeout.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5.0, cfg.Harvest.MinLossPct)
	assert.Equal(t, 0.27, cfg.Harvest.TaxRate)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("TAXHARVEST_TAX_RATE", "0.35")
	t.Setenv("TAXHARVEST_BROKER_API_KEY", "env-key")
	t.Setenv("TAXHARVEST_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.35, cfg.Harvest.TaxRate)
	assert.Equal(t, "env-key", cfg.Broker.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestNormalizeUppercasesSymbols(t *testing.T) {
	a := AlternativesConfig{
		Symbols: map[string][]string{"spy": {"voo", "ivv"}},
		Sectors: map[string][]string{"Technology": {"xlk"}},
	}
	a.normalize()

	assert.Equal(t, []string{"VOO", "IVV"}, a.Symbols["SPY"])
	assert.Equal(t, []string{"XLK"}, a.Sectors["technology"])
}

func TestNormalizeClosesIdenticalSymmetrically(t *testing.T) {
	a := AlternativesConfig{
		Identical: map[string][]string{"VOO": {"vfiax"}},
	}
	a.normalize()

	assert.Contains(t, a.Identical["VOO"], "VFIAX")
	assert.Contains(t, a.Identical["VFIAX"], "VOO")
}
