package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Anthropic: AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
		Search: SearchConfig{
			Name:     "rome-center",
			NELat:    41.95,
			NELng:    12.55,
			SWLat:    41.80,
			SWLng:    12.40,
			Currency: "EUR",
			MinPrice: 0,
			MaxPrice: 5000,
			CurrencyRates: map[string]float64{
				"USD": 0.92,
			},
		},
		Discovery: DiscoveryConfig{ResultCap: 50, MinTileSpanDeg: 0.005},
		Analysis: AnalysisConfig{
			FocusAreas:    []string{"Cleanliness"},
			RatingMin:     1,
			RatingMax:     5,
			PromptVersion: "v1",
		},
		Store: StoreConfig{Driver: "sqlite"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_BoundingBox(t *testing.T) {
	cfg := validConfig()
	cfg.Search.NELat = cfg.Search.SWLat - 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_PriceRange(t *testing.T) {
	cfg := validConfig()
	cfg.Search.MaxPrice = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Search.MinPrice = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_Currency(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Currency = "EURO"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Search.CurrencyRates = map[string]float64{"NOPE": 1}
	assert.Error(t, cfg.Validate())
}

func TestValidate_Discovery(t *testing.T) {
	cfg := validConfig()
	cfg.Discovery.ResultCap = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Discovery.MinTileSpanDeg = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_FocusAreas(t *testing.T) {
	cfg := validConfig()
	cfg.Analysis.FocusAreas = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Analysis.FocusAreas = []string{"a", "b", "c", "d", "e", "f"}
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Analysis.FocusAreas = []string{"Cleanliness", "   "}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RatingBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Analysis.RatingMin = 5
	cfg.Analysis.RatingMax = 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_Driver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 50, cfg.Discovery.ResultCap)
	assert.Equal(t, 0.005, cfg.Discovery.MinTileSpanDeg)
	assert.Equal(t, "EUR", cfg.Search.Currency)
	assert.Equal(t, 5000.0, cfg.Search.MaxPrice)
	assert.Equal(t, int64(500), cfg.Analysis.MaxTokens)
	assert.Equal(t, 0.1, cfg.Analysis.Temperature)
	assert.Equal(t, 1.0, cfg.Analysis.RatingMin)
	assert.Equal(t, 5.0, cfg.Analysis.RatingMax)
	assert.Len(t, cfg.Analysis.FocusAreas, 5)
	assert.Equal(t, "v1", cfg.Analysis.PromptVersion)
}
