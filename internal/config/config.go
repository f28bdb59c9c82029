package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/currency"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// MaxFocusAreas bounds the number of user-nameable focus areas a search can
// configure for review analysis.
const MaxFocusAreas = 5

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig holds listing-platform API settings.
type SourceConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds LLM API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SearchConfig describes one search context: the target area, the stay dates,
// and the listing filters applied to discovery results.
type SearchConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	CheckIn  string `yaml:"check_in" mapstructure:"check_in"`
	CheckOut string `yaml:"check_out" mapstructure:"check_out"`

	NELat float64 `yaml:"ne_lat" mapstructure:"ne_lat"`
	NELng float64 `yaml:"ne_lng" mapstructure:"ne_lng"`
	SWLat float64 `yaml:"sw_lat" mapstructure:"sw_lat"`
	SWLng float64 `yaml:"sw_lng" mapstructure:"sw_lng"`

	Currency  string  `yaml:"currency" mapstructure:"currency"`
	MinPrice  float64 `yaml:"min_price" mapstructure:"min_price"`
	MaxPrice  float64 `yaml:"max_price" mapstructure:"max_price"`
	Occupants int     `yaml:"occupants" mapstructure:"occupants"`

	// CurrencyRates maps ISO currency codes to their value in the search
	// currency, used by the diff engine to normalize price comparisons.
	CurrencyRates map[string]float64 `yaml:"currency_rates" mapstructure:"currency_rates"`
}

// RootTile returns the search area as the discovery root tile.
func (s SearchConfig) RootTile() model.GeoTile {
	return model.GeoTile{
		NorthLat: s.NELat,
		SouthLat: s.SWLat,
		EastLng:  s.NELng,
		WestLng:  s.SWLng,
	}
}

// DiscoveryConfig tunes the tiling engine.
type DiscoveryConfig struct {
	// ResultCap is the per-tile-query result cap imposed by the source. A
	// returned count at or above the cap is treated as saturated.
	ResultCap int `yaml:"result_cap" mapstructure:"result_cap"`

	// MinTileSpanDeg is the subdivision floor in degrees. A saturated tile at
	// or below the floor is accepted best-effort and flagged.
	MinTileSpanDeg float64 `yaml:"min_tile_span_deg" mapstructure:"min_tile_span_deg"`

	Workers     int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AnalysisConfig tunes the AI review pipeline.
type AnalysisConfig struct {
	// FocusAreas are the user-named criteria the summary and rating prompts
	// enumerate, at most MaxFocusAreas of them.
	FocusAreas []string `yaml:"focus_areas" mapstructure:"focus_areas"`

	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`

	RatingMin float64 `yaml:"rating_min" mapstructure:"rating_min"`
	RatingMax float64 `yaml:"rating_max" mapstructure:"rating_max"`

	// SummaryPrompt and RatingPrompt are the role prompts; the focus areas
	// are enumerated into each by position. PromptVersion participates in the
	// review-cache key, so bumping it invalidates prior results.
	SummaryPrompt string `yaml:"summary_prompt" mapstructure:"summary_prompt"`
	RatingPrompt  string `yaml:"rating_prompt" mapstructure:"rating_prompt"`
	PromptVersion string `yaml:"prompt_version" mapstructure:"prompt_version"`

	Workers     int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// TimeoutSecs bounds one listing's whole analysis (fetch, summarize,
	// rate). Individual HTTP calls carry the client's own timeout.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the snapshot/result store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only output API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STAYSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stayscope.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.requests_per_sec", 2.0)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("search.currency", "EUR")
	v.SetDefault("search.min_price", 0)
	v.SetDefault("search.max_price", 5000)
	v.SetDefault("search.occupants", 1)
	v.SetDefault("discovery.result_cap", 50)
	v.SetDefault("discovery.min_tile_span_deg", 0.005)
	v.SetDefault("discovery.workers", 4)
	v.SetDefault("discovery.max_attempts", 3)
	v.SetDefault("analysis.max_tokens", 500)
	v.SetDefault("analysis.temperature", 0.1)
	v.SetDefault("analysis.rating_min", 1)
	v.SetDefault("analysis.rating_max", 5)
	v.SetDefault("analysis.prompt_version", "v1")
	v.SetDefault("analysis.workers", 5)
	v.SetDefault("analysis.max_attempts", 3)
	v.SetDefault("analysis.timeout_secs", 60)
	v.SetDefault("analysis.focus_areas", []string{
		"Transportation",
		"Bathroom and hot water",
		"Sleeping arrangements",
		"Cleanliness",
		"Unexpected points",
	})
	v.SetDefault("analysis.summary_prompt",
		"You are a review summarizer specializing in extracting concise, focused summaries "+
			"from guest reviews. Summarize the reviews by categorizing feedback into the listed "+
			"areas, providing 1 or 2 bullet points for each. Each bullet point should be succinct "+
			"and convey only essential information.")
	v.SetDefault("analysis.rating_prompt",
		"You are an expert rating analyst. Provide a numerical rating for the text you are "+
			"given, judged against the listed criteria. A lack of specific mentions should lower "+
			"the rating.")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration before any network call is made. A
// validation failure is fatal to the run.
func (c *Config) Validate() error {
	if !c.Search.RootTile().Valid() {
		return eris.New("config: search bounding box must have ne above/east of sw")
	}
	if c.Search.MinPrice < 0 || c.Search.MaxPrice <= c.Search.MinPrice {
		return eris.Errorf("config: invalid price range %.2f..%.2f", c.Search.MinPrice, c.Search.MaxPrice)
	}
	if _, err := currency.ParseISO(c.Search.Currency); err != nil {
		return eris.Wrapf(err, "config: currency %q", c.Search.Currency)
	}
	for code := range c.Search.CurrencyRates {
		if _, err := currency.ParseISO(code); err != nil {
			return eris.Wrapf(err, "config: currency rate code %q", code)
		}
	}
	if c.Discovery.ResultCap <= 0 {
		return eris.New("config: discovery result cap must be positive")
	}
	if c.Discovery.MinTileSpanDeg <= 0 {
		return eris.New("config: discovery min tile span must be positive")
	}
	if len(c.Analysis.FocusAreas) == 0 || len(c.Analysis.FocusAreas) > MaxFocusAreas {
		return eris.Errorf("config: between 1 and %d focus areas required, got %d",
			MaxFocusAreas, len(c.Analysis.FocusAreas))
	}
	for i, f := range c.Analysis.FocusAreas {
		if strings.TrimSpace(f) == "" {
			return eris.Errorf("config: focus area %d is empty", i+1)
		}
	}
	if c.Analysis.RatingMax <= c.Analysis.RatingMin {
		return eris.Errorf("config: invalid rating bounds %.1f..%.1f",
			c.Analysis.RatingMin, c.Analysis.RatingMax)
	}
	if c.Anthropic.Model == "" {
		return eris.New("config: anthropic model is required")
	}
	if c.Analysis.PromptVersion == "" {
		return eris.New("config: analysis prompt version is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
