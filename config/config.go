package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// JWTSecret used to sign tokens — read from env or fallback
var JWTSecret = []byte(getEnv("JWT_SECRET", "eateateat_super_secret_2026"))

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Config holds the pipeline and server settings. Defaults are compiled in,
// a YAML file overrides them, and a few env vars override the file.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	Port         string `yaml:"port"`

	// Search cross-product: every (term × location) maps to one cached call.
	SearchTerms []string `yaml:"search_terms"`
	Locations   []string `yaml:"locations"`

	// Quality thresholds
	MinRating      float64 `yaml:"min_rating"`
	MinRatingCount int     `yaml:"min_rating_count"`

	// Quotas and freshness
	DailyEnrichLimit int `yaml:"daily_enrich_limit"`
	SearchTTLDays    int `yaml:"search_ttl_days"` // re-run searches older than this
	VerifyTTLDays    int `yaml:"verify_ttl_days"` // re-verify complete entries older than this

	// Provider settings
	SearchLanguage string `yaml:"search_language"`
	SearchCountry  string `yaml:"search_country"`
	ResultsPerCall int    `yaml:"results_per_call"`

	// Pacing between external calls, and recommender snapshot freshness.
	PaceMillis          int `yaml:"pace_millis"`
	CandidateTTLSeconds int `yaml:"candidate_ttl_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabasePath: "eateateat.db",
		Port:         "8080",
		SearchTerms: []string{
			"Specialty Coffee", "Brunch", "Wine Bar", "Bodega", "Vermuteria",
			"Restaurant", "Chiringuito", "Tapas modern", "Farm to table",
			"Rooftop bar", "Boutique hotel restaurant", "Sommelier",
			"Open kitchen", "Romantic terrace", "Great view Restaurant",
		},
		Locations: []string{
			"Mallorca", "Palma de Mallorca", "Portixol, Palma de Mallorca",
			"Santa Catalina, Palma de Mallorca", "Sóller, Mallorca",
			"Pollença, Mallorca",
		},
		MinRating:           4.5,
		MinRatingCount:      100,
		DailyEnrichLimit:    500,
		SearchTTLDays:       182,
		VerifyTTLDays:       730,
		SearchLanguage:      "de",
		SearchCountry:       "es",
		ResultsPerCall:      20,
		PaceMillis:          500,
		CandidateTTLSeconds: 300,
	}
}

// Load reads the YAML config file at path (if it exists) over the defaults,
// then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DailyEnrichLimit = getEnvInt("DAILY_ENRICH_LIMIT", cfg.DailyEnrichLimit)
	return cfg, nil
}

// SearchTTL returns the search freshness window as a duration.
func (c *Config) SearchTTL() time.Duration {
	return time.Duration(c.SearchTTLDays) * 24 * time.Hour
}

// VerifyTTL returns the re-verification window as a duration.
func (c *Config) VerifyTTL() time.Duration {
	return time.Duration(c.VerifyTTLDays) * 24 * time.Hour
}

// Pace returns the minimum delay between consecutive external calls.
func (c *Config) Pace() time.Duration {
	return time.Duration(c.PaceMillis) * time.Millisecond
}

// CandidateTTL returns how long the recommender may serve a stale snapshot.
func (c *Config) CandidateTTL() time.Duration {
	return time.Duration(c.CandidateTTLSeconds) * time.Second
}
