// Package config loads regstock configuration from a YAML file with
// environment variable overrides. The industry mapping tables and the
// employment share vector are configuration, not code, and are
// validated before any run can start.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/regstock/internal/aggregate"
	"github.com/dgallion1/regstock/internal/count"
	"github.com/dgallion1/regstock/internal/industry"
)

type Config struct {
	Port   string `yaml:"port"`
	APIKey string `yaml:"api_key"`

	DBPath string `yaml:"db_path"`
	// CorpusDir holds pre-downloaded document files named
	// <register_id>.<ext>; documents found there are not re-fetched.
	CorpusDir string `yaml:"corpus_dir"`
	// IndicatorsPath is an ABS indicator CSV snapshot. Optional: the
	// index pass runs on internal series alone when it is absent.
	IndicatorsPath string `yaml:"indicators_path"`
	ReportDir      string `yaml:"report_dir"`

	RegisterAPIURL  string `yaml:"register_api_url"`
	RegisterSiteURL string `yaml:"register_site_url"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	FetchCacheTTL  time.Duration `yaml:"fetch_cache_ttl"`

	MaxConcurrentExtract int           `yaml:"max_concurrent_extract"`
	RunTTL               time.Duration `yaml:"run_ttl"`
	// RefreshSchedule is a five-field cron expression; empty disables
	// the scheduled re-scrape.
	RefreshSchedule string `yaml:"refresh_schedule"`

	BaseYear         int                        `yaml:"base_year"`
	TopN             int                        `yaml:"top_n"`
	Methodology      count.Methodology          `yaml:"methodology"`
	CrossCuttingMode aggregate.CrossCuttingMode `yaml:"cross_cutting_mode"`
	RepealAdjusted   bool                       `yaml:"repeal_adjusted"`

	Mapping          industry.Tables    `yaml:"mapping"`
	EmploymentShares map[string]float64 `yaml:"employment_shares"`

	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// Load reads the YAML file at path, then applies environment
// overrides and defaults. A missing file is not an error; everything
// it would have carried can come from env or defaults, except the
// mapping tables, which Validate will then reject.
func Load(path string) (Config, error) {
	cfg := Config{PDFFallbackPdftotext: true}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("REGSTOCK_API_KEY", cfg.APIKey)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.CorpusDir = envOr("CORPUS_DIR", cfg.CorpusDir)
	cfg.IndicatorsPath = envOr("INDICATORS_PATH", cfg.IndicatorsPath)
	cfg.ReportDir = envOr("REPORT_DIR", cfg.ReportDir)
	cfg.RegisterAPIURL = envOr("REGISTER_API_URL", cfg.RegisterAPIURL)
	cfg.RegisterSiteURL = envOr("REGISTER_SITE_URL", cfg.RegisterSiteURL)
	cfg.RefreshSchedule = envOr("REFRESH_SCHEDULE", cfg.RefreshSchedule)
	cfg.BaseYear = envInt("BASE_YEAR", cfg.BaseYear)
	cfg.TopN = envInt("TOP_N", cfg.TopN)
	cfg.MaxConcurrentExtract = envInt("MAX_CONCURRENT_EXTRACT", cfg.MaxConcurrentExtract)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.FetchCacheTTL = envDuration("FETCH_CACHE_TTL", cfg.FetchCacheTTL)
	cfg.RunTTL = envDuration("RUN_TTL", cfg.RunTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	if cfg.Port == "" {
		cfg.Port = "8095"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./regstock.db"
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "./reports"
	}
	if cfg.RegisterAPIURL == "" {
		cfg.RegisterAPIURL = "https://api.prod.legislation.gov.au/v1"
	}
	if cfg.RegisterSiteURL == "" {
		cfg.RegisterSiteURL = "https://www.legislation.gov.au"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.FetchCacheTTL <= 0 {
		cfg.FetchCacheTTL = 1 * time.Hour
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 5
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}
	if cfg.BaseYear == 0 {
		cfg.BaseYear = 2005
	}
	if cfg.TopN <= 0 {
		cfg.TopN = aggregate.DefaultTopN
	}
	if cfg.Methodology == "" {
		cfg.Methodology = count.BC
	}
	if cfg.CrossCuttingMode == "" {
		cfg.CrossCuttingMode = aggregate.CrossCuttingInclude
	}

	return cfg, nil
}

// Validate fails fast on anything that would otherwise surface mid
// run: malformed mapping tables or share vectors, unknown methodology
// or cross-cutting mode.
func (c Config) Validate() error {
	if err := c.Mapping.Validate(); err != nil {
		return err
	}

	if _, err := count.ForMethodology(c.Methodology); err != nil {
		return err
	}

	switch c.CrossCuttingMode {
	case aggregate.CrossCuttingInclude, aggregate.CrossCuttingExclude:
	case aggregate.CrossCuttingApportion:
		// Shares may come from the config or be derived from the
		// indicator snapshot at run time; one of the two must exist.
		shares := c.Shares()
		if shares == nil {
			if c.IndicatorsPath == "" {
				return &industry.ConfigError{
					Field:  "employment_shares",
					Reason: "required when cross_cutting_mode is apportion and no indicators_path is set",
				}
			}
		} else if err := shares.Validate(); err != nil {
			return err
		}
	default:
		return &industry.ConfigError{
			Field:  "cross_cutting_mode",
			Reason: fmt.Sprintf("unknown mode %q", c.CrossCuttingMode),
		}
	}

	if c.BaseYear < 1901 {
		return &industry.ConfigError{
			Field:  "base_year",
			Reason: fmt.Sprintf("%d is before federation", c.BaseYear),
		}
	}
	if len(c.EmploymentShares) > 0 {
		if err := c.Shares().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Shares converts the configured share map into a typed vector, or
// nil when unset.
func (c Config) Shares() industry.EmploymentShares {
	if len(c.EmploymentShares) == 0 {
		return nil
	}
	shares := make(industry.EmploymentShares, len(c.EmploymentShares))
	for k, v := range c.EmploymentShares {
		shares[industry.Division(k)] = v
	}
	return shares
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
