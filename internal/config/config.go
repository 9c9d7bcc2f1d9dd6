package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// defaultBaseURL is the City of Vancouver explore API v2.1 catalog root.
const defaultBaseURL = "https://opendata.vancouver.ca/api/explore/v2.1/catalog/datasets"

// maxPageSize is the provider's hard per-request record limit.
const maxPageSize = 100

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Open-data provider settings.
	OpenDataBaseURL  string
	OpenDataTimeout  time.Duration
	OpenDataPageSize int
	CoordCacheSize   int

	// Neighbourhood comparison year window, inclusive.
	CompareYearStart int
	CompareYearEnd   int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	openDataTimeout, err := parseDuration("OPENDATA_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pageSize, err := parseInt("OPENDATA_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("COORD_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	yearStart, err := parseInt("COMPARE_YEAR_START", 2020)
	if err != nil {
		return nil, err
	}

	yearEnd, err := parseInt("COMPARE_YEAR_END", 2024)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		OpenDataBaseURL:  envOrDefault("OPENDATA_BASE_URL", defaultBaseURL),
		OpenDataTimeout:  openDataTimeout,
		OpenDataPageSize: pageSize,
		CoordCacheSize:   cacheSize,

		CompareYearStart: yearStart,
		CompareYearEnd:   yearEnd,
	}

	if cfg.OpenDataBaseURL == "" {
		return nil, errors.New("OPENDATA_BASE_URL is required")
	}
	if cfg.OpenDataPageSize < 1 || cfg.OpenDataPageSize > maxPageSize {
		return nil, fmt.Errorf("OPENDATA_PAGE_SIZE must be between 1 and %d", maxPageSize)
	}
	if cfg.CoordCacheSize < 1 {
		return nil, errors.New("COORD_CACHE_SIZE must be positive")
	}
	if cfg.CompareYearEnd < cfg.CompareYearStart {
		return nil, errors.New("COMPARE_YEAR_END must not precede COMPARE_YEAR_START")
	}

	return cfg, nil
}

// CompareYears expands the configured window into the list of report years
// to sample.
func (c *Config) CompareYears() []int {
	years := make([]int, 0, c.CompareYearEnd-c.CompareYearStart+1)
	for y := c.CompareYearStart; y <= c.CompareYearEnd; y++ {
		years = append(years, y)
	}
	return years
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
