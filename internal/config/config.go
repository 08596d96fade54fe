// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Audible    AudibleConfig
	Prowlarr   ProwlarrConfig
	Search     SearchConfig
	Enrichment EnrichmentConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// DatabaseConfig holds SQLite storage configuration.
type DatabaseConfig struct {
	// Path to the SQLite database file (default: ~/abr/abr.db)
	Path string
}

// AudibleConfig holds Audible API configuration.
type AudibleConfig struct {
	// DefaultRegion is the default Audible marketplace (default: us)
	// Valid values: us, uk, de, fr, au, ca, jp, it, in, es
	DefaultRegion string
}

// ProwlarrConfig holds indexer aggregator configuration. BaseURL and APIKey
// are required for availability-aware search; without them the clients
// report themselves misconfigured.
type ProwlarrConfig struct {
	BaseURL    string
	APIKey     string
	Categories []int         // search categories (default: 3030,13)
	Indexers   []int         // indexer IDs to query, empty = all
	SourceTTL  time.Duration // indexer result cache TTL (default: 24h)
}

// SearchConfig holds the reconciliation pipeline tunables.
type SearchConfig struct {
	// MaxConcurrent bounds parallel catalog lookups during fan-out (default: 15)
	MaxConcurrent int
	// HitTimeout caps catalog reconciliation per indexer hit (default: 5s)
	HitTimeout time.Duration

	// RankingEnabled turns author relevance ranking on (default: true)
	RankingEnabled bool
	// SecondaryScoring blends title similarity and recency into ranking (default: true)
	SecondaryScoring bool
	// AuthorThreshold is the minimum author score for the best-match partition (default: 70)
	AuthorThreshold float64

	// Cache TTLs
	FuzzyMatchTTL     time.Duration // fuzzy match decisions (default: 1h)
	RankingTTL        time.Duration // ranked result lists (default: 30m)
	UpgradeAttemptTTL time.Duration // upgrade attempt backoff (default: 24h)
	CatalogResultTTL  time.Duration // catalog search result pages (default: 30m)
	SuggestionTTL     time.Duration // search suggestion strings (default: 1h)
}

// EnrichmentConfig holds virtual book metadata enrichment configuration.
type EnrichmentConfig struct {
	// Enabled turns Google Books enrichment on for virtual records (default: true)
	Enabled bool
	// CacheExpiryDays is how long enrichment lookups are cached (default: 30)
	CacheExpiryDays int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dbPath := flag.String("db-path", "", "Path to SQLite database file")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	audibleRegion := flag.String("audible-region", "", "Default Audible marketplace (default: us)")

	prowlarrBaseURL := flag.String("prowlarr-base-url", "", "Prowlarr base URL")
	prowlarrAPIKey := flag.String("prowlarr-api-key", "", "Prowlarr API key")
	prowlarrCategories := flag.String("prowlarr-categories", "", "Prowlarr categories, comma-separated (default: 3030,13)")
	prowlarrIndexers := flag.String("prowlarr-indexers", "", "Prowlarr indexer IDs, comma-separated (default: all)")
	prowlarrSourceTTL := flag.String("prowlarr-source-ttl", "", "Indexer result cache TTL (default: 24h)")

	maxConcurrent := flag.String("max-concurrent-lookups", "", "Max parallel catalog lookups (default: 15)")
	hitTimeout := flag.String("hit-timeout", "", "Per-hit catalog reconciliation timeout (default: 5s)")
	rankingEnabled := flag.String("ranking-enabled", "", "Enable author relevance ranking (default: true)")
	secondaryScoring := flag.String("secondary-scoring", "", "Enable secondary scoring (default: true)")
	authorThreshold := flag.String("author-threshold", "", "Author score threshold for best matches (default: 70)")

	enrichmentEnabled := flag.String("enrichment-enabled", "", "Enable virtual book metadata enrichment (default: true)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DATABASE_PATH", ""),
		},
		Audible: AudibleConfig{
			DefaultRegion: getConfigValue(*audibleRegion, "AUDIBLE_DEFAULT_REGION", "us"),
		},
		Prowlarr: ProwlarrConfig{
			BaseURL: strings.TrimRight(getConfigValue(*prowlarrBaseURL, "PROWLARR_BASE_URL", ""), "/"),
			APIKey:  getConfigValue(*prowlarrAPIKey, "PROWLARR_API_KEY", ""),
		},
		Search: SearchConfig{
			MaxConcurrent:    getIntConfigValue(*maxConcurrent, "MAX_CONCURRENT_LOOKUPS", 15),
			RankingEnabled:   getBoolConfigValue(*rankingEnabled, "RANKING_ENABLED", true),
			SecondaryScoring: getBoolConfigValue(*secondaryScoring, "SECONDARY_SCORING", true),
			AuthorThreshold:  getFloatConfigValue(*authorThreshold, "AUTHOR_THRESHOLD", 70.0),
		},
		Enrichment: EnrichmentConfig{
			Enabled:         getBoolConfigValue(*enrichmentEnabled, "ENRICHMENT_ENABLED", true),
			CacheExpiryDays: getIntConfigValue("", "ENRICHMENT_CACHE_EXPIRY_DAYS", 30),
		},
	}

	// Parse durations.
	durations := []struct {
		dst        *time.Duration
		flagValue  string
		envKey     string
		defaultVal string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Prowlarr.SourceTTL, *prowlarrSourceTTL, "PROWLARR_SOURCE_TTL", "24h"},
		{&cfg.Search.HitTimeout, *hitTimeout, "HIT_TIMEOUT", "5s"},
		{&cfg.Search.FuzzyMatchTTL, "", "FUZZY_MATCH_CACHE_TTL", "1h"},
		{&cfg.Search.RankingTTL, "", "RANKING_CACHE_TTL", "30m"},
		{&cfg.Search.UpgradeAttemptTTL, "", "UPGRADE_ATTEMPT_CACHE_TTL", "24h"},
		{&cfg.Search.CatalogResultTTL, "", "CATALOG_RESULT_CACHE_TTL", "30m"},
		{&cfg.Search.SuggestionTTL, "", "SUGGESTION_CACHE_TTL", "1h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.defaultVal)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	// Parse integer lists.
	var err error
	cfg.Prowlarr.Categories, err = getIntListConfigValue(*prowlarrCategories, "PROWLARR_CATEGORIES", []int{3030, 13})
	if err != nil {
		return nil, fmt.Errorf("invalid prowlarr categories: %w", err)
	}
	cfg.Prowlarr.Indexers, err = getIntListConfigValue(*prowlarrIndexers, "PROWLARR_INDEXERS", nil)
	if err != nil {
		return nil, fmt.Errorf("invalid prowlarr indexers: %w", err)
	}

	// Expand and default the database path.
	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Search.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent lookups must be at least 1, got %d", c.Search.MaxConcurrent)
	}

	// Prowlarr settings may be absent; availability-aware search reports
	// itself misconfigured at request time instead of failing startup.

	return nil
}

// ProwlarrConfigured reports whether the indexer aggregator can be used.
func (c *Config) ProwlarrConfigured() bool {
	return c.Prowlarr.BaseURL != "" && c.Prowlarr.APIKey != ""
}

// expandDatabasePath expands ~ and makes the path absolute.
// Defaults to ~/abr/abr.db.
func (c *Config) expandDatabasePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "abr", "abr.db")

	expanded, err := expandPath(c.Database.Path, defaultPath)
	if err != nil {
		return err
	}
	c.Database.Path = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getIntListConfigValue parses a comma-separated int list from flag, env
// var, or default.
func getIntListConfigValue(flagValue, envKey string, defaultValue []int) ([]int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}

	parts := strings.Split(strValue, ",")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", p, err)
		}
		result = append(result, n)
	}
	return result, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
