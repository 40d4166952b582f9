package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/aggregator"
	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/storage"
	"github.com/joho/godotenv"
)

const (
	SheetsModeGoogle = "google"
	SheetsModeMemory = "memory"

	CacheModeMemory = "memory"
	CacheModeRedis  = "redis"

	SourceSheets = "sheets"
	SourceDynamo = "dynamo"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	CacheDuration     time.Duration
	CacheMode         string
	RedisURL          string
	CacheWarmInterval time.Duration // 0 disables background refresh

	Location        *time.Location
	TargetAgents    []string
	MinCallDuration int
	DurationRule    aggregator.DurationRule

	CallLogSheets []string
	CounterSheets []string
	FilmDataSheet string
	Columns       calllog.Columns

	SheetsMode       string
	SheetsFixtureDir string
	Google           sheets.GoogleConfig

	CallLogSource string
	Dynamo        storage.DynamoConfig

	DatabaseURL string
	LeadsTable  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CacheMode:      getEnv("CACHE_MODE", CacheModeMemory),
		RedisURL:       getEnv("REDIS_URL", ""),
		TargetAgents:   splitList(getEnv("TARGET_AGENTS", "101,102,103,104,105,106,107,108")),
		CallLogSheets:  splitList(getEnv("CALL_LOG_SHEETS", "สรุป call_AI,สรุป call_AI_summary,call_AI_summary")),
		CounterSheets:  splitList(getEnv("COUNTER_SHEETS", "Call Matrix,สรุป call_AI,สรุป call_AI_summary,call_AI_summary")),
		FilmDataSheet:  getEnv("FILM_DATA_SHEET", "Film data"),
		Columns: calllog.Columns{
			Start:    getEnv("CALL_LOG_START_COLUMN", calllog.DefaultColumns.Start),
			Caller:   getEnv("CALL_LOG_CALLER_COLUMN", calllog.DefaultColumns.Caller),
			Duration: getEnv("CALL_LOG_DURATION_COLUMN", calllog.DefaultColumns.Duration),
		},
		SheetsMode:       getEnv("SHEETS_MODE", SheetsModeMemory),
		SheetsFixtureDir: getEnv("SHEETS_FIXTURE_DIR", "fixtures"),
		Google: sheets.GoogleConfig{
			SpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
			ProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
			PrivateKeyID:  getEnv("GOOGLE_PRIVATE_KEY_ID", ""),
			PrivateKey:    getEnv("GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY", ""),
			ClientEmail:   getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
			ClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
			ClientCertURL: getEnv("GOOGLE_CLIENT_CERT_URL", ""),
		},
		CallLogSource: getEnv("CALL_LOG_SOURCE", SourceSheets),
		Dynamo: storage.DynamoConfig{
			Mode:         storage.DynamoMode(getEnv("DYNAMO_MODE", string(storage.DynamoModeNone))),
			Endpoint:     getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:       getEnv("DYNAMO_REGION", "ap-southeast-1"),
			CallLogTable: getEnv("DYNAMO_CALL_LOG_TABLE", "callboard-call-log"),
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LeadsTable:  getEnv("LEADS_TABLE", `"BJH-Server".bjh_all_leads`),
	}

	cacheDuration, err := strconv.Atoi(getEnv("CACHE_DURATION", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_DURATION: %w", err)
	}
	config.CacheDuration = time.Duration(cacheDuration) * time.Second

	config.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Asia/Bangkok"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	config.MinCallDuration, err = strconv.Atoi(getEnv("MIN_CALL_DURATION", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_CALL_DURATION: %w", err)
	}

	config.DurationRule, err = aggregator.ParseDurationRule(getEnv("DURATION_RULE", string(aggregator.RuleAtLeast)))
	if err != nil {
		return nil, fmt.Errorf("invalid DURATION_RULE: %w", err)
	}

	warm, err := strconv.Atoi(getEnv("CACHE_WARM_INTERVAL", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_WARM_INTERVAL: %w", err)
	}
	config.CacheWarmInterval = time.Duration(warm) * time.Second

	rps, err := strconv.ParseFloat(getEnv("SHEETS_RATE_LIMIT", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SHEETS_RATE_LIMIT: %w", err)
	}
	config.Google.RequestsPerSecond = rps

	timeout, err := strconv.Atoi(getEnv("UPSTREAM_TIMEOUT", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}
	config.Google.Timeout = time.Duration(timeout) * time.Second

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that would otherwise fail on first use
func (c *Config) Validate() error {
	if c.CacheDuration <= 0 {
		return fmt.Errorf("invalid CACHE_DURATION: must be positive")
	}
	if c.CacheWarmInterval < 0 {
		return fmt.Errorf("invalid CACHE_WARM_INTERVAL: must not be negative")
	}
	if c.Google.Timeout <= 0 {
		return fmt.Errorf("invalid UPSTREAM_TIMEOUT: must be positive")
	}
	if c.MinCallDuration < 0 {
		return fmt.Errorf("invalid MIN_CALL_DURATION: must not be negative")
	}
	if len(c.TargetAgents) == 0 {
		return fmt.Errorf("invalid TARGET_AGENTS: agent allow-list is empty")
	}
	if len(c.CallLogSheets) == 0 || len(c.CounterSheets) == 0 {
		return fmt.Errorf("invalid CALL_LOG_SHEETS/COUNTER_SHEETS: alias list is empty")
	}

	switch c.CacheMode {
	case CacheModeMemory:
	case CacheModeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("invalid CACHE_MODE: redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("invalid CACHE_MODE: %q", c.CacheMode)
	}

	switch c.SheetsMode {
	case SheetsModeMemory:
	case SheetsModeGoogle:
		if c.Google.SpreadsheetID == "" || c.Google.ClientEmail == "" || c.Google.PrivateKey == "" {
			return fmt.Errorf("invalid SHEETS_MODE: google requires GOOGLE_SPREADSHEET_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("invalid SHEETS_MODE: %q", c.SheetsMode)
	}

	switch c.Dynamo.Mode {
	case storage.DynamoModeLocal, storage.DynamoModeAWS, storage.DynamoModeNone:
	default:
		return fmt.Errorf("invalid DYNAMO_MODE: %q", c.Dynamo.Mode)
	}

	switch c.CallLogSource {
	case SourceSheets:
	case SourceDynamo:
		if !c.Dynamo.Enabled() {
			return fmt.Errorf("invalid CALL_LOG_SOURCE: dynamo requires DYNAMO_MODE local or aws")
		}
	default:
		return fmt.Errorf("invalid CALL_LOG_SOURCE: %q", c.CallLogSource)
	}

	if c.Google.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid SHEETS_RATE_LIMIT: must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma list, trimming spaces and dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
