package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxConcurrency int
	BreakerTimeout time.Duration

	// Per-user state
	WorkspaceTTL time.Duration
	ExportTTL    time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	UseSupabase        bool
	FactureTable       string

	// Export archive (optional)
	ExportS3Bucket    string
	ExportS3Region    string
	ExportS3Endpoint  string
	ExportS3AccessKey string
	ExportS3SecretKey string

	// Dev mode
	DevSeed      bool   // DEV_SEED=true gives new dev accounts demo factures
	DevJWTSecret string // signs memstore tokens when USE_SUPABASE=false
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),
		BreakerTimeout: getEnvDuration("BREAKER_TIMEOUT", 10*time.Second),

		WorkspaceTTL: getEnvDuration("WORKSPACE_TTL", 30*time.Minute),
		ExportTTL:    getEnvDuration("EXPORT_TTL", time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		UseSupabase:        getEnvBool("USE_SUPABASE", true),
		FactureTable:       getEnv("FACTURE_TABLE", "facture_btp"),

		ExportS3Bucket:    getEnv("EXPORT_S3_BUCKET", ""),
		ExportS3Region:    getEnv("EXPORT_S3_REGION", "eu-west-3"),
		ExportS3Endpoint:  getEnv("EXPORT_S3_ENDPOINT", ""),
		ExportS3AccessKey: getEnv("EXPORT_S3_ACCESS_KEY", ""),
		ExportS3SecretKey: getEnv("EXPORT_S3_SECRET_KEY", ""),

		DevSeed:      getEnvBool("DEV_SEED", false),
		DevJWTSecret: getEnv("DEV_JWT_SECRET", "facture-dev-secret-change-me"),
	}
}

// Validate reports settings that make the service unable to start.
func (c *Config) Validate() error {
	if c.UseSupabase {
		var missing []string
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
		if c.SupabaseJWTSecret == "" {
			missing = append(missing, "SUPABASE_JWT_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("USE_SUPABASE=true requires %s", strings.Join(missing, ", "))
		}
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("WORKSPACE_TTL must be positive, got %s", c.WorkspaceTTL)
	}
	if c.ExportTTL <= 0 {
		return fmt.Errorf("EXPORT_TTL must be positive, got %s", c.ExportTTL)
	}
	if c.ExportS3Bucket != "" && (c.ExportS3AccessKey == "" || c.ExportS3SecretKey == "") {
		return fmt.Errorf("EXPORT_S3_BUCKET requires EXPORT_S3_ACCESS_KEY and EXPORT_S3_SECRET_KEY")
	}
	return nil
}

// ArchiveEnabled reports whether exports are also written to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ExportS3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
