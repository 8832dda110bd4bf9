package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const mib = 1 << 20

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Escalation EscalationConfig
	Evidence   EvidenceConfig
	Report     ReportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitMB           int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret string
}

// EscalationConfig drives the periodic severity escalation.
type EscalationConfig struct {
	Enabled  bool
	Schedule string
	AgeDays  int
}

// QualityTier maps blobs up to MaxBytes (0 = unbounded) to a JPEG quality.
type QualityTier struct {
	MaxBytes int64
	Quality  int
}

// EvidenceConfig controls blob storage and compression.
type EvidenceConfig struct {
	RootDir          string
	CompressMinBytes int64
	QualityTiers     []QualityTier
}

// ReportConfig controls listing and export defaults.
type ReportConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	DateLayout      string
}

// DefaultQualityTiers is 1-2 MiB -> 60, 2-5 MiB -> 40, 5-7 MiB -> 15, larger -> 5.
func DefaultQualityTiers() []QualityTier {
	return []QualityTier{
		{MaxBytes: 2 * mib, Quality: 60},
		{MaxBytes: 5 * mib, Quality: 40},
		{MaxBytes: 7 * mib, Quality: 15},
		{MaxBytes: 0, Quality: 5},
	}
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tiers := DefaultQualityTiers()
	if raw := os.Getenv("EVIDENCE_QUALITY_TIERS"); raw != "" {
		tiers, err = ParseQualityTiers(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid EVIDENCE_QUALITY_TIERS: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "field-audit-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 64),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Escalation: EscalationConfig{
			Enabled:  getEnvAsBool("ESCALATION_ENABLED", true),
			Schedule: getEnv("ESCALATION_SCHEDULE", "0 */6 * * *"),
			AgeDays:  getEnvAsInt("ESCALATION_AGE_DAYS", 2),
		},
		Evidence: EvidenceConfig{
			RootDir:          getEnv("EVIDENCE_ROOT_DIR", "public"),
			CompressMinBytes: int64(getEnvAsInt("EVIDENCE_COMPRESS_MIN_BYTES", mib)),
			QualityTiers:     tiers,
		},
		Report: ReportConfig{
			DefaultPageSize: getEnvAsInt("REPORT_DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:     getEnvAsInt("REPORT_MAX_PAGE_SIZE", 100),
			DateLayout:      getEnv("REPORT_DATE_LAYOUT", "02 Jan 2006"),
		},
	}

	return cfg, nil
}

// ParseQualityTiers reads "2=60,5=40,7=15,*=5" where keys are MiB upper bounds
// and "*" is the unbounded tier.
func ParseQualityTiers(raw string) ([]QualityTier, error) {
	var tiers []QualityTier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bound, quality, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("tier %q: expected <mib>=<quality>", part)
		}
		q, err := strconv.Atoi(strings.TrimSpace(quality))
		if err != nil || q < 1 || q > 100 {
			return nil, fmt.Errorf("tier %q: quality must be 1-100", part)
		}
		tier := QualityTier{Quality: q}
		if b := strings.TrimSpace(bound); b != "*" {
			mb, err := strconv.ParseFloat(b, 64)
			if err != nil || mb <= 0 {
				return nil, fmt.Errorf("tier %q: invalid size bound", part)
			}
			tier.MaxBytes = int64(mb * mib)
		}
		tiers = append(tiers, tier)
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers defined")
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].MaxBytes == 0 {
			return false
		}
		if tiers[j].MaxBytes == 0 {
			return true
		}
		return tiers[i].MaxBytes < tiers[j].MaxBytes
	})
	return tiers, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
