package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultOwnerID is the principal used when no token parser is configured.
var DefaultOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	TxMaxRetries    int
}

type AuthConfig struct {
	AccessSecret   string
	DefaultOwnerID uuid.UUID
}

type LockConfig struct {
	RedisAddr string
	TTL       time.Duration
}

type LedgerConfig struct {
	Epsilon decimal.Decimal
}

type PDFConfig struct {
	FontPath string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Lock        LockConfig
	Ledger      LedgerConfig
	PDF         PDFConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			TxMaxRetries:    v.GetInt("DB_TX_MAX_RETRIES"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Lock: LockConfig{
			RedisAddr: v.GetString("REDIS_ADDR"),
			TTL:       v.GetDuration("LOCK_TTL"),
		},
		PDF: PDFConfig{
			FontPath: v.GetString("PDF_FONT_PATH"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverPostgres
	}
	if cfg.DB.TxMaxRetries <= 0 {
		cfg.DB.TxMaxRetries = 3
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = 10 * time.Second
	}

	ownerID, err := parseOwnerID(v.GetString("DEFAULT_OWNER_ID"))
	if err != nil {
		return nil, err
	}
	cfg.Auth.DefaultOwnerID = ownerID

	epsilon, err := parseEpsilon(v.GetString("LEDGER_EPSILON"))
	if err != nil {
		return nil, err
	}
	cfg.Ledger.Epsilon = epsilon

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	switch cfg.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", cfg.DB.Driver)
	}
	if cfg.Ledger.Epsilon.IsNegative() {
		return fmt.Errorf("LEDGER_EPSILON must not be negative")
	}
	return nil
}

func parseOwnerID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOwnerID, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("DEFAULT_OWNER_ID: %w", err)
	}
	return id, nil
}

func parseEpsilon(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.New(1, -2), nil
	}
	eps, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("LEDGER_EPSILON: %w", err)
	}
	return eps, nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
