package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr        string
	MetricsAddr string

	// ShopName and ShopEmail appear on confirmation emails; the shop copy
	// of every order confirmation goes to ShopEmail.
	ShopName  string
	ShopEmail string

	// DefaultCountryID is the destination assigned to freshly created
	// baskets until the customer picks one.
	DefaultCountryID int

	// PostageBaseRate is the price per whole weight unit before the
	// destination country multiplier is applied.
	PostageBaseRate decimal.Decimal

	// CardKey is the 32-byte key (base64 or raw) used to encrypt card
	// fields at rest.
	CardKey string

	JWTSigningKey string

	PostgresURL string
	Redis       RedisConfig

	SMTP SMTPConfig

	// KafkaBrokers enables order-placed event publishing when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// RedisConfig holds session store connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig holds outbound mail settings. An empty Host selects the
// log-only sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	baseRate, err := decimal.NewFromString(envOr("EMPORIA_POSTAGE_BASE_RATE", "1.25"))
	if err != nil {
		baseRate = decimal.NewFromFloat(1.25)
	}

	jwtSigningKey := os.Getenv("EMPORIA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("EMPORIA_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:             envOr("EMPORIA_ADDR", ":8080"),
		MetricsAddr:      envOr("EMPORIA_METRICS_ADDR", ":9090"),
		ShopName:         envOr("EMPORIA_SHOP_NAME", "Emporia"),
		ShopEmail:        envOr("EMPORIA_SHOP_EMAIL", "orders@emporia.example"),
		DefaultCountryID: envIntOr("EMPORIA_DEFAULT_COUNTRY_ID", 1),
		PostageBaseRate:  baseRate,
		CardKey:          os.Getenv("EMPORIA_CARD_KEY"),
		JWTSigningKey:    jwtSigningKey,
		PostgresURL:      os.Getenv("EMPORIA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("EMPORIA_REDIS_URL"),
			PoolSize:     envIntOr("EMPORIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("EMPORIA_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("EMPORIA_SMTP_HOST"),
			Port:     envIntOr("EMPORIA_SMTP_PORT", 587),
			Username: os.Getenv("EMPORIA_SMTP_USERNAME"),
			Password: os.Getenv("EMPORIA_SMTP_PASSWORD"),
			From:     envOr("EMPORIA_SMTP_FROM", "orders@emporia.example"),
		},
		KafkaBrokers: brokers,
		KafkaTopic:   envOr("EMPORIA_KAFKA_TOPIC", "emporia.orders.placed"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
