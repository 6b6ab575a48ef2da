package config

import (
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Config holds application configuration from environment variables
type Config struct {
	// Telegram
	BotToken     string
	AdminChatID  int64
	AdminUserID  int64
	LangDefault  string
	OperatorLang string
	BotMode      string

	// HTTP surface
	AppHost      string
	AppPort      string
	AppPublicURL string
	WebhookPath  string
	WebAppDir    string

	// Storage
	DBPath       string
	ProductsFile string
	RedisAddr    string
	SessionTTL   time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// OpenTelemetry
	OTELExporterOTLPEndpoint string
	OTELExporterOTLPInsecure bool
	OTELServiceName          string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() *Config {
	// .env is optional
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			logrus.WithError(err).Warn("Error loading .env file")
		}
	}

	return &Config{
		BotToken:     getEnv("BOT_TOKEN", ""),
		AdminChatID:  getEnvInt64("ADMIN_CHAT_ID", 0),
		AdminUserID:  getEnvInt64("ADMIN_USER_ID", 0),
		LangDefault:  getEnv("LANG_DEFAULT", "uz"),
		OperatorLang: getEnv("OPERATOR_LANG", "uz"),
		BotMode:      getEnv("BOT_MODE", ModeWebhook),

		AppHost:      getEnv("APP_HOST", "0.0.0.0"),
		AppPort:      getEnv("PORT", getEnv("APP_PORT", "8080")),
		AppPublicURL: getEnv("APP_PUBLIC_URL", getEnv("WEBAPP_URL", "https://example.com/app")),
		WebhookPath:  getEnv("WEBHOOK_PATH", "/webhook"),
		WebAppDir:    getEnv("WEBAPP_DIR", "static"),

		DBPath:       getEnv("DB_PATH", "data/orders.db"),
		ProductsFile: getEnv("PRODUCTS_FILE", "products.json"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		SessionTTL:   getEnvDuration("SESSION_TTL", 0),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "orders.created"),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "telegram-shop-bot"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports configuration the bot cannot start without.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("config: BOT_TOKEN is required")
	}
	if c.BotMode != ModeWebhook && c.BotMode != ModePolling {
		return errors.New("config: BOT_MODE must be webhook or polling")
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.AppHost, c.AppPort)
}

// WebhookURL derives the public webhook address from the mini-app URL by
// dropping a trailing /app.
func (c *Config) WebhookURL() string {
	base := strings.TrimSuffix(c.AppPublicURL, "/")
	base = strings.TrimSuffix(base, "/app")
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return base + c.WebhookPath
}

// WebAppURL is the mini-app link for a given interface language.
func (c *Config) WebAppURL(lang string) string {
	u, err := url.Parse(c.AppPublicURL)
	if err != nil {
		return c.AppPublicURL + "?lang=" + url.QueryEscape(lang)
	}
	q := u.Query()
	q.Set("lang", lang)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Config) IsAdmin(userID int64) bool {
	return c.AdminUserID != 0 && userID == c.AdminUserID
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			logrus.WithField("key", key).WithError(err).Warn("Invalid integer, using default")
			return defaultValue
		}
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			logrus.WithField("key", key).WithError(err).Warn("Invalid duration, using default")
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
