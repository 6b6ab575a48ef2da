package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"BOT_TOKEN", "ADMIN_CHAT_ID", "PORT", "APP_PORT", "APP_PUBLIC_URL", "WEBAPP_URL", "KAFKA_BROKERS", "SESSION_TTL", "BOT_MODE"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "uz", cfg.LangDefault)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "/webhook", cfg.WebhookPath)
	assert.Equal(t, ModeWebhook, cfg.BotMode)
	assert.Equal(t, "data/orders.db", cfg.DBPath)
	assert.Equal(t, int64(0), cfg.AdminChatID)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, time.Duration(0), cfg.SessionTTL)
	assert.Error(t, cfg.Validate(), "token is required")
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_CHAT_ID", "-100200300")
	t.Setenv("ADMIN_USER_ID", "42")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("BOT_MODE", ModePolling)

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(-100200300), cfg.AdminChatID)
	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(43))
}

func TestLoadConfig_PortPrecedence(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("APP_PORT", "9000")

	assert.Equal(t, "7000", LoadConfig().AppPort)
}

func TestLoadConfig_InvalidNumberFallsBack(t *testing.T) {
	t.Setenv("ADMIN_CHAT_ID", "not-a-number")

	assert.Equal(t, int64(0), LoadConfig().AdminChatID)
}

func TestWebhookURL(t *testing.T) {
	cases := map[string]string{
		"https://shop.example.com/app":  "https://shop.example.com/webhook",
		"https://shop.example.com/app/": "https://shop.example.com/webhook",
		"https://shop.example.com":      "https://shop.example.com/webhook",
		"shop.example.com/app":          "https://shop.example.com/webhook",
	}
	for public, want := range cases {
		cfg := &Config{AppPublicURL: public, WebhookPath: "/webhook"}
		assert.Equal(t, want, cfg.WebhookURL(), public)
	}
}

func TestWebAppURL(t *testing.T) {
	cfg := &Config{AppPublicURL: "https://shop.example.com/app"}
	assert.Equal(t, "https://shop.example.com/app?lang=ru", cfg.WebAppURL("ru"))
}

func TestIsAdmin_ZeroDisables(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.IsAdmin(0))
}
