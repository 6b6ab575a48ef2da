package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"telegram-shop-bot/bot"
	"telegram-shop-bot/catalog"
	"telegram-shop-bot/checkout"
	"telegram-shop-bot/metrics"
	"telegram-shop-bot/notify"
	"telegram-shop-bot/orders"
	"telegram-shop-bot/pkg/config"
	"telegram-shop-bot/session"
	"telegram-shop-bot/webapp"
)

const (
	notifyTimeout   = 10 * time.Second
	shutdownTimeout = 30 * time.Second
	updateBuffer    = 100
)

func main() {
	cfg := config.LoadConfig()
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meterProvider, err := metrics.InitProvider(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}
	otel.SetMeterProvider(meterProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down meter provider")
		}
	}()

	appMetrics, err := metrics.New(meterProvider.Meter(cfg.OTELServiceName))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create instruments")
	}

	products, err := catalog.Load(cfg.ProductsFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load catalog")
	}
	logger.WithFields(logrus.Fields{
		"file":     cfg.ProductsFile,
		"products": len(products.List()),
	}).Info("Catalog loaded")

	repo, err := orders.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open order database")
	}
	defer repo.Close()

	sessions := newSessionStore(ctx, cfg, logger)

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, &http.Client{
		Timeout:   90 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Telegram")
	}
	if err := tgbotapi.SetLogger(logger.WithField("component", "tgbotapi")); err != nil {
		logger.WithError(err).Warn("Failed to attach logger to bot client")
	}
	logger.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	var notifiers []notify.Notifier
	if cfg.AdminChatID != 0 {
		notifiers = append(notifiers, notify.NewTelegramNotifier(api, cfg.AdminChatID, cfg.OperatorLang))
	} else {
		logger.Warn("ADMIN_CHAT_ID not set, operator notifications disabled")
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		kafka := notify.NewKafkaNotifier(producer, cfg.KafkaTopic, logger)
		defer kafka.Close()
		notifiers = append(notifiers, kafka)
		logger.WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("Publishing order events to Kafka")
	}
	dispatcher := notify.NewDispatcher(logger, appMetrics, notifyTimeout, notifiers...)

	placer := checkout.NewPlacer(repo, dispatcher, appMetrics, logger)
	machine := checkout.NewMachine(placer, products, appMetrics)
	shopBot := bot.New(api, sessions, products, machine, repo, cfg, logger)

	updates := make(chan bot.Update, updateBuffer)
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      webapp.NewServer(cfg, products, api, updates, logger).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	switch cfg.BotMode {
	case config.ModeWebhook:
		if err := bot.RegisterWebhook(api, cfg.WebhookURL()); err != nil {
			logger.WithError(err).Fatal("Failed to register webhook")
		}
		logger.WithField("url", cfg.WebhookURL()).Info("Webhook registered")
	case config.ModePolling:
		if err := bot.DeleteWebhook(api, false); err != nil {
			logger.WithError(err).Fatal("Failed to delete webhook")
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		polled := bot.FromPolling(ctx, api.GetUpdatesChan(u))
		go func() {
			for upd := range polled {
				select {
				case updates <- upd:
				case <-ctx.Done():
					return
				}
			}
		}()
		logger.Info("Long polling started")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		shopBot.Run(ctx, updates)
	}()

	shopBot.Announce()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server forced to shutdown")
	}
	if cfg.BotMode == config.ModePolling {
		api.StopReceivingUpdates()
	}
	cancel()
	<-done
	dispatcher.Wait()

	logger.Info("Bot stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// newSessionStore uses Redis when REDIS_ADDR is set so carts survive restarts.
func newSessionStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) session.Store {
	if cfg.RedisAddr == "" {
		logger.Info("Using in-memory sessions")
		return session.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	logger.WithFields(logrus.Fields{
		"addr": cfg.RedisAddr,
		"ttl":  cfg.SessionTTL,
	}).Info("Using Redis sessions")
	return session.NewRedisStore(client, cfg.SessionTTL)
}
