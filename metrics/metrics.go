package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"telegram-shop-bot/pkg/config"
)

// AppMetrics holds the bot's business instruments. A nil *AppMetrics records
// nothing.
type AppMetrics struct {
	OrdersCreated       metric.Int64Counter
	RevenueTotal        metric.Int64Counter
	NotificationsFailed metric.Int64Counter
	ValidationFailures  metric.Int64Counter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	m.OrdersCreated, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders persisted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders_created_total counter: %w", err)
	}

	m.RevenueTotal, err = meter.Int64Counter(
		"revenue_total",
		metric.WithDescription("Sum of persisted order totals in so'm"),
		metric.WithUnit("{so'm}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create revenue_total counter: %w", err)
	}

	m.NotificationsFailed, err = meter.Int64Counter(
		"notifications_failed_total",
		metric.WithDescription("Operator notifications that could not be delivered"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications_failed_total counter: %w", err)
	}

	m.ValidationFailures, err = meter.Int64Counter(
		"checkout_validation_failures_total",
		metric.WithDescription("Checkout inputs rejected with a re-prompt"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout_validation_failures_total counter: %w", err)
	}

	return m, nil
}

func (m *AppMetrics) RecordOrder(ctx context.Context, source string, total int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.OrdersCreated.Add(ctx, 1, attrs)
	m.RevenueTotal.Add(ctx, total, attrs)
}

func (m *AppMetrics) RecordNotificationFailure(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *AppMetrics) RecordValidationFailure(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.ValidationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// InitProvider builds the meter provider. Without an OTLP endpoint the
// provider has no reader and measurements are dropped.
func InitProvider(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.OTELServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTELExporterOTLPEndpoint != "" {
		exporterOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
			otlpmetrichttp.WithURLPath("/v1/metrics"),
		}
		if cfg.OTELExporterOTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}

		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second)),
		))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}
