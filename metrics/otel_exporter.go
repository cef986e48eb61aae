package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/webhook"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
// It observes the store through a Collector and records deliveries as a delivery.Recorder
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector
	registry      *promclient.Registry

	// OTel meters and instruments
	meter            metric.Meter
	webhooksGauge    metric.Int64ObservableGauge
	deliveriesGauge  metric.Int64ObservableGauge
	attemptCounter   metric.Int64Counter
	attemptDuration  metric.Float64Histogram
	sequenceCounter  metric.Int64Counter
	sequenceDuration metric.Float64Histogram
}

var _ delivery.Recorder = (*OTelExporter)(nil)

// ExporterOption configures an OTelExporter
type ExporterOption func(*OTelExporter)

// WithRegistry exports to reg instead of the default Prometheus registerer
func WithRegistry(reg *promclient.Registry) ExporterOption {
	return func(oe *OTelExporter) {
		oe.registry = reg
	}
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector, opts ...ExporterOption) (*OTelExporter, error) {
	oe := &OTelExporter{collector: collector}
	for _, opt := range opts {
		opt(oe)
	}

	var exporterOpts []prometheus.Option
	if oe.registry != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(oe.registry))
	}

	// Create Prometheus exporter
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	oe.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	if oe.registry == nil {
		otel.SetMeterProvider(oe.meterProvider)
	}

	// Create meter with service info
	oe.meter = oe.meterProvider.Meter(
		"chat-webhooks",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Configured webhooks gauge (per active flag)
	oe.webhooksGauge, err = oe.meter.Int64ObservableGauge(
		"chat_webhooks.configured",
		metric.WithDescription("Number of configured webhooks by active flag"),
		metric.WithUnit("{webhooks}"),
		metric.WithInt64Callback(oe.observeWebhookCounts),
	)
	if err != nil {
		return fmt.Errorf("creating webhooks gauge: %w", err)
	}

	// Stored delivery counters (per webhook and outcome)
	oe.deliveriesGauge, err = oe.meter.Int64ObservableGauge(
		"chat_webhooks.recorded_deliveries",
		metric.WithDescription("Delivery sequences recorded on each webhook since its last stats reset"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeDeliveryCounts),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries gauge: %w", err)
	}

	oe.attemptCounter, err = oe.meter.Int64Counter(
		"chat_webhooks.attempts",
		metric.WithDescription("HTTP attempts by failure kind"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return fmt.Errorf("creating attempts counter: %w", err)
	}

	oe.attemptDuration, err = oe.meter.Float64Histogram(
		"chat_webhooks.attempt.duration",
		metric.WithDescription("Elapsed time of a single HTTP attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating attempt duration histogram: %w", err)
	}

	oe.sequenceCounter, err = oe.meter.Int64Counter(
		"chat_webhooks.sequences",
		metric.WithDescription("Completed delivery sequences by outcome"),
		metric.WithUnit("{sequences}"),
	)
	if err != nil {
		return fmt.Errorf("creating sequences counter: %w", err)
	}

	oe.sequenceDuration, err = oe.meter.Float64Histogram(
		"chat_webhooks.sequence.duration",
		metric.WithDescription("Elapsed time of a delivery sequence including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating sequence duration histogram: %w", err)
	}

	return nil
}

// observeWebhookCounts is a callback that reports configured webhooks
func (oe *OTelExporter) observeWebhookCounts(ctx context.Context, observer metric.Int64Observer) error {
	total, active, err := oe.collector.GetWebhookCounts(ctx)
	if err != nil {
		return err
	}

	observer.Observe(active, metric.WithAttributes(attribute.Bool("webhook.active", true)))
	observer.Observe(total-active, metric.WithAttributes(attribute.Bool("webhook.active", false)))

	return nil
}

// observeDeliveryCounts is a callback that reports the counters stored on each webhook
func (oe *OTelExporter) observeDeliveryCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetDeliveryCounts(ctx)
	if err != nil {
		return err
	}

	for id, stats := range counts {
		observer.Observe(stats.Deliveries.Success, metric.WithAttributes(
			attribute.String("webhook.id", id),
			attribute.String("webhook.name", stats.Name),
			attribute.String("outcome", "success"),
		))
		observer.Observe(stats.Deliveries.Failure, metric.WithAttributes(
			attribute.String("webhook.id", id),
			attribute.String("webhook.name", stats.Name),
			attribute.String("outcome", "failure"),
		))
	}

	return nil
}

// RecordAttempt counts one HTTP attempt and its latency; probe traffic is tagged webhook.test
func (oe *OTelExporter) RecordAttempt(ctx context.Context, wh webhook.Webhook, kind delivery.Failure, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("webhook.id", wh.ID),
		attribute.String("failure.kind", kind.String()),
		attribute.Bool("webhook.test", delivery.IsTest(wh)),
	)
	oe.attemptCounter.Add(ctx, 1, attrs)
	oe.attemptDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordSequence counts one completed delivery sequence and its duration
func (oe *OTelExporter) RecordSequence(ctx context.Context, wh webhook.Webhook, res delivery.Result) {
	attrs := metric.WithAttributes(
		attribute.String("webhook.id", wh.ID),
		attribute.String("outcome", outcome(res)),
		attribute.String("http.status", strconv.Itoa(res.Status)),
	)
	oe.sequenceCounter.Add(ctx, 1, attrs)
	oe.sequenceDuration.Record(ctx, res.Elapsed.Seconds(), attrs)
}

func outcome(res delivery.Result) string {
	if res.Success {
		return "success"
	}
	return res.LastAttemptFailure().String()
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	if oe.registry != nil {
		return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
