package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cooplend/config"
	"cooplend/models"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the ledger engine.
// It implements service.MetricsRecorder.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	transitionsCounter           metric.Int64Counter
	transitionDurationHist       metric.Float64Histogram
	balanceTransactionsCounter   metric.Int64Counter
	sweepProcessedCounter        metric.Int64Counter
	sweepFailedCounter           metric.Int64Counter
	sweepAmountCounter           metric.Int64Counter
	sweepSkippedCounter          metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := mp.newExporter(ctx)
	if err != nil {
		return err
	}
	if exporter == nil {
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)
	otel.SetMeterProvider(mp.meterProvider)

	if err := mp.createInstruments(mp.meterProvider.Meter("cooplend")); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.WithField("exporter", mp.config.OTelExporterType).Info("Metrics provider initialized successfully")
	return nil
}

// newExporter returns nil when export is disabled
func (mp *MetricsProvider) newExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return exporter, nil

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")
		return exporter, nil

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}
}

// createInstruments creates all metric instruments on meter
func (mp *MetricsProvider) createInstruments(meter metric.Meter) error {
	var err error

	mp.transitionsCounter, err = meter.Int64Counter(
		TransitionsTotal,
		metric.WithDescription("Total number of balance transitions by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transitions counter: %w", err)
	}

	mp.transitionDurationHist, err = meter.Float64Histogram(
		TransitionDuration,
		metric.WithDescription("Duration of balance transitions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create transition duration histogram: %w", err)
	}

	mp.balanceTransactionsCounter, err = meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of ledger entries written"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	mp.sweepProcessedCounter, err = meter.Int64Counter(
		SweepLoansProcessedTotal,
		metric.WithDescription("Loans successfully handled by sweeps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep processed counter: %w", err)
	}

	mp.sweepFailedCounter, err = meter.Int64Counter(
		SweepLoansFailedTotal,
		metric.WithDescription("Loans that failed during sweeps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep failed counter: %w", err)
	}

	mp.sweepAmountCounter, err = meter.Int64Counter(
		SweepAmountTotal,
		metric.WithDescription("Minor units moved by sweeps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep amount counter: %w", err)
	}

	mp.sweepSkippedCounter, err = meter.Int64Counter(
		SweepSkippedTotal,
		metric.WithDescription("Sweeps skipped because the system was frozen or had already run"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep skipped counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	mp.meter = meter
	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordTransition records one unit of work and how it ended
func (mp *MetricsProvider) RecordTransition(name, outcome string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelTransition, name),
		attribute.String(LabelOutcome, outcome),
	)
	mp.transitionsCounter.Add(context.Background(), 1, attrs)
	mp.transitionDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// RecordBalanceTransaction records a committed ledger entry
func (mp *MetricsProvider) RecordBalanceTransaction(transactionType models.TransactionType) {
	if !mp.isEnabled() {
		return
	}

	mp.balanceTransactionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, string(transactionType)),
		),
	)
}

// RecordSweep records the counters of a finished or skipped sweep
func (mp *MetricsProvider) RecordSweep(result *models.SweepResult) {
	if !mp.isEnabled() || result == nil {
		return
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String(LabelSweepKind, string(result.Kind)))
	if result.Skipped {
		mp.sweepSkippedCounter.Add(ctx, 1, attrs)
		return
	}
	mp.sweepProcessedCounter.Add(ctx, int64(result.Processed), attrs)
	mp.sweepFailedCounter.Add(ctx, int64(result.Failed), attrs)
	mp.sweepAmountCounter.Add(ctx, int64(result.Amount), attrs)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled reports whether instruments exist to record into
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
