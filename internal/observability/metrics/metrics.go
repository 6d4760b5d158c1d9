package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	paymentsRecorded   metric.Int64Counter
	paymentsReversed   metric.Int64Counter
	invoicesCancelled  metric.Int64Counter
	reconcileConflicts metric.Int64Counter
	ledgerEntries      metric.Int64Counter
	documentsAdmitted  metric.Int64Counter
	documentsRejected  metric.Int64Counter
	storageUnavailable metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "schoolbill"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
	}{
		{&m.paymentsRecorded, "schoolbill_payments_recorded_total"},
		{&m.paymentsReversed, "schoolbill_payments_reversed_total"},
		{&m.invoicesCancelled, "schoolbill_invoices_cancelled_total"},
		{&m.reconcileConflicts, "schoolbill_reconcile_conflicts_total"},
		{&m.ledgerEntries, "schoolbill_ledger_entries_total"},
		{&m.documentsAdmitted, "schoolbill_documents_admitted_total"},
		{&m.documentsRejected, "schoolbill_documents_rejected_total"},
		{&m.storageUnavailable, "schoolbill_storage_unavailable_total"},
		{&m.rateLimitDenied, "schoolbill_rate_limit_denied_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

func (m *Metrics) RecordPayment(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("payment_method", strings.TrimSpace(method)),
	)...))
}

func (m *Metrics) RecordPaymentReversal(ctx context.Context) {
	if m == nil {
		return
	}
	m.paymentsReversed.Add(ctx, 1)
}

func (m *Metrics) RecordInvoiceCancelled(ctx context.Context, forced bool) {
	if m == nil {
		return
	}
	m.invoicesCancelled.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.Bool("forced", forced),
	)...))
}

// RecordReconcileConflict counts lost optimistic-lock races, including ones
// that later succeeded on retry.
func (m *Metrics) RecordReconcileConflict(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.reconcileConflicts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
	)...))
}

func (m *Metrics) RecordDocumentAdmitted(ctx context.Context, extension string) {
	if m == nil {
		return
	}
	m.documentsAdmitted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("extension", strings.TrimSpace(extension)),
	)...))
}

func (m *Metrics) RecordDocumentRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.documentsRejected.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

func (m *Metrics) RecordStorageUnavailable(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.storageUnavailable.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	)...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Student, invoice and user identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":       {},
	"status_code":    {},
	"payment_method": {},
	"outcome":        {},
	"forced":         {},
	"source_type":    {},
	"extension":      {},
	"reason":         {},
	"operation":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
