package observability

import (
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	"github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"github.com/smallbiznis/schoolbill/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the OTel tracer and meter providers and
// the HTTP metrics shared by the gin middleware.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.ProvideHTTPMetrics,
	),
	// Nothing else depends on the tracer provider; force it so spans export.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

// MetricsConfig shares the trace exporter settings; one collector receives
// both signals.
func (c Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
