package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "auth-framework"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	// instrumentationPrefix is prepended to every meter and tracer scope
	instrumentationPrefix = "github.com/giantswarm/auth-framework/"
)

// Metrics exporter names accepted by Config.MetricsExporter
const (
	MetricsExporterNone       = "none"
	MetricsExporterPrometheus = "prometheus"
)

// Traces exporter names accepted by Config.TracesExporter
const (
	TracesExporterNone = "none"
	TracesExporterOTLP = "otlp"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "auth-framework", "billing-api")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used.
	Enabled bool

	// MetricsExporter selects the metrics backend: "prometheus" or "none".
	// Ignored when MetricReader is set.
	MetricsExporter string

	// PrometheusRegistry receives the Prometheus collectors. A fresh registry
	// is created when nil.
	PrometheusRegistry *prometheus.Registry

	// TracesExporter selects the trace backend: "otlp" or "none".
	// Ignored when SpanExporter is set.
	TracesExporter string

	// OTLPEndpoint is the host:port of the OTLP/HTTP collector
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP/HTTP exporter
	OTLPInsecure bool

	// OTLPHeaders are sent with every OTLP export request
	OTLPHeaders map[string]string

	// MetricReader overrides the configured metrics exporter (tests use a ManualReader)
	MetricReader sdkmetric.Reader

	// SpanExporter overrides the configured trace exporter. Spans are exported synchronously.
	SpanExporter sdktrace.SpanExporter

	// Resource allows custom resource attributes.
	// If nil, a resource is created with service name and version.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	registry *prometheus.Registry

	metrics *Metrics

	// Shutdown functions are registered during New() only
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(ctx context.Context, config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		if err := inst.initializeProviders(ctx); err != nil {
			_ = inst.Shutdown(ctx)
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// initializeProviders builds SDK meter and tracer providers for the configured exporters
func (i *Instrumentation) initializeProviders(ctx context.Context) error {
	meterProvider, err := i.newMeterProvider()
	if err != nil {
		return err
	}
	i.meterProvider = meterProvider

	tracerProvider, err := i.newTracerProvider(ctx)
	if err != nil {
		return err
	}
	i.tracerProvider = tracerProvider

	return nil
}

func (i *Instrumentation) newMeterProvider() (metric.MeterProvider, error) {
	reader := i.config.MetricReader

	if reader == nil {
		switch i.config.MetricsExporter {
		case "", MetricsExporterNone:
			return noop.NewMeterProvider(), nil
		case MetricsExporterPrometheus:
			i.registry = i.config.PrometheusRegistry
			if i.registry == nil {
				i.registry = prometheus.NewRegistry()
			}
			exporter, err := otelprom.New(otelprom.WithRegisterer(i.registry))
			if err != nil {
				return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
			}
			reader = exporter
		default:
			return nil, fmt.Errorf("unsupported metrics exporter %q", i.config.MetricsExporter)
		}
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(i.resource),
		sdkmetric.WithReader(reader),
	)
	i.shutdownFuncs = append(i.shutdownFuncs, mp.Shutdown)
	return mp, nil
}

func (i *Instrumentation) newTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	if i.config.SpanExporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(i.resource),
			sdktrace.WithSyncer(i.config.SpanExporter),
		)
		i.shutdownFuncs = append(i.shutdownFuncs, tp.Shutdown)
		return tp, nil
	}

	switch i.config.TracesExporter {
	case "", TracesExporterNone:
		return tracenoop.NewTracerProvider(), nil
	case TracesExporterOTLP:
		if i.config.OTLPEndpoint == "" {
			return nil, fmt.Errorf("otlp traces exporter requires an endpoint")
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(i.config.OTLPEndpoint),
		}
		if i.config.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(i.config.OTLPHeaders) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(i.config.OTLPHeaders))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(i.resource),
			sdktrace.WithBatcher(exporter),
		)
		i.shutdownFuncs = append(i.shutdownFuncs, tp.Shutdown)
		return tp, nil
	default:
		return nil, fmt.Errorf("unsupported traces exporter %q", i.config.TracesExporter)
	}
}

// Shutdown flushes and stops all instrumentation providers
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				// Keep the first error, but continue shutting down the rest
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope.
// Scopes are layer names like "token", "framework", "server", "storage", "security".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(instrumentationPrefix + scope)
}

// Tracer returns a named tracer for the given scope
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(instrumentationPrefix + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// PrometheusGatherer returns the registry backing the Prometheus exporter,
// or nil when Prometheus export is not enabled.
func (i *Instrumentation) PrometheusGatherer() prometheus.Gatherer {
	if i.registry == nil {
		return nil
	}
	return i.registry
}

// StorageSizeCallback is a function that returns the current number of entries held by a store
type StorageSizeCallback func() int64

// RegisterStorageSizeCallback registers an observable gauge callback for a store's entry count.
// The backend label distinguishes multiple stores sharing one Instrumentation.
func (i *Instrumentation) RegisterStorageSizeCallback(backend string, entries StorageSizeCallback) error {
	if entries == nil {
		return fmt.Errorf("storage size callback is required")
	}

	_, err := i.Meter("storage").RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(i.metrics.StorageEntries, entries(),
				metric.WithAttributes(attrBackend(backend)))
			return nil
		},
		i.metrics.StorageEntries,
	)
	return err
}
