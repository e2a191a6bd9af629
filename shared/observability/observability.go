package observability

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics() *sdkmetric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":2112", nil)
	}()
	return mp
}

// Metrics holds the application counters.
type Metrics struct {
	ChatRequests  metric.Int64Counter
	ChatDegraded  metric.Int64Counter
	SlideRequests metric.Int64Counter
}

// NewMetrics registers the application counters on the global meter.
func NewMetrics() *Metrics {
	meter := otel.Meter("matscigpt/backend")

	chatRequests, _ := meter.Int64Counter("chat_requests_total",
		metric.WithDescription("Chat completion requests received"))
	chatDegraded, _ := meter.Int64Counter("chat_degraded_total",
		metric.WithDescription("Chat responses that fell back to an apology message"))
	slideRequests, _ := meter.Int64Counter("slide_requests_total",
		metric.WithDescription("Slide deck generation requests received"))

	return &Metrics{
		ChatRequests:  chatRequests,
		ChatDegraded:  chatDegraded,
		SlideRequests: slideRequests,
	}
}

// RecordChat counts one chat request, tagged with whether an attachment
// rode along and whether the response degraded to a fallback message.
func (m *Metrics) RecordChat(ctx context.Context, hasAttachments, degraded bool) {
	if m == nil {
		return
	}
	m.ChatRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("has_attachments", hasAttachments),
	))
	if degraded {
		m.ChatDegraded.Add(ctx, 1)
	}
}

// RecordSlides counts one slide generation request.
func (m *Metrics) RecordSlides(ctx context.Context) {
	if m == nil {
		return
	}
	m.SlideRequests.Add(ctx, 1)
}
