package telemetry

import (
	"context"
	"log"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func InitTracer(serviceName string) func(context.Context) error {
	ctx := context.Background()
	endpoint := otlpEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		log.Fatal(err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(serviceName)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func InitMetrics(serviceName string) func(context.Context) error {
	ctx := context.Background()
	endpoint := otlpEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		log.Fatal(err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(serviceResource(serviceName)),
	)

	otel.SetMeterProvider(mp)
	initHTTPMetricsInstruments(serviceName)

	return mp.Shutdown
}

func InitLogger(serviceName string) func(context.Context) error {
	ctx := context.Background()
	endpoint := otlpEndpoint("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")

	exporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		log.Fatal(err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(serviceResource(serviceName)),
	)

	global.SetLoggerProvider(lp)
	return lp.Shutdown
}

func serviceResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
}

// otlpEndpoint prefers the per-signal variable, then the shared one.
func otlpEndpoint(signalEnv string) string {
	endpoint := strings.TrimSpace(os.Getenv(signalEnv))
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	return endpoint
}
