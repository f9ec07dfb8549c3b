package otelutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	otlptracegrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var tp *sdktrace.TracerProvider

// Init sets up the global tracer provider. An OTLP/gRPC exporter is used
// when SH_OTEL_OTLP_ENDPOINT (or the standard OTEL_EXPORTER_OTLP_ENDPOINT)
// is set; SH_OTEL_STDOUT=1 selects the stdout exporter instead. Returns an
// error when neither is configured; callers may ignore it and run untraced.
func Init() error {
	ctx := context.Background()

	res, err := sdkresource.New(ctx, sdkresource.WithAttributes(
		semconv.ServiceNameKey.String("signalhub"),
	))
	if err != nil {
		return err
	}

	endpoint := os.Getenv("SH_OTEL_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint != "" {
		return initOTLP(ctx, res, endpoint)
	}

	if os.Getenv("SH_OTEL_STDOUT") == "1" {
		return initStdout(res)
	}

	return fmt.Errorf("no OTEL exporter configured: set SH_OTEL_OTLP_ENDPOINT or SH_OTEL_STDOUT=1")
}

func initOTLP(ctx context.Context, res *sdkresource.Resource, endpoint string) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	insecure := strings.ToLower(os.Getenv("SH_OTEL_OTLP_INSECURE"))
	if insecure == "1" || insecure == "true" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	))
	return nil
}

func initStdout(res *sdkresource.Resource) error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	install(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	))
	return nil
}

func install(provider *sdktrace.TracerProvider) {
	tp = provider
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// Flush shuts down the tracer provider, flushing pending spans. Safe to
// call when Init never succeeded.
func Flush() {
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx)
}
