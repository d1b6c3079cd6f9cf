package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// configOTEL exports traces over OTLP/HTTP when OTEL_EXPORTER_OTLP_ENDPOINT is set (for example
// http://localhost:4318); the exporter reads the rest of its OTEL_* environment itself. The
// returned func flushes pending spans and is a no-op when tracing is off.
func configOTEL(logger *slog.Logger, serviceName string) func() {
	ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep == "" {
		return func() {}
	}
	logger = logger.With("endpoint", ep)

	exp, err := otlptracehttp.New(context.Background())
	if err != nil {
		logger.Error("trace exporter setup failed, tracing disabled", "err", err)
		return func() {}
	}

	env := os.Getenv("ENVIRONMENT")
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(versioninfo.Short()),
			attribute.String("env", env),
			attribute.String("environment", env),
		)),
	)
	otel.SetTracerProvider(tp)
	// outbound bridge calls carry the trace along
	otel.SetTextMapPropagator(propagation.TraceContext{})
	logger.Info("exporting traces")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("trace exporter shutdown failed", "err", err)
		}
	}
}
