package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/timelylabs/timely-backend/internal/config"
)

// restoreGlobals snapshots the process-wide tracer provider and propagator
// so tests can install their own without leaking into each other.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func otelCfg(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	restoreGlobals(t)

	cfg := otelCfg("timely-backend")
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0.0.0")
	if err != nil {
		t.Fatalf("disabled setup errored: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("shutdown func must never be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown errored: %v", err)
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := SetupOTel(context.Background(), otelCfg("timely-backend"), "v1.2.3")
	if err != nil {
		t.Fatalf("setup errored: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("global provider is %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}

	// Round-trip trace context through the installed propagator.
	prop := otel.GetTextMapPropagator()
	carrier := propagation.MapCarrier{}
	ctx, span := otel.Tracer("publish").Start(context.Background(), "ledger.update")
	span.End()
	prop.Inject(ctx, carrier)
	if len(carrier) == 0 {
		t.Fatalf("propagator injected nothing")
	}
	_ = prop.Extract(context.Background(), carrier)
}

func TestSetupOTel_TLSBranch(t *testing.T) {
	restoreGlobals(t)

	cfg := otelCfg("timely-backend-tls")
	cfg.Insecure = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v9.9.9")
	if err != nil {
		t.Fatalf("TLS setup errored: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("global provider is %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
}

func TestSetupOTel_CanceledContextStillSucceeds(t *testing.T) {
	restoreGlobals(t)

	// The OTLP gRPC client dials lazily, so a dead context at setup time
	// must not fail server startup.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	shutdown, err := SetupOTel(ctx, otelCfg("timely-backend"), "v0.1.0")
	if err != nil {
		t.Fatalf("setup with canceled ctx errored: %v", err)
	}
	_ = shutdown(context.Background())
}

func TestSetupOTel_ExporterFailureLeavesGlobalsAlone(t *testing.T) {
	restoreGlobals(t)

	orig := otlpExporterFn
	defer func() { otlpExporterFn = orig }()
	otlpExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("exporter down")
	}

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()

	if _, err := SetupOTel(context.Background(), otelCfg("timely-backend"), "v0"); err == nil {
		t.Fatalf("exporter failure must surface")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider replaced on failed setup")
	}
	if otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("propagator replaced on failed setup")
	}
}

func TestSetupOTel_ResourceFailureLeavesGlobalsAlone(t *testing.T) {
	restoreGlobals(t)

	orig := serviceResourceFn
	defer func() { serviceResourceFn = orig }()
	serviceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return nil, errors.New("resource detect failed")
	}

	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()

	if _, err := SetupOTel(context.Background(), otelCfg("timely-backend"), "v0"); err == nil {
		t.Fatalf("resource failure must surface")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider replaced on failed setup")
	}
	if otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("propagator replaced on failed setup")
	}
}

func TestSetupOTel_ShutdownWithinDeadline(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := SetupOTel(context.Background(), otelCfg("timely-backend"), "v1")
	if err != nil {
		t.Fatalf("setup errored: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown errored: %v", err)
	}
}

func TestSetupOTel_SpanSmoke(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := SetupOTel(context.Background(), otelCfg("timely-backend"), "v1")
	if err != nil {
		t.Fatalf("setup errored: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := otel.Tracer("settlement").Start(context.Background(), "sweep", trace.WithSpanKind(trace.SpanKindInternal))
	span.End()
}
