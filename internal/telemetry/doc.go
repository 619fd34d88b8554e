// Package telemetry provides OpenTelemetry instrumentation for modelvault.
//
// Telemetry is disabled by default. When enabled, traces and metrics are
// exported over OTLP (grpc or http/protobuf) to a collector:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	l := loader.New(store, loader.WithTracer(tel.Tracer("modelvault.loader")))
//
// Provider initialization failures do not fail the command; the instance
// degrades to no-op providers and reports it through Health.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	l := loader.New(store, loader.WithTracer(tt.Tracer("test")))
//	tt.AssertSpanExists(t, "modelvault.load")
package telemetry
