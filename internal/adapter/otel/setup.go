// Package otel provides OpenTelemetry instrumentation for the scoring service.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Exporter wiring is left to
// deployment; the HTTP middleware and metric instruments work against the
// global providers either way.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("otel initialized", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
