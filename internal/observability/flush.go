package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry buffers before process exit.
// Pending spans are exported through shutdownTracer (nil when tracing is disabled),
// then logs are synced. Prometheus is pull-based and needs no flush.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, shutdownTracer func(context.Context) error) error {
	if shutdownTracer != nil {
		if err := shutdownTracer(ctx); err != nil {
			return fmt.Errorf("flush spans: %w", err)
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("flush logs: %w", err)
		}
	}
	return nil
}
