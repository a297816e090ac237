// Package observability wires request logging, Prometheus metrics, and
// OpenTelemetry tracing for the HTTP surface.
package observability

import (
	"go.uber.org/fx"

	"github.com/sitedock/sitedock/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Provide(metrics.NewHTTPMetrics),
)
