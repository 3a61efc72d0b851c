package marker_nav

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies this process in exported telemetry.
const ServiceName = "marker-navigation"

// Telemetry owns the metric SDK provider. Counters are pulled on demand by
// the viz endpoint and summarised in the shutdown log.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// NewTelemetry creates a meter provider backed by a manual reader.
func NewTelemetry() *Telemetry {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(ServiceName))),
	)
	return &Telemetry{provider: provider, reader: reader}
}

// Meter returns the meter the control loop registers its counters on.
func (t *Telemetry) Meter() metric.Meter {
	return t.provider.Meter(ServiceName)
}

// Counters collects every integer counter. Each instrument appears once with
// its total, plus once per attribute set, e.g.
// "markernav.commands.sent{command=FORWARD}".
func (t *Telemetry) Counters(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			total := int64(0)
			for i := range sum.DataPoints {
				dp := &sum.DataPoints[i]
				total += dp.Value
				if dp.Attributes.Len() > 0 {
					out[m.Name+"{"+dp.Attributes.Encoded(attribute.DefaultEncoder())+"}"] += dp.Value
				}
			}
			out[m.Name] = total
		}
	}
	return out, nil
}

// Shutdown releases the provider. Counters cannot be collected afterwards.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
