package marker_nav

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters exported by the control loop and dispatcher.
type Metrics struct {
	commandsSent   metric.Int64Counter
	commandsFailed metric.Int64Counter
	watchdogStops  metric.Int64Counter
	frames         metric.Int64Counter
	droppedMarkers metric.Int64Counter
	modeChanges    metric.Int64Counter
}

// NewMetrics registers the counters on meter. A nil meter yields no-op counters.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.Meter{}
	}

	m := &Metrics{}
	var err error
	if m.commandsSent, err = meter.Int64Counter("markernav.commands.sent",
		metric.WithDescription("Commands written to the transport")); err != nil {
		return nil, fmt.Errorf("commands.sent counter: %w", err)
	}
	if m.commandsFailed, err = meter.Int64Counter("markernav.commands.failed",
		metric.WithDescription("Commands the transport failed to send")); err != nil {
		return nil, fmt.Errorf("commands.failed counter: %w", err)
	}
	if m.watchdogStops, err = meter.Int64Counter("markernav.watchdog.stops",
		metric.WithDescription("STOP commands issued by the watchdog")); err != nil {
		return nil, fmt.Errorf("watchdog.stops counter: %w", err)
	}
	if m.frames, err = meter.Int64Counter("markernav.frames",
		metric.WithDescription("Camera frames processed")); err != nil {
		return nil, fmt.Errorf("frames counter: %w", err)
	}
	if m.droppedMarkers, err = meter.Int64Counter("markernav.markers.dropped",
		metric.WithDescription("Malformed marker observations dropped")); err != nil {
		return nil, fmt.Errorf("markers.dropped counter: %w", err)
	}
	if m.modeChanges, err = meter.Int64Counter("markernav.mode.changes",
		metric.WithDescription("Navigation mode transitions")); err != nil {
		return nil, fmt.Errorf("mode.changes counter: %w", err)
	}
	return m, nil
}

func (m *Metrics) commandSent(cmd MotionCommand) {
	if m == nil {
		return
	}
	m.commandsSent.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", cmd.String())))
}

func (m *Metrics) commandFailed(cmd MotionCommand) {
	if m == nil {
		return
	}
	m.commandsFailed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", cmd.String())))
}

func (m *Metrics) watchdogStop() {
	if m == nil {
		return
	}
	m.watchdogStops.Add(context.Background(), 1)
}

func (m *Metrics) frame(dropped int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.frames.Add(ctx, 1)
	if dropped > 0 {
		m.droppedMarkers.Add(ctx, int64(dropped))
	}
}

func (m *Metrics) modeChanged(to Mode) {
	if m == nil {
		return
	}
	m.modeChanges.Add(context.Background(), 1, metric.WithAttributes(attribute.String("mode", to.String())))
}
