package marker_nav

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DispatchConfig controls the command watchdog.
type DispatchConfig struct {
	// WatchdogTimeout is how long a non-STOP command stays in effect without a
	// refresh. Zero disables the watchdog.
	WatchdogTimeout time.Duration `json:"watchdog_timeout" mapstructure:"watchdog_timeout"`
}

// TransportState describes the last command put on the wire.
type TransportState struct {
	LastCommand   MotionCommand
	LastSent      time.Time
	Sent          uint64
	Failed        uint64
	WatchdogStops uint64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics attaches command counters.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher encodes motion commands and sends them best-effort.
//
// Every non-STOP command arms a single watchdog; if no newer command arrives
// before it expires, one STOP is sent. A newer command always replaces the
// pending watchdog instead of stacking another one.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
	clock     Clock
	log       zerolog.Logger
	metrics   *Metrics

	mu       sync.Mutex
	state    TransportState
	watchdog Timer
	gen      uint64
	closed   bool
}

// NewDispatcher builds a dispatcher on top of transport.
func NewDispatcher(transport Transport, cfg DispatchConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		timeout:   cfg.WatchdogTimeout,
		clock:     RealClock{},
		log:       zerolog.Nop(),
		state:     TransportState{LastCommand: CommandStop},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send transmits cmd and reschedules the watchdog.
func (d *Dispatcher) Send(cmd MotionCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.sendLocked(cmd)
	d.rearmLocked(cmd)
}

// State returns a copy of the transport state.
func (d *Dispatcher) State() TransportState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close cancels the watchdog, sends a final STOP and releases the transport.
// It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.cancelLocked()
	d.sendLocked(CommandStop)
	d.closed = true
	if d.transport == nil {
		return nil
	}
	return d.transport.Close()
}

func (d *Dispatcher) sendLocked(cmd MotionCommand) {
	now := d.clock.Now()
	var err error
	if d.transport != nil {
		err = d.transport.Send([]byte{cmd.Token()})
	}
	d.state.LastCommand = cmd
	d.state.LastSent = now
	if err != nil {
		d.state.Failed++
		d.metrics.commandFailed(cmd)
		d.log.Warn().Err(err).Str("command", cmd.String()).Msg("command send failed")
		return
	}
	d.state.Sent++
	d.metrics.commandSent(cmd)
	d.log.Trace().Str("command", cmd.String()).Str("token", string(cmd.Token())).Msg("sent command")
}

// cancelLocked stops any pending watchdog and invalidates callbacks already in flight.
func (d *Dispatcher) cancelLocked() {
	d.gen++
	if d.watchdog != nil {
		d.watchdog.Stop()
		d.watchdog = nil
	}
}

func (d *Dispatcher) rearmLocked(cmd MotionCommand) {
	d.cancelLocked()
	if cmd == CommandStop || d.timeout <= 0 {
		return
	}
	gen := d.gen
	d.watchdog = d.clock.AfterFunc(d.timeout, func() { d.expire(gen) })
}

func (d *Dispatcher) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || gen != d.gen {
		return
	}
	d.watchdog = nil
	d.gen++
	d.state.WatchdogStops++
	d.metrics.watchdogStop()
	d.log.Debug().Str("after", d.state.LastCommand.String()).Dur("timeout", d.timeout).Msg("watchdog stop")
	d.sendLocked(CommandStop)
}
