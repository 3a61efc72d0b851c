package marker_nav

import (
	"sync"

	"github.com/rs/zerolog"
)

// CommandSender is anything that accepts motion commands, normally a Dispatcher.
type CommandSender interface {
	Send(cmd MotionCommand)
}

// Arbiter decides whether the keyboard or the navigator drives the robot.
//
// Key handling and autonomous forwarding share one lock, so a navigator command
// computed before a switch to MANUAL can never reach the robot after the
// forced STOP that the switch sends.
type Arbiter struct {
	out     CommandSender
	log     zerolog.Logger
	metrics *Metrics

	mu   sync.Mutex
	mode Mode
}

// NewArbiter starts in initial mode, or MANUAL when initial is unset.
func NewArbiter(initial Mode, out CommandSender, log zerolog.Logger, metrics *Metrics) *Arbiter {
	if initial != ModeAutonomous {
		initial = ModeManual
	}
	return &Arbiter{out: out, log: log, metrics: metrics, mode: initial}
}

// Mode returns the current navigation mode.
func (a *Arbiter) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// HandleKey applies one keyboard event and reports whether it requests exit.
func (a *Arbiter) HandleKey(ev KeyEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Key {
	case KeyExit:
		return ev.Action == KeyPress
	case KeyAutonomous:
		if ev.Action == KeyPress {
			a.setModeLocked(ModeAutonomous)
		}
	case KeyManual:
		if ev.Action == KeyPress {
			a.setModeLocked(ModeManual)
			a.out.Send(CommandStop)
		}
	default:
		cmd, ok := ev.Key.Direction()
		if !ok || a.mode != ModeManual {
			return false
		}
		if ev.Action == KeyRelease {
			cmd = CommandStop
		}
		a.out.Send(cmd)
	}
	return false
}

// Autonomous forwards cmd only while in AUTONOMOUS mode and reports whether it did.
func (a *Arbiter) Autonomous(cmd MotionCommand) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != ModeAutonomous {
		return false
	}
	a.out.Send(cmd)
	return true
}

func (a *Arbiter) setModeLocked(to Mode) {
	if a.mode == to {
		return
	}
	a.log.Info().Str("from", a.mode.String()).Str("to", to.String()).Msg("navigation mode changed")
	a.mode = to
	a.metrics.modeChanged(to)
}
