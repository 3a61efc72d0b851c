package marker_nav

import (
	"fmt"
	"strings"
)

// Point is a corner location in image pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// MarkerObservation is a single detected marker as reported by the detector.
//
// Corners are in detection order: corner[0]->corner[1] is the marker's top edge.
type MarkerObservation struct {
	ID      int
	Corners []Point
}

// Detection is everything the control loop needs from one camera frame.
type Detection struct {
	Width   int
	Height  int
	Markers []MarkerObservation
}

// PixelPoint is an integer pixel location.
type PixelPoint struct {
	X int
	Y int
}

// MarkerGeometry is the per-frame geometry derived from one observation.
type MarkerGeometry struct {
	ID                 int
	Center             PixelPoint
	OrientationDegrees int
	SizeMetric         float64 // diagonal in pixels, larger implies closer
}

// Mode selects who drives the robot.
type Mode int

const (
	ModeManual Mode = iota + 1
	ModeAutonomous
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANUAL"
	case ModeAutonomous:
		return "AUTONOMOUS"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode enum.
func ParseMode(value string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "MANUAL":
		return ModeManual, nil
	case "AUTONOMOUS", "AUTO":
		return ModeAutonomous, nil
	default:
		return ModeManual, fmt.Errorf("unknown mode %q", value)
	}
}

// UnmarshalText allows modes to be loaded from config strings.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText writes the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MotionCommand is the discrete command understood by the actuator firmware.
type MotionCommand int

const (
	CommandStop MotionCommand = iota
	CommandForward
	CommandBackward
	CommandTurnLeft
	CommandTurnRight
)

func (c MotionCommand) String() string {
	switch c {
	case CommandStop:
		return "STOP"
	case CommandForward:
		return "FORWARD"
	case CommandBackward:
		return "BACKWARD"
	case CommandTurnLeft:
		return "TURN_LEFT"
	case CommandTurnRight:
		return "TURN_RIGHT"
	default:
		return fmt.Sprintf("MotionCommand(%d)", int(c))
	}
}

// Token returns the single-letter wire token for the command.
// Unknown values encode as stop.
func (c MotionCommand) Token() byte {
	switch c {
	case CommandForward:
		return 'F'
	case CommandBackward:
		return 'B'
	case CommandTurnLeft:
		return 'L'
	case CommandTurnRight:
		return 'R'
	default:
		return 'S'
	}
}
