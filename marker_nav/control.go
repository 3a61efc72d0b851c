package marker_nav

// NavigatorConfig holds the target selection and steering zones.
type NavigatorConfig struct {
	TargetID          int     `json:"target_id" mapstructure:"target_id"`
	SizeStopThreshold float64 `json:"size_stop_threshold" mapstructure:"size_stop_threshold"`
	LeftZoneFraction  float64 `json:"left_zone_fraction" mapstructure:"left_zone_fraction"`
	RightZoneFraction float64 `json:"right_zone_fraction" mapstructure:"right_zone_fraction"`

	// ReservedIDs are never treated as navigation targets.
	ReservedIDs []int `json:"reserved_ids" mapstructure:"reserved_ids"`
	DefaultMode Mode  `json:"default_mode" mapstructure:"default_mode"`
}

// Reason explains why the navigator chose a command.
type Reason string

const (
	ReasonTargetLost Reason = "target_lost"
	ReasonClose      Reason = "close_enough"
	ReasonLeftZone   Reason = "left_zone"
	ReasonRightZone  Reason = "right_zone"
	ReasonCentered   Reason = "centered"
)

// Decision is a navigator command together with what produced it.
type Decision struct {
	Command MotionCommand
	Reason  Reason
	Target  *MarkerGeometry
}

// Navigator turns the target marker's position into a discrete motion command.
//
// It keeps no state between frames.
type Navigator struct {
	Cfg NavigatorConfig
}

// NewNavigator constructs a navigator, filling unset zone fractions with thirds.
func NewNavigator(cfg NavigatorConfig) *Navigator {
	if cfg.LeftZoneFraction == 0 && cfg.RightZoneFraction == 0 {
		cfg.LeftZoneFraction = 1.0 / 3.0
		cfg.RightZoneFraction = 2.0 / 3.0
	}
	return &Navigator{Cfg: cfg}
}

// Decide returns the command for the current frame.
func (n *Navigator) Decide(snapshots GeometryMap, frameWidth, frameHeight int) MotionCommand {
	return n.Explain(snapshots, frameWidth, frameHeight).Command
}

// Explain is Decide with the reason and target geometry attached.
func (n *Navigator) Explain(snapshots GeometryMap, frameWidth, frameHeight int) Decision {
	target, ok := snapshots[n.Cfg.TargetID]
	if !ok {
		return Decision{Command: CommandStop, Reason: ReasonTargetLost}
	}

	d := Decision{Target: &target}
	width := float64(frameWidth)
	x := float64(target.Center.X)
	switch {
	case target.SizeMetric >= n.Cfg.SizeStopThreshold:
		d.Command, d.Reason = CommandStop, ReasonClose
	case x < width*n.Cfg.LeftZoneFraction:
		d.Command, d.Reason = CommandTurnLeft, ReasonLeftZone
	case x > width*n.Cfg.RightZoneFraction:
		d.Command, d.Reason = CommandTurnRight, ReasonRightZone
	default:
		d.Command, d.Reason = CommandForward, ReasonCentered
	}
	return d
}

// reservedSet converts the reserved id list into a lookup set.
func (n *Navigator) reservedSet() map[int]struct{} {
	set := make(map[int]struct{}, len(n.Cfg.ReservedIDs))
	for _, id := range n.Cfg.ReservedIDs {
		if id == n.Cfg.TargetID {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
