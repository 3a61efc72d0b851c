package marker_nav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// CameraConfig selects the capture device and marker dictionary.
type CameraConfig struct {
	Device     string `json:"device" mapstructure:"device"`
	Dictionary string `json:"dictionary" mapstructure:"dictionary"`
	Preview    bool   `json:"preview" mapstructure:"preview"`
}

// LogConfig controls console and file logging.
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file" mapstructure:"file"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Navigation NavigatorConfig `json:"navigation" mapstructure:"navigation"`
	Dispatch   DispatchConfig  `json:"dispatch" mapstructure:"dispatch"`
	Output     OutputConfig    `json:"output" mapstructure:"output"`
	Camera     CameraConfig    `json:"camera" mapstructure:"camera"`
	Viz        VizConfig       `json:"viz" mapstructure:"viz"`
	Log        LogConfig       `json:"log" mapstructure:"log"`
}

// EnvPrefix is prepended to environment overrides, e.g. MARKERNAV_OUTPUT_UDP_ADDR.
const EnvPrefix = "MARKERNAV"

func setDefaults(v *viper.Viper) {
	v.SetDefault("navigation.target_id", 72)
	v.SetDefault("navigation.size_stop_threshold", 200.0)
	v.SetDefault("navigation.left_zone_fraction", 1.0/3.0)
	v.SetDefault("navigation.right_zone_fraction", 2.0/3.0)
	v.SetDefault("navigation.reserved_ids", []int{24, 48})
	v.SetDefault("navigation.default_mode", "MANUAL")

	v.SetDefault("dispatch.watchdog_timeout", "500ms")

	v.SetDefault("output.transport", "udp")
	v.SetDefault("output.udp_addr", "")
	v.SetDefault("output.serial_port", "")
	v.SetDefault("output.baud_rate", 115200)

	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.dictionary", "4x4_250")
	v.SetDefault("camera.preview", false)

	v.SetDefault("viz.enabled", false)
	v.SetDefault("viz.addr", "127.0.0.1:7070")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// LoadConfig reads the JSON config at path and applies defaults and environment
// overrides. An empty path uses defaults and environment only. Callers apply
// their own overrides and then call Validate.
func LoadConfig(path string) (AppConfig, error) {
	var cfg AppConfig

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c AppConfig) Validate() error {
	var errs []error
	n := c.Navigation
	if n.SizeStopThreshold <= 0 {
		errs = append(errs, fmt.Errorf("navigation.size_stop_threshold must be > 0, got %v", n.SizeStopThreshold))
	}
	if n.LeftZoneFraction <= 0 || n.RightZoneFraction >= 1 || n.LeftZoneFraction >= n.RightZoneFraction {
		errs = append(errs, fmt.Errorf("navigation zones must satisfy 0 < left < right < 1, got %v/%v",
			n.LeftZoneFraction, n.RightZoneFraction))
	}
	for _, id := range n.ReservedIDs {
		if id == n.TargetID {
			errs = append(errs, fmt.Errorf("navigation.target_id %d is also reserved", id))
		}
	}
	if c.Dispatch.WatchdogTimeout < 0 {
		errs = append(errs, fmt.Errorf("dispatch.watchdog_timeout must be >= 0, got %v", c.Dispatch.WatchdogTimeout))
	}
	switch strings.ToLower(c.Output.Transport) {
	case "", "udp":
		if c.Output.UDPAddr == "" {
			errs = append(errs, errors.New("output.udp_addr must be set"))
		}
	case "serial":
		if c.Output.SerialPort == "" {
			errs = append(errs, errors.New("output.serial_port must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("output.transport %q is not udp or serial", c.Output.Transport))
	}
	return errors.Join(errs...)
}
