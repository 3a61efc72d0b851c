package marker_nav

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markernav.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `{
		"navigation": {
			"target_id": 7,
			"size_stop_threshold": 150,
			"left_zone_fraction": 0.4,
			"right_zone_fraction": 0.6,
			"reserved_ids": [1, 2, 3],
			"default_mode": "autonomous"
		},
		"dispatch": { "watchdog_timeout": "250ms" },
		"output": { "udp_addr": "192.168.1.50:12345" },
		"camera": { "device": 2, "preview": true },
		"log": { "level": "debug" }
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Navigation.TargetID)
	assert.Equal(t, 150.0, cfg.Navigation.SizeStopThreshold)
	assert.Equal(t, 0.4, cfg.Navigation.LeftZoneFraction)
	assert.Equal(t, 0.6, cfg.Navigation.RightZoneFraction)
	assert.Equal(t, []int{1, 2, 3}, cfg.Navigation.ReservedIDs)
	assert.Equal(t, ModeAutonomous, cfg.Navigation.DefaultMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.WatchdogTimeout)
	assert.Equal(t, "udp", cfg.Output.Transport)
	assert.Equal(t, "192.168.1.50:12345", cfg.Output.UDPAddr)
	assert.Equal(t, "2", cfg.Camera.Device)
	assert.True(t, cfg.Camera.Preview)
	assert.Equal(t, "4x4_250", cfg.Camera.Dictionary)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 72, cfg.Navigation.TargetID)
	assert.Equal(t, 200.0, cfg.Navigation.SizeStopThreshold)
	assert.InDelta(t, 1.0/3.0, cfg.Navigation.LeftZoneFraction, 1e-12)
	assert.InDelta(t, 2.0/3.0, cfg.Navigation.RightZoneFraction, 1e-12)
	assert.Equal(t, []int{24, 48}, cfg.Navigation.ReservedIDs)
	assert.Equal(t, ModeManual, cfg.Navigation.DefaultMode)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.WatchdogTimeout)
	assert.Equal(t, 115200, cfg.Output.BaudRate)
	assert.Equal(t, "0", cfg.Camera.Device)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Viz.Enabled)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.udp_addr must be set")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MARKERNAV_OUTPUT_UDP_ADDR", "10.0.0.5:9000")
	t.Setenv("MARKERNAV_NAVIGATION_TARGET_ID", "11")
	t.Setenv("MARKERNAV_DISPATCH_WATCHDOG_TIMEOUT", "1s")

	cfg, err := LoadConfig(writeConfig(t, `{"navigation": {"target_id": 3}}`))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:9000", cfg.Output.UDPAddr)
	assert.Equal(t, 11, cfg.Navigation.TargetID)
	assert.Equal(t, time.Second, cfg.Dispatch.WatchdogTimeout)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_BadMode(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"navigation": {"default_mode": "HOVER"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func validConfig() AppConfig {
	return AppConfig{
		Navigation: NavigatorConfig{
			TargetID:          72,
			SizeStopThreshold: 200,
			LeftZoneFraction:  1.0 / 3.0,
			RightZoneFraction: 2.0 / 3.0,
			ReservedIDs:       []int{24, 48},
		},
		Dispatch: DispatchConfig{WatchdogTimeout: 500 * time.Millisecond},
		Output:   OutputConfig{Transport: "udp", UDPAddr: "127.0.0.1:12345"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"zero threshold", func(c *AppConfig) { c.Navigation.SizeStopThreshold = 0 }, "size_stop_threshold"},
		{"left above right", func(c *AppConfig) {
			c.Navigation.LeftZoneFraction, c.Navigation.RightZoneFraction = 0.7, 0.3
		}, "0 < left < right < 1"},
		{"right beyond frame", func(c *AppConfig) { c.Navigation.RightZoneFraction = 1.2 }, "0 < left < right < 1"},
		{"target reserved", func(c *AppConfig) { c.Navigation.TargetID = 24 }, "is also reserved"},
		{"negative watchdog", func(c *AppConfig) { c.Dispatch.WatchdogTimeout = -time.Second }, "watchdog_timeout"},
		{"serial without port", func(c *AppConfig) { c.Output.Transport = "serial" }, "serial_port"},
		{"unknown transport", func(c *AppConfig) { c.Output.Transport = "carrier-pigeon" }, "not udp or serial"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" manual ")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, m)

	m, err = ParseMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, ModeAutonomous, m)

	_, err = ParseMode("track")
	assert.Error(t, err)
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "markernav.example.json"))
	require.NoError(t, err)
	assert.Equal(t, 72, cfg.Navigation.TargetID)
	assert.Equal(t, "udp", cfg.Output.Transport)
	assert.NoError(t, cfg.Validate())
}
