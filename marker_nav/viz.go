package marker_nav

import (
	"context"
	"expvar"
	"net/http"

	"github.com/rs/zerolog"
)

// VizConfig controls the optional expvar endpoint used for live plotting.
type VizConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// VizMetrics exposes the latest target geometry and command via expvar.
type VizMetrics struct {
	target *expvar.Map
	output *expvar.Map
	frames *expvar.Int
}

// StartViz starts an HTTP server exposing /debug/vars. When tel is set its
// counters are published under "counters".
func StartViz(cfg VizConfig, log zerolog.Logger, tel *Telemetry) (*VizMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7070"
	}

	v := newVizMetrics(tel, log)
	server := &http.Server{Addr: cfg.Addr, Handler: http.DefaultServeMux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", cfg.Addr).Msg("viz server error")
		}
	}()
	log.Info().Str("addr", cfg.Addr).Msg("viz endpoint listening")
	return v, nil
}

// newVizMetrics publishes the expvar names; it may only run once per process.
func newVizMetrics(tel *Telemetry, log zerolog.Logger) *VizMetrics {
	v := &VizMetrics{
		target: expvar.NewMap("target"),
		output: expvar.NewMap("output"),
		frames: expvar.NewInt("frames"),
	}
	for _, key := range []string{"visible", "cx", "cy", "size", "angle"} {
		v.target.Set(key, new(expvar.Float))
	}
	v.output.Set("command", new(expvar.String))
	v.output.Set("mode", new(expvar.String))
	v.output.Set("forwarded", new(expvar.Int))
	if tel != nil {
		expvar.Publish("counters", expvar.Func(func() any {
			counters, err := tel.Counters(context.Background())
			if err != nil {
				log.Warn().Err(err).Msg("collect counters for viz")
				return map[string]int64{}
			}
			return counters
		}))
	}
	return v
}

// Update publishes one frame's decision.
func (v *VizMetrics) Update(d Decision, mode Mode, forwarded bool) {
	if v == nil {
		return
	}
	v.frames.Add(1)
	if d.Target != nil {
		setFloat(v.target, "visible", 1)
		setFloat(v.target, "cx", float64(d.Target.Center.X))
		setFloat(v.target, "cy", float64(d.Target.Center.Y))
		setFloat(v.target, "size", d.Target.SizeMetric)
		setFloat(v.target, "angle", float64(d.Target.OrientationDegrees))
	} else {
		setFloat(v.target, "visible", 0)
	}
	setString(v.output, "command", d.Command.String())
	setString(v.output, "mode", mode.String())
	if forwarded {
		v.output.Add("forwarded", 1)
	}
}

// setFloat updates an expvar.Float stored inside a map.
func setFloat(m *expvar.Map, key string, value float64) {
	if f, ok := m.Get(key).(*expvar.Float); ok {
		f.Set(value)
		return
	}
	f := new(expvar.Float)
	f.Set(value)
	m.Set(key, f)
}

func setString(m *expvar.Map, key, value string) {
	if s, ok := m.Get(key).(*expvar.String); ok {
		s.Set(value)
		return
	}
	s := new(expvar.String)
	s.Set(value)
	m.Set(key, s)
}
