package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"marker-navigation/marker_nav"
	"marker-navigation/marker_nav/vision"
)

func main() {
	var configPath string
	var outputAddr string
	var targetID int
	var mode string
	var noKeyboard bool
	flag.StringVar(&configPath, "config", "", "Path to JSON config.")
	flag.StringVar(&outputAddr, "output-addr", "", "Override output UDP addr (host:port).")
	flag.IntVar(&targetID, "target-id", -1, "Override the navigation target marker id.")
	flag.StringVar(&mode, "mode", "", "Initial navigation mode (MANUAL or AUTONOMOUS).")
	flag.BoolVar(&noKeyboard, "no-keyboard", false, "Do not read keys from the terminal.")
	flag.Parse()

	cfg, err := marker_nav.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config %q: %v", configPath, err)
	}
	if outputAddr != "" {
		cfg.Output.UDPAddr = outputAddr
	}
	if targetID >= 0 {
		cfg.Navigation.TargetID = targetID
	}
	if mode != "" {
		m, err := marker_nav.ParseMode(mode)
		if err != nil {
			log.Fatalf("invalid mode %q: %v", mode, err)
		}
		cfg.Navigation.DefaultMode = m
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := run(cfg, !noKeyboard); err != nil {
		log.Fatal(err)
	}
}

func run(cfg marker_nav.AppConfig, keyboard bool) error {
	var console io.Writer = os.Stderr
	if keyboard {
		console = marker_nav.RawTerminalWriter{Out: os.Stderr}
	}
	logger, logFile, err := marker_nav.NewLogger(cfg.Log, console)
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger.Debug().Interface("config", cfg).Msg("effective config")

	tel := marker_nav.NewTelemetry()
	defer func() {
		logCounters(logger, tel)
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()
	metrics, err := marker_nav.NewMetrics(tel.Meter())
	if err != nil {
		return err
	}

	transport, err := marker_nav.NewTransport(cfg.Output)
	if err != nil {
		return err
	}
	dispatcher := marker_nav.NewDispatcher(transport, cfg.Dispatch,
		marker_nav.WithLogger(logger.With().Str("component", "dispatcher").Logger()),
		marker_nav.WithMetrics(metrics),
	)

	camera, err := vision.OpenCamera(cfg.Camera)
	if err != nil {
		_ = dispatcher.Close()
		return err
	}
	defer camera.Close()

	viz, err := marker_nav.StartViz(cfg.Viz, logger, tel)
	if err != nil {
		_ = dispatcher.Close()
		return err
	}

	runner := &marker_nav.Runner{
		Source:     camera,
		Navigator:  marker_nav.NewNavigator(cfg.Navigation),
		Arbiter:    marker_nav.NewArbiter(cfg.Navigation.DefaultMode, dispatcher, logger, metrics),
		Dispatcher: dispatcher,
		Viz:        viz,
		Metrics:    metrics,
		Log:        logger,
	}
	if keyboard {
		runner.Keys = &marker_nav.TerminalKeys{In: os.Stdin, Log: logger}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("target_id", cfg.Navigation.TargetID).
		Str("mode", runner.Arbiter.Mode().String()).
		Str("transport", cfg.Output.Transport).
		Dur("watchdog", cfg.Dispatch.WatchdogTimeout).
		Msg("marker navigation started; arrows drive, a=autonomous, s=manual+stop, esc=quit")
	return runner.Run(ctx)
}

func logCounters(logger zerolog.Logger, tel *marker_nav.Telemetry) {
	counters, err := tel.Counters(context.Background())
	if err != nil {
		logger.Warn().Err(err).Msg("collect counters")
		return
	}
	d := zerolog.Dict()
	for name, v := range counters {
		d = d.Int64(name, v)
	}
	logger.Info().Dict("counters", d).Msg("session counters")
}
