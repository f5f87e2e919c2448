package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tsipmon/internal/config"
	"tsipmon/internal/gpstime"
	"tsipmon/internal/logging"
	"tsipmon/internal/monitor"
	"tsipmon/internal/mqttpub"
	"tsipmon/internal/packet"
	"tsipmon/internal/source"
	"tsipmon/internal/udp"
	"tsipmon/internal/web"
)

type options struct {
	configPath string
	input      string
	debug      bool
	summary    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "./tsipmon.yaml", "Path to YAML or TOML config")
	flag.StringVar(&opts.input, "input", "", "Decode this capture file instead of the configured source ('-' reads stdin)")
	flag.BoolVar(&opts.debug, "debug", false, "Log at debug level and trace every frame")
	flag.BoolVar(&opts.summary, "summary", false, "Print per-packet counts when the session ends")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "tsipmon: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Read(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config load failed: %w", err)
	}
	switch opts.input {
	case "":
	case "-":
		cfg.Source = config.SourceConfig{Kind: config.SourceStdin}
	default:
		cfg.Source = config.SourceConfig{Kind: config.SourceFile, Path: opts.input}
	}
	if opts.debug {
		cfg.Log.Level = "debug"
		cfg.Log.DebugFrames = true
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("config invalid: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var logs *web.LogBuffer
	logOut := stderr
	if cfg.Output.Web.Enable {
		logs = web.NewLogBuffer(2000)
		logOut = io.MultiWriter(stderr, logs)
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: logOut})
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings(time.Now()) {
		log.Warn().Msg(w)
	}

	norm, err := gpstime.NewNormalizer(cfg.Decode.ReferenceWeek)
	if err != nil {
		return err
	}
	reg, err := packet.NewRegistry(packet.Options{
		Time:              norm,
		Firmware:          packet.FirmwareLayout(cfg.Decode.FirmwareLayout),
		Bias:              packet.BiasLayout(cfg.Decode.BiasLayout),
		AlmanacRecordSize: cfg.Decode.AlmanacRecordSize,
	})
	if err != nil {
		return err
	}

	sinks, closeSinks, err := openSinks(cfg.Output, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	var feed *web.EventFeed
	if cfg.Output.Web.Enable {
		feed = web.NewEventFeed()
		sinks = append(sinks, feed)
	}

	commands := make([]monitor.Command, 0, len(cfg.Commands))
	for _, c := range cfg.Commands {
		commands = append(commands, monitor.Command{ID: byte(c.ID), Payload: c.Bytes})
	}

	svc, err := monitor.New(monitor.Config{
		Registry:    reg,
		MaxPayload:  cfg.Decode.MaxPayload,
		DebugFrames: cfg.Log.DebugFrames,
		Commands:    commands,
		Sinks:       sinks,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	webDone := make(chan struct{})
	webCtx, stopWeb := context.WithCancel(ctx)
	defer func() {
		stopWeb()
		<-webDone
	}()
	if cfg.Output.Web.Enable {
		status := web.NewStatus(svc, feed)
		go func() {
			defer close(webDone)
			if err := web.Serve(webCtx, cfg.Output.Web.Listen, status, feed, logs, log); err != nil && webCtx.Err() == nil {
				log.Error().Err(err).Msg("web server stopped")
			}
		}()
	} else {
		close(webDone)
	}

	src, err := source.Open(cfg.Source, stdin)
	if err != nil {
		return err
	}
	log.Info().
		Str("source", src.Name()).
		Int("reference_week", cfg.Decode.ReferenceWeek).
		Str("firmware_layout", cfg.Decode.FirmwareLayout).
		Str("bias_layout", cfg.Decode.BiasLayout).
		Int("almanac_record_size", cfg.Decode.AlmanacRecordSize).
		Msg("tsipmon starting")

	err = svc.Run(ctx, src)
	if opts.summary {
		writeSummary(stdout, svc.Snapshot(), reg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("tsipmon stopping")
	return nil
}

func openSinks(out config.OutputConfig, log zerolog.Logger) ([]monitor.Sink, func(), error) {
	var (
		sinks   []monitor.Sink
		closers []io.Closer
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	if out.UDP.Enable {
		s, err := udp.DialEventSink(out.UDP.Dest)
		if err != nil {
			return nil, nil, fmt.Errorf("udp sink init failed: %w", err)
		}
		sinks = append(sinks, s)
		closers = append(closers, s)
		log.Info().Str("dest", out.UDP.Dest).Msg("udp sink enabled")
	}

	if out.MQTT.Enable {
		p, err := mqttpub.Connect(mqttpub.Options{
			Broker:      out.MQTT.Broker,
			ClientID:    out.MQTT.ClientID,
			TopicPrefix: out.MQTT.TopicPrefix,
			QoS:         byte(out.MQTT.QoS),
			Retain:      out.MQTT.Retain,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, p)
		closers = append(closers, p)
		log.Info().Str("broker", out.MQTT.Broker).Str("prefix", out.MQTT.TopicPrefix).Msg("mqtt sink enabled")
	}

	return sinks, closeAll, nil
}
