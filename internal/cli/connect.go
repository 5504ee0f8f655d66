package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drblury/cdpflow"
)

// loadConfig merges the config file, the CDPFLOW_* environment and the
// flags, in that order.
func loadConfig(cmd *cobra.Command, opts *options) (*cdpflow.Config, error) {
	conf := &cdpflow.Config{}
	if opts.configPath != "" {
		loaded, err := cdpflow.LoadConfig(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		conf = loaded
	}

	conf, err := conf.FromEnv()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		conf.Host = opts.host
	}
	if flags.Changed("port") {
		conf.Port = opts.port
	}
	if flags.Changed("tab") {
		conf.Tab = opts.tab
	}
	if flags.Changed("ws-url") {
		conf.WebSocketURL = opts.wsURL
	}
	if flags.Changed("debug") {
		conf.Debug = opts.debug
	}
	if flags.Changed("timeout") {
		conf.DefaultTimeout = opts.timeout
	}
	if flags.Changed("metrics-port") {
		conf.MetricsPort = opts.metricsPort
		conf.MetricsEnabled = opts.metricsPort > 0
	}
	if flags.Changed("stats-port") {
		conf.StatsPort = opts.statsPort
	}
	if flags.Changed("forward") {
		conf.ForwardSink = opts.forwardSink
	}

	conf = conf.WithDefaults()
	if err := cdpflow.ValidateConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func newLogger(w io.Writer, level string) cdpflow.ServiceLogger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cdpflow.ParseLogLevel(level)})
	return cdpflow.NewSlogServiceLogger(slog.New(handler))
}

// connect opens the connection selected by the flags.
func connect(cmd *cobra.Command, opts *options) (*cdpflow.Connection, error) {
	conf, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.logLevel)
	if conf.Debug && !strings.EqualFold(opts.logLevel, "debug") {
		logger = newLogger(cmd.ErrOrStderr(), "debug")
	}

	if !opts.loopback {
		return cdpflow.Connect(cmd.Context(), conf, logger, cdpflow.Dependencies{})
	}

	lb, err := cdpflow.NewLoopback(nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go runDemoBrowser(ctx, lb.Peer())

	conn, err := cdpflow.New(conf, logger, cdpflow.Dependencies{Transport: lb})
	if err != nil {
		cancel()
		_ = lb.Close()
		return nil, err
	}
	go func() {
		<-conn.Done()
		cancel()
	}()
	return conn, nil
}
