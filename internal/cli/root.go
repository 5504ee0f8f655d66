// Package cli implements the cdpflow command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// options holds the global flags shared by every subcommand.
type options struct {
	configPath  string
	host        string
	port        int
	tab         int
	wsURL       string
	debug       bool
	logLevel    string
	timeout     time.Duration
	loopback    bool
	metricsPort int
	statsPort   int
	forwardSink string
}

// NewRootCommand builds the cdpflow command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "cdpflow",
		Short: "Chrome DevTools Protocol client",
		Long: "cdpflow talks to a browser started with --remote-debugging-port: it lists targets, " +
			"issues protocol commands and streams events, optionally forwarding them to an event sink.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "TOML config file")
	flags.StringVar(&opts.host, "host", "", "DevTools host (default localhost)")
	flags.IntVar(&opts.port, "port", 0, "DevTools port (default 9222)")
	flags.IntVar(&opts.tab, "tab", 0, "index of the page target to attach to")
	flags.StringVar(&opts.wsURL, "ws-url", "", "websocket debugger URL, skips target discovery")
	flags.BoolVar(&opts.debug, "debug", false, "log every frame sent and received")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.DurationVar(&opts.timeout, "timeout", 0, "call timeout (default 20s)")
	flags.BoolVar(&opts.loopback, "loopback", false, "talk to a simulated in-process browser")
	flags.IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port")
	flags.IntVar(&opts.statsPort, "stats-port", 0, "serve connection stats on this port")
	flags.StringVar(&opts.forwardSink, "forward", "", "forward events to this sink (see 'cdpflow sinks')")

	root.AddCommand(
		newCallCommand(opts),
		newTargetsCommand(opts),
		newTailCommand(opts),
		newSinksCommand(),
	)
	return root
}

// Execute runs the command line until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
