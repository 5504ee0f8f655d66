package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/drblury/cdpflow"
)

// lockedWriter serialises writes from the pump and the command goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, string(line))
}

func newTailCommand(opts *options) *cobra.Command {
	var (
		domains  []string
		duration time.Duration
		console  bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Enable protocol domains and print their events",
		Long: "Enable each domain given with --enable and print every event as one JSON line until interrupted.\n" +
			"With --console only console messages are printed. Use --forward to also publish the events to a sink.",
		Example: `  cdpflow tail --enable Page,Network
  cdpflow tail --console --duration 30s
  cdpflow tail --loopback --forward io`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			if !console {
				if _, err := conn.Register("tail", func(msg cdpflow.Message) error {
					if !msg.IsEvent() {
						return nil
					}
					line, err := cdpflow.Marshal(msg)
					if err != nil {
						return err
					}
					out.println(line)
					return nil
				}); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			for _, domain := range domains {
				domain = strings.TrimSpace(domain)
				if domain == "" {
					continue
				}
				if _, err := conn.Domain(domain).Call(ctx, "enable", nil); err != nil {
					return fmt.Errorf("enable %s: %w", domain, err)
				}
			}

			return follow(ctx, conn, out, duration, console)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&domains, "enable", []string{"Page", "Network", "Runtime"}, "domains to enable")
	flags.DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	flags.BoolVar(&console, "console", false, "print console messages instead of events")
	return cmd
}

// follow waits for the end of the session, printing console messages when
// asked to and surfacing relayed failures.
func follow(ctx context.Context, conn *cdpflow.Connection, out *lockedWriter, duration time.Duration, console bool) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if console {
			if err := printConsole(conn, out); err != nil {
				return err
			}
		}
		if err := conn.Relay().Drain(); err != nil {
			if errors.Is(err, cdpflow.ErrTargetCrashed) {
				return err
			}
			conn.Logger.Error("Event handler failed", err, nil)
		}

		select {
		case <-ctx.Done():
			if console {
				return printConsole(conn, out)
			}
			return nil
		case <-conn.Done():
			return errors.New("connection to the browser was lost")
		case <-ticker.C:
		}
	}
}

func printConsole(conn *cdpflow.Connection, out *lockedWriter) error {
	for {
		msg, ok := conn.ReadConsoleMessage()
		if !ok {
			return nil
		}
		line, err := cdpflow.Marshal(map[string]any{"type": msg.Type, "args": msg.Args})
		if err != nil {
			return err
		}
		out.println(line)
	}
}
