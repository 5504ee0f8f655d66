package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drblury/cdpflow"
	_ "github.com/drblury/cdpflow/sink/sinks"
)

func newSinksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sinks",
		Short: "List the event sinks available to --forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tDURABLE\tREMOTE\tORDERED\tMAX SIZE")
			for _, name := range cdpflow.SinkNames() {
				caps := cdpflow.GetSinkCapabilities(name)
				size := "-"
				if caps.MaxMessageSize > 0 {
					size = fmt.Sprintf("%d", caps.MaxMessageSize)
				}
				_, _ = fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%s\n", name, caps.Durable, caps.Remote, caps.SupportsOrdering, size)
			}
			return w.Flush()
		},
	}
}
