package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drblury/cdpflow"
)

func newTargetsCommand(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the debugging targets of the browser",
		Long:  "List the targets reported by the DevTools HTTP endpoint. The INDEX column is the value to pass to --tab.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			targets, err := cdpflow.ListTargets(cmd.Context(), conf.Host, conf.Port)
			if err != nil {
				return err
			}
			pages := cdpflow.Pages(targets)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "INDEX\tID\tTYPE\tTITLE\tURL")
			for i, p := range pages {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, p.ID, p.Type, p.Title, p.URL)
			}
			if all {
				for _, t := range targets {
					if t.Type == "page" {
						continue
					}
					_, _ = fmt.Fprintf(w, "-\t%s\t%s\t%s\t%s\n", t.ID, t.Type, t.Title, t.URL)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also list workers, iframes and other non-page targets")
	return cmd
}
