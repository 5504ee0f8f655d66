package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drblury/cdpflow"
)

func newCallCommand(opts *options) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "call METHOD [PARAMS]",
		Short: "Issue one protocol command and print its result",
		Long: "Issue METHOD (for example Page.navigate) with the JSON object PARAMS and print the result object.\n" +
			"Remote errors are reported with their protocol error code.",
		Example: `  cdpflow call Page.navigate '{"url":"https://example.com"}'
  cdpflow call Browser.getVersion`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]any
			if len(args) == 2 {
				if err := cdpflow.Unmarshal([]byte(args[1]), &params); err != nil {
					return fmt.Errorf("params must be a JSON object: %w", err)
				}
			}

			conn, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			var callOpts []cdpflow.CallOption
			if sessionID != "" {
				callOpts = append(callOpts, cdpflow.WithSessionID(sessionID))
			}
			res, err := conn.Call(cmd.Context(), args[0], params, callOpts...)
			if err != nil {
				return err
			}

			out, err := cdpflow.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "route the command to an attached target session")
	return cmd
}
