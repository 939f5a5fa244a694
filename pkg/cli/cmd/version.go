package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/rzbill/subrelay/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var clientOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the SubRelay version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, format.KeyValue("Client", version.Info()))
			if clientOnly {
				return nil
			}

			api, err := newAPIClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			info, err := api.ServerVersion(ctx)
			if err != nil {
				fmt.Fprintln(out, format.KeyValue("Server", format.Warning("unreachable (%s)", api.Address())))
				if verbose {
					fmt.Fprintln(cmd.ErrOrStderr(), format.Muted("%v", err))
				}
				return nil
			}
			fmt.Fprintln(out, format.KeyValue("Server", fmt.Sprintf("%s v%s (%s) - %s/%s",
				api.Address(), info["version"], info["commit"], info["os"], info["arch"])))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clientOnly, "client", false, "only print the client version")
	return cmd
}
