package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rzbill/subrelay/pkg/api/client"
	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/spf13/cobra"
)

func newSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Work with served subscriptions",
	}
	cmd.AddCommand(newSubFetchCmd())
	cmd.AddCommand(newSubURLCmd())
	return cmd
}

func newSubFetchCmd() *cobra.Command {
	var outFile string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "fetch <name>",
		Short: "Fetch the rewritten sing-box document for a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()

			doc, err := api.Subscription(ctx, args[0])
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && verbose && len(apiErr.Body) > 0 {
					var buf bytes.Buffer
					if json.Indent(&buf, apiErr.Body, "", "  ") == nil {
						fmt.Fprintln(cmd.ErrOrStderr(), buf.String())
					}
				}
				return err
			}

			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, doc, "", "  "); err == nil {
					doc = buf.Bytes()
				}
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, doc, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), format.Success("Wrote %d bytes to %s", len(doc), outFile))
				return nil
			}
			_, err = cmd.OutOrStdout().Write(doc)
			if err == nil && !bytes.HasSuffix(doc, []byte("\n")) {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return err
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "write the document to a file instead of stdout")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON document")
	return cmd
}

func newSubURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <name>",
		Short: "Print the public subscription URL for a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), api.SubscriptionURL(args[0]))
			return nil
		},
	}
}
