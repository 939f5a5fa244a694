package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rzbill/subrelay/pkg/api/client"
	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/rzbill/subrelay/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"configs", "cfg"},
		Short:   "Manage subscription configurations",
	}
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigCreateCmd())
	cmd.AddCommand(newConfigUpdateCmd())
	cmd.AddCommand(newConfigDeleteCmd())
	cmd.AddCommand(newConfigApplyCmd())
	return cmd
}

// withConfigClient runs fn with an authenticated config client and a
// bounded context.
func withConfigClient(cmd *cobra.Command, fn func(ctx context.Context, api *client.Client, configs *client.ConfigClient) error) error {
	api, err := newAPIClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	err = fn(ctx, api, client.NewConfigClient(api))
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%w; run `subrelay login` first", err)
	}
	return err
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configurations, most recently saved first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfigClient(cmd, func(ctx context.Context, _ *client.Client, configs *client.ConfigClient) error {
				list, err := configs.List(ctx)
				if err != nil {
					return err
				}
				return outputResource(cmd.OutOrStdout(), list)
			})
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfigClient(cmd, func(ctx context.Context, api *client.Client, configs *client.ConfigClient) error {
				cfg, err := configs.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if err := outputResource(cmd.OutOrStdout(), cfg); err != nil {
					return err
				}
				if outputFormat == "table" || outputFormat == "" {
					fmt.Fprintln(cmd.OutOrStdout(), format.KeyValue("URL", api.SubscriptionURL(cfg.Name)))
				}
				return nil
			})
		},
	}
}

// draftFlags are the flags shared by create and update.
type draftFlags struct {
	name       string
	backendURL string
	subscribe  []string
	proxyTag   string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "configuration name, served at /sub/<name>")
	cmd.Flags().StringVar(&f.backendURL, "backend", "", "conversion backend base URL")
	cmd.Flags().StringArrayVar(&f.subscribe, "sub", nil, "upstream subscription URL (repeatable)")
	cmd.Flags().StringVar(&f.proxyTag, "proxy-tag", "", "outbound tag to chain every outbound through (empty disables chaining)")
}

// apply copies the flags the user set onto draft.
func (f *draftFlags) apply(cmd *cobra.Command, draft *types.ConfigDraft) {
	if cmd.Flags().Changed("name") {
		draft.Name = f.name
	}
	if cmd.Flags().Changed("backend") {
		draft.BackendURL = f.backendURL
	}
	if cmd.Flags().Changed("sub") {
		draft.SubscribeURLs = f.subscribe
	}
	if cmd.Flags().Changed("proxy-tag") {
		draft.ProxyTag = f.proxyTag
	}
}

func printSaved(out io.Writer, api *client.Client, verb string, cfg *types.Configuration) {
	fmt.Fprintln(out, format.Success("Config %q %s (id %s)", cfg.Name, verb, cfg.ID))
	fmt.Fprintln(out, format.KeyValue("URL", api.SubscriptionURL(cfg.Name)))
}

func newConfigCreateCmd() *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a configuration",
		Example: `  subrelay config create --name home --backend https://convert.example \
    --sub https://a.example/sub --sub https://b.example/sub --proxy-tag relay`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft types.ConfigDraft
			flags.apply(cmd, &draft)
			if err := draft.Validate(); err != nil {
				return err
			}
			return withConfigClient(cmd, func(ctx context.Context, api *client.Client, configs *client.ConfigClient) error {
				cfg, err := configs.Create(ctx, draft)
				if err != nil {
					return err
				}
				printSaved(cmd.OutOrStdout(), api, "created", cfg)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.MarkFlagRequired("name")
	return cmd
}

func newConfigUpdateCmd() *cobra.Command {
	var flags draftFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a configuration; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfigClient(cmd, func(ctx context.Context, api *client.Client, configs *client.ConfigClient) error {
				existing, err := configs.Get(ctx, args[0])
				if err != nil {
					return err
				}
				draft := existing.Draft()
				flags.apply(cmd, &draft)
				if err := draft.Validate(); err != nil {
					return err
				}
				cfg, err := configs.Update(ctx, args[0], draft)
				if err != nil {
					return err
				}
				printSaved(cmd.OutOrStdout(), api, "updated", cfg)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newConfigDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete configurations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfigClient(cmd, func(ctx context.Context, _ *client.Client, configs *client.ConfigClient) error {
				for _, id := range args {
					if err := configs.Delete(ctx, id); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), format.Success("Config %s deleted", id))
				}
				return nil
			})
		},
	}
}

func newConfigApplyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply -f <file>",
		Short: "Create or update configurations from YAML, matched by name",
		Long: `Apply reads one or more YAML documents. Each document is either a single
configuration or a list of them:

  name: home
  backendUrl: https://convert.example
  subscribeUrls:
    - https://a.example/sub
  proxyTag: relay

A configuration whose name already exists is updated in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			drafts, err := decodeDrafts(r)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}
			if len(drafts) == 0 {
				return fmt.Errorf("no configurations found in %s", file)
			}
			for i := range drafts {
				if err := drafts[i].Validate(); err != nil {
					return fmt.Errorf("config %d (%q): %w", i+1, drafts[i].Name, err)
				}
			}

			return withConfigClient(cmd, func(ctx context.Context, api *client.Client, configs *client.ConfigClient) error {
				for _, draft := range drafts {
					cfg, created, err := configs.Apply(ctx, draft)
					if err != nil {
						return err
					}
					verb := "updated"
					if created {
						verb = "created"
					}
					printSaved(cmd.OutOrStdout(), api, verb, cfg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file to apply, or - for stdin")
	cmd.MarkFlagRequired("file")
	return cmd
}

// decodeDrafts reads a YAML stream of drafts or draft lists.
func decodeDrafts(r io.Reader) ([]types.ConfigDraft, error) {
	var drafts []types.ConfigDraft
	dec := yaml.NewDecoder(r)
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return drafts, nil
			}
			return nil, err
		}
		if len(node.Content) == 0 {
			continue
		}
		doc := node.Content[0]
		if doc.Kind == yaml.ScalarNode && doc.Tag == "!!null" {
			// empty document, e.g. after a trailing ---
			continue
		}
		switch doc.Kind {
		case yaml.SequenceNode:
			var list []types.ConfigDraft
			if err := doc.Decode(&list); err != nil {
				return nil, err
			}
			drafts = append(drafts, list...)
		case yaml.MappingNode:
			var d types.ConfigDraft
			if err := doc.Decode(&d); err != nil {
				return nil, err
			}
			drafts = append(drafts, d)
		default:
			return nil, fmt.Errorf("line %d: expected a mapping or a list", doc.Line)
		}
	}
}
