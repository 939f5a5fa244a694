package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultContext = "default"

// ContextConfig represents the structure of the CLI config file.
type ContextConfig struct {
	CurrentContext string             `yaml:"current-context"`
	Contexts       map[string]Context `yaml:"contexts"`
}

// Context is one server the CLI can talk to.
type Context struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
}

// Current returns the active context and its name.
func (c *ContextConfig) Current() (string, Context) {
	name := c.CurrentContext
	if name == "" {
		name = defaultContext
	}
	return name, c.Contexts[name]
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.subrelay/config.yaml"
	}
	return filepath.Join(home, ".subrelay", "config.yaml")
}

// loadContextConfig reads the config file. A missing file yields an empty
// config pointing at the default context.
func loadContextConfig() (*ContextConfig, error) {
	config := &ContextConfig{
		CurrentContext: defaultContext,
		Contexts:       make(map[string]Context),
	}

	data, err := os.ReadFile(getConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", getConfigPath(), err)
	}
	if config.Contexts == nil {
		config.Contexts = make(map[string]Context)
	}
	if config.CurrentContext == "" {
		config.CurrentContext = defaultContext
	}
	return config, nil
}

func saveContextConfig(config *ContextConfig) error {
	path := getConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config at %s: %w", path, err)
	}
	return nil
}

// maskToken keeps the first few characters of a token for display.
func maskToken(token string) string {
	if token == "" {
		return "<none>"
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:8] + "..."
}

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "context",
		Aliases: []string{"ctx"},
		Short:   "Manage CLI contexts (server URL and session token)",
	}
	cmd.AddCommand(newContextViewCmd())
	cmd.AddCommand(newContextListCmd())
	cmd.AddCommand(newContextUseCmd())
	cmd.AddCommand(newContextDeleteCmd())
	return cmd
}

func newContextViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			name, current := config.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, format.KeyValue("Context", name))
			if current.Server == "" {
				fmt.Fprintln(out, format.Warning("Not logged in. Run `subrelay login --server <url>`."))
				return nil
			}
			fmt.Fprintln(out, format.KeyValue("Server", current.Server))
			fmt.Fprintln(out, format.KeyValue("Token", maskToken(current.Token)))
			return nil
		},
	}
}

func newContextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List contexts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			if len(config.Contexts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured")
				return nil
			}
			names := make([]string, 0, len(config.Contexts))
			for name := range config.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := [][]string{{"CURRENT", "NAME", "SERVER", "LOGGED IN"}}
			for _, name := range names {
				c := config.Contexts[name]
				marker := ""
				if name == config.CurrentContext {
					marker = "*"
				}
				rows = append(rows, []string{marker, name, c.Server, format.StatusSymbol(c.Token != "")})
			}
			return NewResourceTable(cmd.OutOrStdout()).Render(rows)
		},
	}
}

func newContextUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			if _, ok := config.Contexts[args[0]]; !ok {
				return fmt.Errorf("context %q not found", args[0])
			}
			config.CurrentContext = args[0]
			if err := saveContextConfig(config); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Success("Switched to context %q", args[0]))
			return nil
		},
	}
}

func newContextDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			if _, ok := config.Contexts[args[0]]; !ok {
				return fmt.Errorf("context %q not found", args[0])
			}
			delete(config.Contexts, args[0])
			if config.CurrentContext == args[0] {
				config.CurrentContext = defaultContext
			}
			if err := saveContextConfig(config); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Success("Deleted context %q", args[0]))
			return nil
		},
	}
}
