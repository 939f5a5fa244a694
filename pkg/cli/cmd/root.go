package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/rzbill/subrelay/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	serverAddr   string
	outputFormat string
	verbose      bool
)

// newRootCmd builds the command tree. Flags bind to package variables, so
// only one tree should run at a time.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subrelay",
		Short: "SubRelay - sing-box subscription relay",
		Long: `SubRelay stores named subscription configurations and serves each one
at /sub/<name>, fetched from a conversion backend and rewritten so every
outbound is chained through a proxy tag.

This CLI manages a running subrelayd over its admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.ErrOrStderr())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		Version: version.Version,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.subrelay/config.yaml)")
	cmd.PersistentFlags().StringVar(&serverAddr, "server", "", "SubRelay server URL (overrides the current context)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newSubCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, format.Error("Error: %v", err))
		os.Exit(1)
	}
}

// initConfig reads the context file and SUBRELAY_* variables into viper.
func initConfig(stderr io.Writer) error {
	viper.Reset()
	viper.SetConfigFile(getConfigPath())
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("SUBRELAY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(getConfigPath()); statErr == nil {
			return fmt.Errorf("failed to read config file %s: %w", getConfigPath(), err)
		}
		return nil
	}
	if verbose {
		fmt.Fprintln(stderr, format.Muted("Using config file: %s", viper.ConfigFileUsed()))
	}
	return nil
}

// getEnv is a small wrapper so commands can be tested without the real env.
var getEnv = func(key string) (string, bool) {
	return os.LookupEnv(key)
}
