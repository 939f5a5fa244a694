package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rzbill/subrelay/pkg/api/client"
	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const callTimeout = 30 * time.Second

// readPassword prompts on a terminal; it is a variable so tests can stub it.
var readPassword = func(prompt string, stderr io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a password; use --password-stdin or SUBRELAY_PASSWORD")
	}
	fmt.Fprint(stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func newLoginCmd() *cobra.Command {
	var passwordStdin bool
	var contextName string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a SubRelay server and store the session in the current context",
		Long: `Log in with the admin password. The session token is written to
~/.subrelay/config.yaml (or --config) so later commands can reuse it.`,
		Example: `  subrelay login --server http://localhost:8787
  echo "$PASSWORD" | subrelay login --server https://relay.example --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := resolvePassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			if contextName == "" {
				contextName, _ = config.Current()
			}

			opts := buildClientOptions()
			opts.Token = ""
			if serverAddr == "" {
				if c, ok := config.Contexts[contextName]; ok && c.Server != "" {
					opts.Address = c.Server
				}
			}
			api, err := client.NewClient(opts)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()
			token, err := api.Login(ctx, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			config.Contexts[contextName] = Context{Server: api.Address(), Token: token}
			config.CurrentContext = contextName
			if err := saveContextConfig(config); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), format.Success("Logged in to %s (context %q)", api.Address(), contextName))
			return nil
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&contextName, "context", "", "context to store the session in (default is the current context)")
	return cmd
}

func resolvePassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", fmt.Errorf("empty password on stdin")
		}
		return password, nil
	}
	if p := envOr("SUBRELAY_PASSWORD"); p != "" {
		return p, nil
	}
	return readPassword("Admin password: ", cmd.ErrOrStderr())
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session and forget its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadContextConfig()
			if err != nil {
				return err
			}
			name, current := config.Current()

			api, err := newAPIClient()
			if err != nil {
				return err
			}
			if api.Token() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), format.Warning("Not logged in"))
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
			defer cancel()
			if err := api.Logout(ctx); err != nil && !client.IsUnauthorized(err) {
				return fmt.Errorf("logout failed: %w", err)
			}

			if current.Token != "" {
				current.Token = ""
				config.Contexts[name] = current
				if err := saveContextConfig(config); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Success("Logged out"))
			return nil
		},
	}
}
