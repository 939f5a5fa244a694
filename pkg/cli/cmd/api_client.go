package cmd

import (
	"github.com/rzbill/subrelay/pkg/api/client"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/spf13/viper"
)

// buildClientOptions resolves the server and token. Precedence for each is
// flag > SUBRELAY_SERVER / SUBRELAY_TOKEN > current context > default.
func buildClientOptions() *client.ClientOptions {
	opts := client.DefaultClientOptions()
	output := log.Output(log.NewNullOutput())
	if verbose {
		output = log.NewConsoleOutput(log.WithStderr())
	}
	opts.Logger = log.NewLogger(
		log.WithLevel(log.DebugLevel),
		log.WithOutput(output),
	).WithComponent("api-client")

	current := viper.GetString("current-context")
	if current == "" {
		current = defaultContext
	}

	switch {
	case serverAddr != "":
		opts.Address = serverAddr
	case envOr("SUBRELAY_SERVER") != "":
		opts.Address = envOr("SUBRELAY_SERVER")
	case viper.GetString("contexts."+current+".server") != "":
		opts.Address = viper.GetString("contexts." + current + ".server")
	}

	if t := envOr("SUBRELAY_TOKEN"); t != "" {
		opts.Token = t
	} else {
		opts.Token = viper.GetString("contexts." + current + ".token")
	}
	return opts
}

func envOr(key string) string {
	v, _ := getEnv(key)
	return v
}

func newAPIClient() (*client.Client, error) {
	return client.NewClient(buildClientOptions())
}
