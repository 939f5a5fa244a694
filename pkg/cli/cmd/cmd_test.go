package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rzbill/subrelay/pkg/api/rest"
	"github.com/rzbill/subrelay/pkg/cli/format"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/store/repos"
	"github.com/rzbill/subrelay/pkg/subscription"
	"github.com/rzbill/subrelay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testPassword = "s3cret"

type cliEnv struct {
	server     *httptest.Server
	backendURL string
	configPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	format.EnableColor(false)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"outbounds":[{"tag":"a"}]}`))
	}))
	t.Cleanup(backend.Close)

	logger := log.NewTestLogger()
	st := store.NewMemoryStore()
	configs := repos.NewConfigRepo(st)
	srv := httptest.NewServer(rest.NewRouter(rest.Config{
		Configs:  configs,
		Sessions: repos.NewSessionRepo(st),
		Subscriber: subscription.NewPipeline(
			subscription.NewResolver(configs),
			subscription.NewFetcher(),
			subscription.WithLogger(logger),
		),
		Logger:        logger,
		AdminPassword: testPassword,
		ExposeDebug:   true,
	}))
	t.Cleanup(srv.Close)

	prevEnv := getEnv
	getEnv = func(string) (string, bool) { return "", false }
	t.Cleanup(func() { getEnv = prevEnv })

	return &cliEnv{
		server:     srv,
		backendURL: backend.URL,
		configPath: filepath.Join(t.TempDir(), "config.yaml"),
	}
}

// run executes the CLI with the env's config file and returns stdout.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	out, err := e.run(t, testPassword+"\n", "login", "--server", e.server.URL, "--password-stdin")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in to "+e.server.URL)
}

func TestLoginWritesContext(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "wrong\n", "login", "--server", env.server.URL, "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid password")

	env.login(t)

	config, err := loadContextConfig()
	require.NoError(t, err)
	name, current := config.Current()
	assert.Equal(t, "default", name)
	assert.Equal(t, env.server.URL, current.Server)
	assert.NotEmpty(t, current.Token)

	info, err := os.Stat(env.configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := env.run(t, "", "context", "view")
	require.NoError(t, err)
	assert.Contains(t, out, env.server.URL)
	assert.Contains(t, out, maskToken(current.Token))
	assert.NotContains(t, out, current.Token)

	out, err = env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	config, err = loadContextConfig()
	require.NoError(t, err)
	_, current = config.Current()
	assert.Empty(t, current.Token)
	assert.Equal(t, env.server.URL, current.Server, "server is kept for the next login")

	_, err = env.run(t, "", "config", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subrelay login")
}

func TestConfigCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	out, err := env.run(t, "", "config", "create",
		"--name", "home",
		"--backend", env.backendURL,
		"--sub", "https://a.example/sub",
		"--sub", "https://b.example/sub",
		"--proxy-tag", "relay")
	require.NoError(t, err)
	assert.Contains(t, out, `Config "home" created (id 1)`)
	assert.Contains(t, out, env.server.URL+"/sub/home")

	_, err = env.run(t, "", "config", "create", "--name", "bad name", "--backend", env.backendURL)
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	out, err = env.run(t, "", "config", "list", "-o", "json")
	require.NoError(t, err)
	var list []*types.Configuration
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"https://a.example/sub", "https://b.example/sub"}, list[0].SubscribeURLs)

	out, err = env.run(t, "", "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "relay")

	out, err = env.run(t, "", "config", "update", "1", "--proxy-tag", "")
	require.NoError(t, err)
	assert.Contains(t, out, `Config "home" updated (id 1)`)

	out, err = env.run(t, "", "config", "get", "1", "-o", "yaml")
	require.NoError(t, err)
	var got types.Configuration
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "home", got.Name)
	assert.Empty(t, got.ProxyTag)
	assert.Len(t, got.SubscribeURLs, 2, "unset flags keep their value")

	out, err = env.run(t, "", "config", "get", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "none")
	assert.Contains(t, out, "/sub/home")

	_, err = env.run(t, "", "config", "get", "99")
	assert.Error(t, err)

	out, err = env.run(t, "", "config", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Config 1 deleted")

	out, err = env.run(t, "", "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No configs found")
}

func TestConfigApply(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "", "config", "create", "--name", "home", "--backend", env.backendURL)
	require.NoError(t, err)

	manifest := `name: home
backendUrl: ` + env.backendURL + `
proxyTag: relay
---
- name: office
  backendUrl: ` + env.backendURL + `
  subscribeUrls:
    - https://c.example/sub
`
	out, err := env.run(t, manifest, "config", "apply", "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `Config "home" updated (id 1)`)
	assert.Contains(t, out, `Config "office" created (id 2)`)

	_, err = env.run(t, "name: bad name\n", "config", "apply", "-f", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad name"`)
}

func TestSubCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "", "config", "create", "--name", "home", "--backend", env.backendURL, "--proxy-tag", "relay")
	require.NoError(t, err)

	out, err := env.run(t, "", "sub", "fetch", "home")
	require.NoError(t, err)
	assert.JSONEq(t, `{"outbounds":[{"tag":"a","detour":["relay"]}]}`, out)

	file := filepath.Join(t.TempDir(), "home.json")
	_, err = env.run(t, "", "sub", "fetch", "home", "--out", file, "--pretty")
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ")

	_, err = env.run(t, "", "sub", "fetch", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Configuration not found")

	out, err = env.run(t, "", "sub", "url", "home")
	require.NoError(t, err)
	assert.Equal(t, env.server.URL+"/sub/home\n", out)
}

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "version", "--server", env.server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Client:")
	assert.Contains(t, out, "Server:")
	assert.NotContains(t, out, "unreachable")

	out, err = env.run(t, "", "version", "--client")
	require.NoError(t, err)
	assert.NotContains(t, out, "Server:")
}
