package subscription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/store/repos"
	"github.com/rzbill/subrelay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	repo     *repos.ConfigRepo
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *log.TestLogger
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	logger := log.NewTestLogger()
	m := metrics.NewMetrics(nil)
	repo := repos.NewConfigRepo(store.NewMemoryStore(), repos.WithConfigLogger(logger))
	p := NewPipeline(
		NewResolver(repo),
		NewFetcher(WithFetcherLogger(logger), WithFetcherMetrics(m)),
		WithLogger(logger),
		WithMetrics(m),
	)
	return &pipelineFixture{repo: repo, pipeline: p, metrics: m, logger: logger}
}

func backend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/singbox" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func subscriptionCount(t *testing.T, m *metrics.Metrics, outcome string) {
	t.Helper()
	expected := `
# HELP subrelay_subscription_requests_total Subscription requests by outcome
# TYPE subrelay_subscription_requests_total counter
subrelay_subscription_requests_total{outcome="` + outcome + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"subrelay_subscription_requests_total"))
}

func TestPipeline_Success(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	srv := backend(t, http.StatusOK, `{"outbounds":[{"tag":"a"},{"tag":"b"}]}`)

	_, err := f.repo.Create(ctx, types.ConfigDraft{
		Name:          "home",
		BackendURL:    srv.URL + "/",
		SubscribeURLs: []string{"http://a", "http://b"},
		ProxyTag:      "relay",
	})
	require.NoError(t, err)

	res, err := f.pipeline.Handle(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, `{"outbounds":[{"tag":"a","detour":["relay"]},{"tag":"b","detour":["relay"]}]}`, string(res.Document))
	assert.Equal(t, 2, res.Rewritten)
	assert.Equal(t, srv.URL+"/singbox?config=http%3A%2F%2Fa%0Ahttp%3A%2F%2Fb&selectedRules=%5B%5D&customRules=%5B%5D&pin=false", res.RequestURL)
	assert.Equal(t, "home", res.Config.Name)

	assert.True(t, f.logger.AssertLogged(log.InfoLevel, "Served subscription"))
	subscriptionCount(t, f.metrics, metrics.OutcomeOK)
}

func TestPipeline_NoProxyTagPassesThrough(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	doc := `{"outbounds": [{"tag": "a"}], "route": {}}`
	srv := backend(t, http.StatusOK, doc)

	_, err := f.repo.Create(ctx, types.ConfigDraft{Name: "plain", BackendURL: srv.URL, SubscribeURLs: []string{"x"}})
	require.NoError(t, err)

	res, err := f.pipeline.Handle(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, doc, string(res.Document))
	assert.Zero(t, res.Rewritten)
}

func TestPipeline_NotFound(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Handle(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))

	var pe *PipelineError
	assert.False(t, errors.As(err, &pe))
	subscriptionCount(t, f.metrics, metrics.OutcomeNotFound)
}

func TestPipeline_BackendFailure(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	srv := backend(t, http.StatusInternalServerError, "oops")

	_, err := f.repo.Create(ctx, types.ConfigDraft{Name: "broken", BackendURL: srv.URL, SubscribeURLs: []string{"http://a"}})
	require.NoError(t, err)

	_, err = f.pipeline.Handle(ctx, "broken")
	require.Error(t, err)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, srv.URL+"/singbox?config=http%3A%2F%2Fa&selectedRules=%5B%5D&customRules=%5B%5D&pin=false", pe.RequestURL)
	assert.Equal(t, "broken", pe.Config.Name)
	assert.True(t, types.IsBackendError(err))
	assert.Equal(t, "Backend request failed with status 500", pe.Err.Error())
	subscriptionCount(t, f.metrics, metrics.OutcomeBackend)
}

func TestPipeline_InvalidBackendJSON(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	srv := backend(t, http.StatusOK, "not json")

	_, err := f.repo.Create(ctx, types.ConfigDraft{Name: "garbled", BackendURL: srv.URL, SubscribeURLs: []string{"a"}, ProxyTag: "relay"})
	require.NoError(t, err)

	_, err = f.pipeline.Handle(ctx, "garbled")
	require.Error(t, err)
	assert.True(t, types.IsProcessingError(err))

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.NotEmpty(t, pe.RequestURL)
	subscriptionCount(t, f.metrics, metrics.OutcomeProcessing)
}

func TestPipeline_StoreFailure(t *testing.T) {
	st := &store.MockStore{}
	st.On("List", mock.Anything, store.ConfigPrefix).Return(nil, errors.New("disk gone"))

	repo := repos.NewConfigRepo(st, repos.WithConfigLogger(log.NewTestLogger()))
	p := NewPipeline(NewResolver(repo), NewFetcher(), WithLogger(log.NewTestLogger()))

	_, err := p.Handle(context.Background(), "any")
	require.Error(t, err)
	assert.False(t, types.IsNotFound(err))

	var pe *PipelineError
	assert.False(t, errors.As(err, &pe))
}

func TestResolver_EmptyName(t *testing.T) {
	r := NewResolver(repos.NewConfigRepo(store.NewMemoryStore()))
	_, err := r.Resolve(context.Background(), "")
	assert.True(t, types.IsNotFound(err))
}
