package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/store/repos"
	"github.com/rzbill/subrelay/pkg/subscription"
	"github.com/rzbill/subrelay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "s3cret"

type testEnv struct {
	handler  http.Handler
	configs  *repos.ConfigRepo
	sessions *repos.SessionRepo
	backend  *httptest.Server
}

func newTestEnv(t *testing.T, exposeDebug bool) *testEnv {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/fail"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"outbounds":[{"tag":"a"}]}`))
		}
	}))
	t.Cleanup(backend.Close)

	logger := log.NewTestLogger()
	st := store.NewMemoryStore()
	configs := repos.NewConfigRepo(st, repos.WithConfigLogger(logger))
	sessions := repos.NewSessionRepo(st)
	m := metrics.NewMetrics(nil)
	pipeline := subscription.NewPipeline(
		subscription.NewResolver(configs),
		subscription.NewFetcher(subscription.WithFetcherLogger(logger)),
		subscription.WithLogger(logger),
		subscription.WithMetrics(m),
	)

	h := NewRouter(Config{
		Configs:       configs,
		Sessions:      sessions,
		Subscriber:    pipeline,
		Metrics:       m,
		Logger:        logger,
		AdminPassword: testPassword,
		ExposeDebug:   exposeDebug,
	})
	return &testEnv{handler: h, configs: configs, sessions: sessions, backend: backend}
}

func (e *testEnv) do(t *testing.T, method, target, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/login", `{"password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func (e *testEnv) create(t *testing.T, d types.ConfigDraft) *types.Configuration {
	t.Helper()
	c, err := e.configs.Create(context.Background(), d)
	require.NoError(t, err)
	return c
}

func TestSubscription_Success(t *testing.T) {
	env := newTestEnv(t, true)
	env.create(t, types.ConfigDraft{Name: "home", BackendURL: env.backend.URL, SubscribeURLs: []string{"http://a"}, ProxyTag: "relay"})

	rec := env.do(t, http.MethodGet, "/sub/home", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, `{"outbounds":[{"tag":"a","detour":["relay"]}]}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestSubscription_DecodedName(t *testing.T) {
	env := newTestEnv(t, true)
	env.create(t, types.ConfigDraft{Name: "香港", BackendURL: env.backend.URL, SubscribeURLs: []string{"x"}})

	rec := env.do(t, http.MethodGet, "/sub/%E9%A6%99%E6%B8%AF", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscription_NotFound(t *testing.T) {
	env := newTestEnv(t, true)

	for _, target := range []string{"/sub/missing", "/sub/"} {
		rec := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.JSONEq(t, `{"error":"Configuration not found","message":"未找到对应的配置"}`, rec.Body.String())
	}
}

func TestSubscription_BackendErrorWithDebug(t *testing.T) {
	env := newTestEnv(t, true)
	env.create(t, types.ConfigDraft{Name: "broken", BackendURL: env.backend.URL + "/fail/", SubscribeURLs: []string{"http://a", "", "http://b"}})

	rec := env.do(t, http.MethodGet, "/sub/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body SubscriptionError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Processing Error", body.Error)
	assert.Equal(t, "Backend request failed with status 500", body.Message)
	require.NotNil(t, body.Debug)
	assert.Equal(t, env.backend.URL+"/fail/singbox?config=http%3A%2F%2Fa%0Ahttp%3A%2F%2Fb&selectedRules=%5B%5D&customRules=%5B%5D&pin=false", body.Debug.RequestURL)
	assert.Equal(t, "broken", body.Debug.Config.Name)
	assert.Equal(t, env.backend.URL+"/fail/", body.Debug.Config.BackendURL)
	assert.Equal(t, []string{"http://a", "http://b"}, body.Debug.Config.SubscribeURLs)
	// an empty stored tag is still echoed
	assert.Contains(t, rec.Body.String(), `"proxyTag":""`)
}

func TestSubscription_BackendErrorWithoutDebug(t *testing.T) {
	env := newTestEnv(t, false)
	env.create(t, types.ConfigDraft{Name: "broken", BackendURL: env.backend.URL + "/fail", SubscribeURLs: []string{"a"}})

	rec := env.do(t, http.MethodGet, "/sub/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Processing Error","message":"Backend request failed with status 500"}`, rec.Body.String())
}

func TestSubscription_Preflight(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodOptions, "/sub/home", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/login", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid password"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Set-Cookie"))

	rec = env.do(t, http.MethodGet, "/api/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/login", `{"password":"`+testPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Header().Get("Set-Cookie")
	for _, attr := range []string{"session=", "Path=/", "Max-Age=10800", "HttpOnly", "Secure", "SameSite=Strict"} {
		assert.Contains(t, cookie, attr)
	}

	var body loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Login successful", body.Message)
	assert.Contains(t, cookie, "session="+body.Token)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, true)
	token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/logout", "", withCookie(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	rec = env.do(t, http.MethodGet, "/api/config", "", withCookie(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfigAPI_RequiresSession(t *testing.T) {
	env := newTestEnv(t, true)

	for _, mutate := range []func(*http.Request){
		func(*http.Request) {},
		withCookie("forged"),
		withBearer("forged"),
	} {
		rec := env.do(t, http.MethodGet, "/api/config", "", mutate)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	}
}

func TestConfigAPI_CRUD(t *testing.T) {
	env := newTestEnv(t, true)
	auth := withCookie(env.login(t))

	rec := env.do(t, http.MethodGet, "/api/config", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config",
		`{"name":"home","backendUrl":"https://b.example","subscribeUrls":["vmess://a",""],"proxyTag":""}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var created types.Configuration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "1", created.ID)
	assert.Equal(t, []string{"vmess://a"}, created.SubscribeURLs)
	assert.NotEmpty(t, created.LastSaved)

	rec = env.do(t, http.MethodGet, "/api/config?id=1", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"home"`)

	rec = env.do(t, http.MethodGet, "/api/config?id=9", "", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Config not found"}`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/config?id=1",
		`{"name":"home","backendUrl":"https://c.example","subscribeUrls":["vmess://a"],"proxyTag":"relay"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"proxyTag":"relay"`)

	rec = env.do(t, http.MethodGet, "/api/config", "", auth)
	var list []types.Configuration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "https://c.example", list[0].BackendURL)

	rec = env.do(t, http.MethodDelete, "/api/config?id=1", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Config deleted"}`, rec.Body.String())

	// idempotent
	rec = env.do(t, http.MethodDelete, "/api/config?id=1", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigAPI_Errors(t *testing.T) {
	env := newTestEnv(t, true)
	auth := withBearer(env.login(t))

	rec := env.do(t, http.MethodPost, "/api/config", `{"name":"has space","backendUrl":"x","subscribeUrls":[]}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"field":"name","message":"配置名称不能包含标点符号和空格"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config", `{"name":"ok","backendUrl":"x","subscribeUrls":[],"proxyTag":"a-b"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"field":"proxyTag","message":"链式代理tag不能包含标点符号和空格"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/config", `{`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/config", `{"name":"ok"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Config ID required"}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/config", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Config ID required"}`, rec.Body.String())

	rec = env.do(t, http.MethodPatch, "/api/config", "", auth)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"message":"Method not allowed"}`, rec.Body.String())
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/login")

	rec = env.do(t, http.MethodGet, "/", "", withCookie(env.login(t)))
	assert.Contains(t, rec.Body.String(), "/api/config")

	rec = env.do(t, http.MethodGet, "/elsewhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)

	env.do(t, http.MethodGet, "/sub/missing", "")
	rec = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `subrelay_subscription_requests_total{outcome="not_found"} 1`)
}
