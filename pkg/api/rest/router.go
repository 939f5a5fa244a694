// Package rest implements SubRelay's HTTP surface: the public subscription
// endpoint, the admin JSON API and the embedded admin page.
package rest

import (
	"net/http"
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
)

// DefaultSessionTTL matches the lifetime of the session cookie.
const DefaultSessionTTL = 3 * time.Hour

// Config wires the router to its services.
type Config struct {
	Configs    ConfigService
	Sessions   SessionService
	Subscriber Subscriber
	Metrics    *metrics.Metrics
	Logger     log.Logger

	AdminPassword string
	SessionTTL    time.Duration
	// ExposeDebug echoes the backend URL and configuration in /sub errors.
	ExposeDebug bool
	// AdminTimeout bounds admin API requests. Zero disables it.
	AdminTimeout time.Duration
}

type handlers struct {
	configs       ConfigService
	sessions      SessionService
	subscriber    Subscriber
	shaper        *Shaper
	metrics       *metrics.Metrics
	logger        log.Logger
	adminPassword string
	sessionTTL    time.Duration
}

// NewRouter returns the root handler.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	logger = logger.WithComponent("http")

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	h := &handlers{
		configs:       cfg.Configs,
		sessions:      cfg.Sessions,
		subscriber:    cfg.Subscriber,
		shaper:        &Shaper{ExposeDebug: cfg.ExposeDebug},
		metrics:       cfg.Metrics,
		logger:        logger,
		adminPassword: cfg.AdminPassword,
		sessionTTL:    ttl,
	}

	admin := Chain(h.recordAdmin(), Timeout(cfg.AdminTimeout))

	mux := http.NewServeMux()
	mux.Handle("/sub/{name...}", CORS(http.MethodGet)(http.HandlerFunc(h.subscription)))
	mux.Handle("/api/config", admin(h.requireSession()(http.HandlerFunc(h.config))))
	mux.Handle("/api/login", admin(http.HandlerFunc(h.login)))
	mux.Handle("/api/logout", admin(http.HandlerFunc(h.logout)))
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /version", h.version)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	return Chain(Recovery(logger), RequestID(), Logger(logger))(mux)
}

// recordAdmin counts admin API responses by method and status.
func (h *handlers) recordAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWrapper{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapper, r)
			h.metrics.RecordAdminRequest(r.Method, wrapper.status)
		})
	}
}
