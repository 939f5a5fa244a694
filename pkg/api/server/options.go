package server

import (
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/store"
)

// Options defines configuration options for the SubRelay server.
type Options struct {
	// HTTPAddr is the address to listen on for HTTP connections.
	HTTPAddr string

	// Store holds configurations and sessions. It must already be open.
	Store store.Store

	// AdminPassword gates the admin API and page.
	AdminPassword string

	// SessionTTL is the lifetime of an admin session.
	SessionTTL time.Duration

	// PruneSchedule is the cron schedule for removing expired sessions.
	PruneSchedule string

	// BackendTimeout bounds each backend call. Zero means no bound.
	BackendTimeout time.Duration

	// ExposeDebug includes the backend URL and configuration in /sub errors.
	ExposeDebug bool

	// AdminTimeout bounds admin API requests. Zero means no bound.
	AdminTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight requests.
	ShutdownTimeout time.Duration

	// Metrics receives server metrics. A fresh registry is used when nil.
	Metrics *metrics.Metrics

	// Logger is the logger to use.
	Logger log.Logger
}

// DefaultOptions returns the default options for the server.
func DefaultOptions() *Options {
	return &Options{
		HTTPAddr:        ":8787",
		SessionTTL:      3 * time.Hour,
		PruneSchedule:   "@every 10m",
		ExposeDebug:     true,
		AdminTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logger:          log.GetDefaultLogger().WithComponent("server"),
	}
}

// Option is a function that configures the server options.
type Option func(*Options)

// WithHTTPAddr sets the HTTP address.
func WithHTTPAddr(addr string) Option {
	return func(o *Options) {
		o.HTTPAddr = addr
	}
}

// WithStore sets the store.
func WithStore(store store.Store) Option {
	return func(o *Options) {
		o.Store = store
	}
}

// WithAdminPassword sets the admin password.
func WithAdminPassword(password string) Option {
	return func(o *Options) {
		o.AdminPassword = password
	}
}

// WithSessions sets the session lifetime and prune schedule.
func WithSessions(ttl time.Duration, pruneSchedule string) Option {
	return func(o *Options) {
		o.SessionTTL = ttl
		o.PruneSchedule = pruneSchedule
	}
}

// WithBackendTimeout sets the per-call backend timeout.
func WithBackendTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.BackendTimeout = d
	}
}

// WithExposeDebug toggles the debug block in /sub errors.
func WithExposeDebug(expose bool) Option {
	return func(o *Options) {
		o.ExposeDebug = expose
	}
}

// WithMetrics sets the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTimeouts sets the admin request and shutdown timeouts.
func WithTimeouts(admin, shutdown time.Duration) Option {
	return func(o *Options) {
		o.AdminTimeout = admin
		o.ShutdownTimeout = shutdown
	}
}
