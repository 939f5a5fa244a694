// Package server assembles and runs the SubRelay HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rzbill/subrelay/pkg/api/rest"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/store/repos"
	"github.com/rzbill/subrelay/pkg/subscription"
	"github.com/rzbill/subrelay/pkg/worker/scheduler"
)

const pruneJob = "prune-sessions"

// Server runs the subscription endpoint and the admin API.
type Server struct {
	options *Options
	logger  log.Logger

	store    store.Store
	configs  *repos.ConfigRepo
	sessions *repos.SessionRepo
	metrics  *metrics.Metrics

	scheduler  *scheduler.Scheduler
	httpServer *http.Server
	listener   net.Listener

	// Shutdown channel
	shutdownCh chan struct{}
	stopOnce   sync.Once

	// Wait group for server goroutines
	wg sync.WaitGroup
}

// New creates a new server with the given options.
func New(opts ...Option) (*Server, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if options.AdminPassword == "" {
		return nil, fmt.Errorf("admin password is required")
	}

	logger := options.Logger
	if logger == nil {
		logger = log.GetDefaultLogger().WithComponent("server")
	}

	m := options.Metrics
	if m == nil {
		m = metrics.NewMetrics(nil)
	}

	s := &Server{
		options:    options,
		logger:     logger,
		store:      options.Store,
		configs:    repos.NewConfigRepo(options.Store, repos.WithConfigLogger(logger)),
		sessions:   repos.NewSessionRepo(options.Store),
		metrics:    m,
		scheduler:  scheduler.NewScheduler(logger),
		shutdownCh: make(chan struct{}),
	}

	pipeline := subscription.NewPipeline(
		subscription.NewResolver(s.configs),
		subscription.NewFetcher(
			subscription.WithTimeout(options.BackendTimeout),
			subscription.WithFetcherLogger(logger),
			subscription.WithFetcherMetrics(m),
		),
		subscription.WithLogger(logger),
		subscription.WithMetrics(m),
	)

	handler := rest.NewRouter(rest.Config{
		Configs:       s.configs,
		Sessions:      s.sessions,
		Subscriber:    pipeline,
		Metrics:       m,
		Logger:        logger,
		AdminPassword: options.AdminPassword,
		SessionTTL:    options.SessionTTL,
		ExposeDebug:   options.ExposeDebug,
		AdminTimeout:  options.AdminTimeout,
	})

	s.httpServer = &http.Server{
		Addr:              options.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.ToStdLogger(logger, log.WarnLevel),
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address once Start has returned.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.options.HTTPAddr
	}
	return s.listener.Addr().String()
}

// Start starts the HTTP server and the session pruner.
func (s *Server) Start() error {
	s.logger.Info("Starting SubRelay server")

	if s.options.PruneSchedule != "" {
		if err := s.scheduler.Schedule(pruneJob, s.options.PruneSchedule, s.pruneSessions); err != nil {
			return err
		}
	}
	s.scheduler.Start()

	lis, err := net.Listen("tcp", s.options.HTTPAddr)
	if err != nil {
		s.scheduler.Stop()
		return fmt.Errorf("failed to listen on %s: %w", s.options.HTTPAddr, err)
	}
	s.listener = lis

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Starting HTTP server", log.Str("address", lis.Addr().String()))
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", log.Err(err))
		}
	}()

	return nil
}

func (s *Server) pruneSessions(ctx context.Context) error {
	n, err := s.sessions.PruneExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}
	s.metrics.RecordSessionsPruned(n)
	if n > 0 {
		s.logger.Info("Pruned expired sessions", log.Int("count", n))
	}
	return nil
}

// Stop stops the server gracefully. It is safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping SubRelay server")
		close(s.shutdownCh)

		s.scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			s.logger.Error("Error shutting down HTTP server", log.Err(shutdownErr))
			err = shutdownErr
		}

		s.wg.Wait()
		s.logger.Info("SubRelay server stopped")
	})
	return err
}

// Wait blocks until SIGINT or SIGTERM, or until Stop is called, and then
// stops the server.
func (s *Server) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("Received signal", log.Str("signal", sig.String()))
	case <-s.shutdownCh:
	}
	return s.Stop()
}
