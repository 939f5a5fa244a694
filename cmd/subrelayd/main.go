package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rzbill/subrelay/internal/config"
	"github.com/rzbill/subrelay/pkg/api/server"
	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/version"
)

var (
	configFile    = flag.String("config", "", "Configuration file path")
	httpAddr      = flag.String("http-addr", "", "HTTP server address (default :8787)")
	dataDir       = flag.String("data-dir", "", "Data directory for the badger store")
	storeDriver   = flag.String("store", "", "Store driver (badger, memory)")
	logLevel      = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	debugLogLevel = flag.Bool("debug", false, "Enable debug mode (shorthand for --log-level=debug)")
	logFormat     = flag.String("log-format", "", "Log format (text, json)")
	showHelp      = flag.Bool("help", false, "Show help")
	showVer       = flag.Bool("version", false, "Show version")
)

// applyFlags overrides loaded values with flags given on the command line.
func applyFlags(cfg *config.Config) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if set["http-addr"] {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if set["data-dir"] {
		cfg.DataDir = *dataDir
	}
	if set["store"] {
		cfg.Store.Driver = *storeDriver
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *logFormat
	}
	if *debugLogLevel {
		cfg.Log.Level = "debug"
	}
}

func openStore(cfg *config.Config, logger log.Logger) (store.Store, error) {
	if cfg.Store.Driver == config.StoreMemory {
		logger.Warn("Using in-memory store, configurations are lost on exit")
		return store.NewMemoryStore(), nil
	}

	storeDir := cfg.StorePath()
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", storeDir, err)
	}

	logger.Info("Initializing state store", log.Str("path", storeDir))
	s := store.NewBadgerStore(logger)
	if err := s.Open(storeDir); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return s, nil
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := log.ApplyConfig(&cfg.Log)
	if err != nil {
		return err
	}
	log.SetDefaultLogger(logger)

	logger.Info("Starting subrelayd", log.Str("version", version.Version))
	if cfg.Source != "" {
		logger.Info("Using config file", log.Str("path", cfg.Source))
	}

	stateStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	srv, err := server.New(
		server.WithHTTPAddr(cfg.Server.HTTPAddr),
		server.WithStore(stateStore),
		server.WithAdminPassword(cfg.Admin.Password),
		server.WithSessions(cfg.Session.TTL, cfg.Session.PruneSchedule),
		server.WithBackendTimeout(cfg.Backend.Timeout),
		server.WithExposeDebug(cfg.Subscription.ExposeDebug),
		server.WithTimeouts(cfg.Server.AdminTimeout, cfg.Server.ShutdownTimeout),
		server.WithLogger(logger.WithComponent("server")),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	if err := srv.Wait(); err != nil {
		logger.Error("Failed to stop server", log.Err(err))
	}

	return nil
}

func main() {
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return
	}

	if *showVer {
		fmt.Println(version.Info())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
