// Command actor-gateway hosts a multi-tenant gateway over a single actor
// type: every /<namespace>/<id>/... request resolves (and lazily starts) one
// actor instance, backed by a per-instance SQLite store under --data-dir.
//
// It exists to exercise the library end to end the way a real deployment
// would: flags/env config, structured logging, graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc"
	"github.com/arkeep-io/actorrpc/internal/authtoken"
	"github.com/arkeep-io/actorrpc/internal/router"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr        string
	dataDir         string
	logLevel        string
	protocolVersion int
	colo            string
	requireAuth     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "actor-gateway",
		Short: "actor-gateway — multi-tenant host for a widget actor type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("ACTORRPC_HTTP_ADDR", ":8080"), "HTTP listen address")
	root.PersistentFlags().StringVar(&cfg.dataDir, "data-dir", envOrDefault("ACTORRPC_DATA_DIR", "./data"), "Directory holding each actor instance's SQLite file")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("ACTORRPC_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&cfg.protocolVersion, "protocol-version", 1, "Protocol major version echoed to clients")
	root.PersistentFlags().StringVar(&cfg.colo, "colo", envOrDefault("ACTORRPC_COLO", ""), "Datacenter/region identifier surfaced in the schema document")
	root.PersistentFlags().BoolVar(&cfg.requireAuth, "require-auth", envOrDefault("ACTORRPC_REQUIRE_AUTH", "false") == "true", "Require a bearer JWT on every gateway request")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("actor-gateway %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting actor-gateway",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("data_dir", cfg.dataDir),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	pool := newActorPool(cfg, logger)
	defer pool.closeAll()

	gatewayCfg := router.Config{
		Lookup: pool.lookup,
		Logger: logger,
	}
	if cfg.requireAuth {
		// Ephemeral keys: fine for this example binary, not for a production
		// deployment where tokens must survive a restart (use
		// authtoken.NewFromPEM with keys mounted from disk there).
		tokens, err := authtoken.NewGenerated("actor-gateway", time.Hour)
		if err != nil {
			return fmt.Errorf("failed to initialize auth token manager: %w", err)
		}
		gatewayCfg.Auth = tokens.RequireBearer()
	}
	gateway := router.New(gatewayCfg)

	httpSrv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      gateway,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down actor-gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("actor-gateway stopped")
	return nil
}

// widget is the sample actor type this binary hosts. Real deployments embed
// their own domain type in its place; actor-gateway's job is routing and
// lifecycle, not this actor's business logic.
type widget struct {
	actorrpc.Base

	Status widgetNamespace
}

type widgetNamespace struct {
	n int
}

func (w *widgetNamespace) Ping(ctx context.Context) (string, error) {
	w.n++
	return fmt.Sprintf("pong %d", w.n), nil
}

// actorPool lazily creates one *actorrpc.Actor per (namespace, id) pair and
// caches its handler, so repeated requests reuse the same in-memory
// instance and on-disk store instead of rehydrating on every call.
type actorPool struct {
	cfg    *config
	logger *zap.Logger

	mu      sync.Mutex
	actors  map[string]*actorrpc.Actor
	handler map[string]http.Handler
}

func newActorPool(cfg *config, logger *zap.Logger) *actorPool {
	return &actorPool{
		cfg:     cfg,
		logger:  logger,
		actors:  make(map[string]*actorrpc.Actor),
		handler: make(map[string]http.Handler),
	}
}

func (p *actorPool) lookup(namespace, id string) (http.Handler, error) {
	if namespace != "widgets" {
		return nil, fmt.Errorf("unknown actor namespace %q", namespace)
	}
	key := namespace + "/" + id

	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handler[key]; ok {
		return h, nil
	}

	a, err := actorrpc.NewActor(actorrpc.HostConfig{
		ActorID:         key,
		Instance:        &widget{},
		ProtocolVersion: p.cfg.protocolVersion,
		Colo:            p.cfg.colo,
		StorageDir:      p.cfg.dataDir,
		Logger:          p.logger,
	})
	if err != nil {
		return nil, err
	}

	p.actors[key] = a
	p.handler[key] = a.Host.Handler()
	return p.handler[key], nil
}

func (p *actorPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, a := range p.actors {
		if err := a.Close(); err != nil {
			p.logger.Warn("error closing actor", zap.String("actor", key), zap.Error(err))
		}
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
