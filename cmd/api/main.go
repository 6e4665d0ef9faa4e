package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/graphlens/internal/api"
	"github.com/maraichr/graphlens/internal/config"
	"github.com/maraichr/graphlens/internal/crypto"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/internal/metadata"
	"github.com/maraichr/graphlens/internal/store"
	"github.com/maraichr/graphlens/internal/store/postgres"
	vk "github.com/maraichr/graphlens/internal/store/valkey"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	s := store.New(pool)

	// Default graph connection — the execution target for every scope
	// without dedicated connection material.
	connOpts := graph.ConnectionOptions{
		ConnectTimeout: cfg.Neo4j.ConnectTimeout,
		MaxRetryTime:   cfg.Neo4j.MaxRetryTime,
	}
	defaultClient, err := graph.NewClient(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, connOpts)
	if err != nil {
		logger.Error("failed to create default graph connection", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer defaultClient.Close(ctx)
	if err := defaultClient.Verify(ctx); err != nil {
		logger.Warn("default graph connection not reachable yet", slog.String("error", err.Error()))
	} else {
		logger.Info("connected to graph backend", slog.String("uri", cfg.Neo4j.URI))
	}

	// Credential sealing (optional — without it scope-dedicated connections
	// are disabled and every scope uses the default connection)
	var secrets *crypto.Box
	if cfg.Crypto.CredentialKey != "" {
		secrets, err = crypto.New(cfg.Crypto.CredentialKey)
		if err != nil {
			logger.Error("invalid credential key", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("CREDENTIAL_KEY not set, scope-dedicated connections disabled")
	}

	var secretsDec graph.Decrypter
	if secrets != nil {
		secretsDec = secrets
	}
	resolver := graph.NewResolver(defaultClient, s, secretsDec, connOpts, logger)
	defer resolver.Close(ctx)

	executor := graph.NewExecutor(resolver, cfg.Query.MaxRows, logger)

	// Valkey (optional — enables semantic schema caching)
	var schemaProvider metadata.SchemaProvider = s
	vkClient, err := vk.NewClient(ctx, cfg.Valkey)
	if err != nil {
		logger.Warn("valkey connection failed, schema caching disabled", slog.String("error", err.Error()))
	} else {
		schemaProvider = metadata.NewCachedSchemaProvider(s, vkClient, cfg.Query.SchemaCacheTTL, logger)
		defer vkClient.Close()
		logger.Info("connected to valkey")
	}

	enricher := metadata.NewEnricher(schemaProvider, logger)

	router := api.NewRouter(logger, s, &api.RouterDeps{
		Executor:     executor,
		Resolver:     resolver,
		Enricher:     enricher,
		Secrets:      secrets,
		DefaultLimit: cfg.Query.DefaultLimit,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
