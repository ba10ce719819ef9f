package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio.admin/config"
	"portfolio.admin/internal/api"
	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/content"
	"portfolio.admin/internal/crypto"
	"portfolio.admin/internal/generate"
	"portfolio.admin/internal/logging"
	"portfolio.admin/internal/objectstore"
	"portfolio.admin/internal/proxy"
	"portfolio.admin/internal/ratelimit"
	"portfolio.admin/internal/schema"
	"portfolio.admin/internal/store"
	"portfolio.admin/internal/store/migrate"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.RateLimit.Backend == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	verifier, err := initAuth(cfg, rdb, logger)
	if err != nil {
		return err
	}

	objects, err := initObjects(ctx, cfg)
	if err != nil {
		return err
	}

	var completer generate.Completer
	if cfg.AI.APIKey != "" {
		completer = generate.NewHTTPCompleter(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Timeout)
	} else {
		logger.Warn("AI_API_KEY not set, generation endpoints will answer 500")
	}

	deps := api.Deps{
		Auth:  verifier,
		Proxy: proxy.New(verifier, st, logger),
		Gateway: generate.NewGateway(generate.Options{
			Auth:       verifier,
			Completer:  completer,
			Objects:    objects,
			Limiter:    initGenerationLimiter(cfg, rdb),
			TextModel:  cfg.AI.TextModel,
			ImageModel: cfg.AI.ImageModel,
			Logger:     logger,
		}),
		Content:    content.NewReader(st),
		APILimiter: initAPILimiter(ctx, cfg, rdb),
		Logger:     logger,
	}
	if mem, ok := objects.(*objectstore.MemoryStore); ok {
		deps.Objects = mem
	}

	router := api.SetupRouter(api.NewHandler(deps), cfg, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server starting",
		"addr", cfg.Addr(),
		"base_url", cfg.Server.BaseURL,
		"store", cfg.Store.Type,
		"storage", cfg.Storage.Type,
		"rate_limit_backend", cfg.RateLimit.Backend,
		"trust_proxy", cfg.Server.TrustProxy,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var (
		db      *sql.DB
		dialect store.Dialect
		err     error
	)

	switch cfg.Store.Type {
	case "postgres":
		db, err = store.OpenPostgres(cfg.Store.DSN)
		dialect = store.Postgres
	case "sqlite":
		db, err = store.OpenSQLite(cfg.Store.SQLite.Path)
		dialect = store.SQLite
	default:
		logger.Warn("using in-memory store, content is lost on restart")
		return store.NewMemoryStore(schema.Names()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Type, err)
	}

	if err := migrate.Run(db, dialect.Name, logger); err != nil {
		db.Close()
		return nil, err
	}
	return store.NewSQLStore(db, dialect, schema.Names(), logger), nil
}

func initAuth(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (*auth.Verifier, error) {
	if cfg.Admin.Secret == "" {
		logger.Warn("ADMIN_SECRET not set, admin endpoints will answer 500")
		return auth.NewVerifier("", nil, logger), nil
	}

	key := []byte(cfg.Admin.SigningKey)
	if len(key) == 0 {
		derived, err := crypto.DeriveKey(cfg.Admin.Secret, "portfolio-admin session tokens")
		if err != nil {
			return nil, err
		}
		key = derived
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if rdb != nil {
		revoker = auth.NewRedisRevoker(rdb)
	}

	tokens, err := auth.NewTokenIssuer(key, cfg.Admin.TokenTTL, revoker)
	if err != nil {
		return nil, err
	}
	return auth.NewVerifier(cfg.Admin.Secret, tokens, logger), nil
}

func initGenerationLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, "ratelimit:generate", cfg.RateLimit.GenerationMax, cfg.RateLimit.Window)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.GenerationMax, cfg.RateLimit.Window)
}

// initAPILimiter returns the per-client request limiter. The memory backend
// is swept for the lifetime of ctx.
func initAPILimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, "ratelimit:api", cfg.RateLimit.RequestsPerMin, time.Minute)
	}
	mem := ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
	go mem.SweepLoop(ctx, time.Minute)
	return mem
}

func initObjects(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	if cfg.Storage.Type != "s3" {
		return objectstore.NewMemoryStore(cfg.PublicBaseURL()), nil
	}
	s3store, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object storage: %w", err)
	}
	return s3store, nil
}
