package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/binding"
	"github.com/example/storefront/internal/client"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/infrastructure/cache"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/invalidation"
	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/task"
	"github.com/example/storefront/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		_, _ = os.Stderr.WriteString("storefront: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(cfg.Env); err != nil {
		_, _ = os.Stderr.WriteString("storefront: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Named("main")

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(cfg.TracingEnabled)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	log.Info("starting storefront",
		zap.String("env", cfg.Env),
		zap.String("backend", cfg.BackendURL),
		zap.String("cart_backend", cfg.CartBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Bool("kafka", cfg.KafkaEnabled()),
	)

	// Redis serves the stores and the shared cache tier
	var rdb *redis.Client
	if cfg.CartBackend == config.BackendRedis || cfg.SessionBackend == config.BackendRedis || cfg.SharedCache {
		if rdb, err = store.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("connected to redis")
	}

	var cartStore store.CartStore
	switch cfg.CartBackend {
	case config.BackendRedis:
		cartStore = store.NewRedisCartStore(rdb, cfg.CartTTL)
	case config.BackendPostgres:
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)
		pg := store.NewPostgresCartStore(db)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		log.Info("connected to postgres")
		cartStore = pg
	default:
		cartStore = store.NewMemoryCartStore()
	}

	var sessionStore store.SessionStore = store.NewMemorySessionStore()
	if cfg.SessionBackend == config.BackendRedis {
		sessionStore = store.NewRedisSessionStore(rdb, cfg.SessionTTL)
	}

	opts := binding.Options{StaleTime: cfg.CacheStaleTime}
	if cfg.SharedCache {
		opts.Tier = cache.NewRedisTier(rdb)
	}
	bindings := binding.New(opts)

	// A nil *kafka.Producer must not reach the cart service as a non-nil interface
	var publisher cart.EventPublisher
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.CartEventsTopic)
		defer producer.Close()
		publisher = producer
	}

	backend := client.New(cfg.BackendURL, cfg.BackendTimeout)
	sessions := session.NewManager(sessionStore, auth.NewVerifier(cfg.JWTSecret), backend, cfg.SessionTTL)
	tasks := task.NewRegistry()

	queryHandler := query.NewHandler(bindings, backend, backend)
	cmdHandler := command.NewHandler(cart.NewService(cartStore, publisher), queryHandler, backend, sessions, tasks, bindings)
	handlers := api.NewHandlers(cmdHandler, queryHandler, tasks, cfg.Env == "production")

	var wg sync.WaitGroup
	if cfg.KafkaEnabled() {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.CatalogEventsTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		handler := invalidation.NewHandler(bindings)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("consuming catalog events", zap.String("topic", cfg.CatalogEventsTopic))
			if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
				log.Error("catalog consumer stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers, sessions, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown failed", zap.Error(err))
	}

	wg.Wait()
	return nil
}
