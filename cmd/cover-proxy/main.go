package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/cover/pkg/cache"
	"github.com/Sternrassler/cover/pkg/config"
	"github.com/Sternrassler/cover/pkg/dispatch"
	"github.com/Sternrassler/cover/pkg/invalidation"
	"github.com/Sternrassler/cover/pkg/logging"
	"github.com/Sternrassler/cover/pkg/metrics"
	"github.com/Sternrassler/cover/pkg/mvc"
	"github.com/Sternrassler/cover/pkg/origin"
	"github.com/Sternrassler/cover/pkg/rules"
	"github.com/Sternrassler/cover/pkg/store"
)

func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger(logging.ComponentServer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Redis
	var redisClient *redis.Client
	if cfg.Store == config.StoreRedis || cfg.Invalidation.Channel != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	a, err := newApp(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build proxy")
	}
	defer a.Close()

	if a.subscriber != nil {
		go func() {
			if err := a.subscriber.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Invalidation subscriber stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("store", cfg.Store).
		Str("upstream", cfg.Server.Upstream).
		Str("context", cfg.Cache.Context).
		Msg("Starting cover proxy")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

// app holds the wired proxy components.
type app struct {
	mux        *http.ServeMux
	manager    *cache.Manager
	flusher    *invalidation.Flusher
	subscriber *invalidation.Subscriber
	stores     []store.Store
}

// newApp wires stores, cache, rules and HTTP handlers from cfg. redisClient
// is required for the redis store and the invalidation channel.
func newApp(cfg *config.Config, redisClient *redis.Client) (*app, error) {
	metaStore, contentStore, err := newStores(cfg, redisClient)
	if err != nil {
		return nil, err
	}

	manager := cache.NewManager(metaStore, contentStore, cfg.CacheConfig(), logging.NewLogger(logging.ComponentCache))

	steps, err := cfg.StepConfiguration()
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	engine := rules.NewEngine(steps, rules.NewExprEvaluator(), manager, logging.NewLogger(logging.ComponentRules))
	if err := engine.Precompile(); err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	dispatchLogger := logging.NewLogger(logging.ComponentDispatch)
	router := mvc.NewRouter()
	handler := dispatch.NewHandler(router, dispatch.NewInterceptor(engine, dispatchLogger), dispatchLogger)

	if cfg.Server.Upstream != "" {
		client, err := origin.New(origin.DefaultConfig(cfg.Server.Upstream), logging.NewLogger(logging.ComponentOrigin))
		if err != nil {
			return nil, err
		}
		router.Handle(client.Route())
		handler.WithFallback(client.Passthrough())
	}
	if name := cfg.Server.SessionCookie; name != "" {
		handler.WithSessions(cookieSessions(name))
	}

	invalidationLogger := logging.NewLogger(logging.ComponentInvalidation)
	flusher := invalidation.NewFlusher(manager, invalidationLogger)

	a := &app{
		mux:     http.NewServeMux(),
		manager: manager,
		flusher: flusher,
		stores:  []store.Store{metaStore, contentStore},
	}
	if cfg.Invalidation.Channel != "" {
		if redisClient == nil {
			return nil, errors.New("invalidation channel requires redis")
		}
		a.subscriber = invalidation.NewSubscriber(redisClient, cfg.Invalidation.Channel, flusher, invalidationLogger)
	}

	a.mux.HandleFunc("/health", healthHandler)
	a.mux.Handle("/ready", readyHandler(redisClient, logging.NewLogger(logging.ComponentServer)))
	a.mux.Handle("/metrics", metrics.Handler())
	if cfg.Invalidation.Purge {
		a.mux.Handle(invalidation.PurgePath, invalidation.PurgeHandler(flusher, cfg.Invalidation.PurgeToken, invalidationLogger))
	}
	a.mux.Handle("/", handler)
	return a, nil
}

// Close releases the stores.
func (a *app) Close() error {
	var errs []error
	for _, s := range a.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newStores(cfg *config.Config, redisClient *redis.Client) (store.Store, store.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis store requires a redis client")
		}
		return store.NewRedisStore(redisClient, cfg.Redis.Prefix+":meta", "metadata"),
			store.NewRedisStore(redisClient, cfg.Redis.Prefix+":content", "content"),
			nil
	case config.StoreMemory, "":
		return store.NewMemoryStore(), store.NewMemoryStore(), nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func cookieSessions(name string) dispatch.SessionFunc {
	return func(r *http.Request) *mvc.Session {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return nil
		}
		return &mvc.Session{ID: c.Value, Started: true}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether Redis, when used, answers a ping.
func readyHandler(redisClient *redis.Client, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "READY")
	})
}
