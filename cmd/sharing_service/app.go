package sharingservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"locshare/internal/common/config"
	"locshare/internal/common/contextx"
	"locshare/internal/common/jwt"
	"locshare/internal/common/logger"
	"locshare/internal/common/postgres"
	"locshare/internal/common/rabbitmq"
	commonws "locshare/internal/common/ws"
	"locshare/internal/sharing/adapters/api"
	"locshare/internal/sharing/adapters/queue"
	"locshare/internal/sharing/adapters/repository"
	"locshare/internal/sharing/adapters/store"
	wsgateway "locshare/internal/sharing/adapters/ws"
	"locshare/internal/sharing/app"
	"locshare/internal/sharing/cache"
	"locshare/internal/sharing/domain"
	"locshare/internal/sharing/identity"
	"locshare/internal/sharing/permission"
)

func Run(ctx context.Context, maxConcurrent int, configPath string) error {
	log := logger.New("sharing-service")
	ctx = contextx.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load config", err, map[string]any{"path": configPath})
		return err
	}

	// Postgres for friendships
	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// Redis for the remote location records
	records, err := store.NewRecordStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "redis_connection_failed", "Failed to connect to Redis", err, nil)
		return err
	}
	defer records.Close()

	// RabbitMQ for the location event queue
	rmq, err := rabbitmq.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// local cache: file-backed when configured, otherwise in-memory
	var cacheStore cache.Store
	if cfg.Sharing.CacheFile != "" {
		fs, err := cache.NewFileStore(cfg.Sharing.CacheFile)
		if err != nil {
			log.Error(ctx, "cache_open_failed", "Failed to open cache file", err, map[string]any{"path": cfg.Sharing.CacheFile})
			return err
		}
		cacheStore = fs
	} else {
		cacheStore = cache.NewMemoryStore()
	}
	locCache := cache.New(cacheStore, cfg.Sharing.CacheTTL)

	validator := domain.NewValidator(domain.ValidatorConfig{
		MaxAccuracyMeters: cfg.Sharing.MaxAccuracyMeters,
		MaxReadingAge:     cfg.Sharing.MaxReadingAge,
		MaxClockSkew:      cfg.Sharing.ClockSkew,
		MinAltitudeMeters: domain.DefaultValidatorConfig().MinAltitudeMeters,
		MaxAltitudeMeters: domain.DefaultValidatorConfig().MaxAltitudeMeters,
	})

	ids := identity.FromContext{}
	friends := repository.NewFriendRepository(pool, log)
	publisher := queue.NewEventPublisher(rmq)

	perms := permission.NewManager(friends, ids, log)
	perms.Initialize(ctx)

	svc := app.NewService(ids, records, validator, locCache, publisher, log)
	readRepo := app.NewRepository(records, validator, locCache, log)

	hub := commonws.NewHub(log)
	gateway := wsgateway.NewGateway(log, hub, jwtManager, svc, perms, readRepo)
	rest := api.NewHandler(log, jwtManager, readRepo, perms, hub).Router()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.HandleClient)
	mux.Handle("/locations/", rest)
	mux.Handle("/connections", rest)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebSocket.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Sharing service started on port %d", cfg.WebSocket.Port),
		map[string]any{"port": cfg.WebSocket.Port, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.WebSocket.Port})
			return err
		}
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		}
	})
}
