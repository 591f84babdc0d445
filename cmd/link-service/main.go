package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Varun5711/shortlinks/internal/alias"
	"github.com/Varun5711/shortlinks/internal/auth"
	"github.com/Varun5711/shortlinks/internal/cache"
	"github.com/Varun5711/shortlinks/internal/config"
	"github.com/Varun5711/shortlinks/internal/database"
	"github.com/Varun5711/shortlinks/internal/database/migrations"
	"github.com/Varun5711/shortlinks/internal/events"
	"github.com/Varun5711/shortlinks/internal/handlers"
	"github.com/Varun5711/shortlinks/internal/idgen"
	"github.com/Varun5711/shortlinks/internal/lock"
	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/middleware"
	"github.com/Varun5711/shortlinks/internal/redis"
	"github.com/Varun5711/shortlinks/internal/service"
	"github.com/Varun5711/shortlinks/internal/storage"
	"github.com/Varun5711/shortlinks/internal/sweeper"
	"github.com/Varun5711/shortlinks/internal/usage"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	log := logger.New("link-service")
	log.SetStdLog()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idGen, err := idgen.NewGenerator(cfg.Snowflake.DatacenterID, cfg.Snowflake.WorkerID)
	if err != nil {
		log.Fatal("Failed to create ID generator: %v", err)
	}

	store, closeStore := openStore(ctx, cfg, idGen, log)
	defer closeStore()

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// Redis only backs best-effort concerns, so run without it.
			log.Warn("Redis unavailable, continuing without L2 cache, rate limiting and click events: %v", err)
		} else {
			defer redisClient.Close()
			rdb = redisClient.Raw()
		}
	}

	multiTier := cache.NewMultiTierCache(cfg.Cache.L1Capacity, rdb, cfg.Cache.TTL, log.Named("cache"))
	go multiTier.ListenInvalidations(ctx)
	linkCache := cache.NewLinkCache(multiTier, log.Named("cache"))

	var publisher usage.Publisher
	if rdb != nil {
		producer := events.NewClickProducer(rdb, cfg.Redis.StreamName)
		if n, err := producer.StreamLength(ctx); err != nil {
			log.Warn("Click stream %s unreadable: %v", cfg.Redis.StreamName, err)
		} else {
			log.Info("Publishing clicks to %s (%d entries pending)", cfg.Redis.StreamName, n)
		}
		publisher = producer
	}
	tracker := usage.NewTracker(store, publisher, log.Named("usage"))

	aliases := alias.NewGenerator(store, alias.Config{
		Iterations:  cfg.Alias.Iterations,
		MaxAttempts: cfg.Alias.MaxAttempts,
	}, log.Named("alias"))

	linkService := service.NewLinkService(store, aliases, linkCache, tracker, service.Options{
		BaseURL: cfg.Services.BaseURL,
		QRCode:  cfg.Services.QRCodeEnabled,
	}, log)

	var trigger handlers.SweepTrigger
	if cfg.Sweeper.Enabled {
		var locker sweeper.Locker
		if rdb != nil {
			locker = lock.NewDistributedLock(rdb, cfg.Sweeper.LockKey, cfg.Sweeper.Interval)
		}
		sw := sweeper.New(store, locker, cfg.Sweeper.Interval, log.Named("sweeper"))
		go sw.Run(ctx)
		trigger = sw
	}

	if cfg.Auth.JWTSecret == "change-me" {
		log.Warn("JWT_SECRET is the default value; set it before exposing the service")
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	var limiter *middleware.RateLimiter
	if rdb != nil {
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, handlers.ClientKey, log.Named("ratelimit"))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Links:        handlers.NewLinkHandler(linkService, trigger, log.Named("http")),
		Docs:         handlers.NewSwaggerHandler(),
		Auth:         middleware.NewAuthMiddleware(jwtManager, log.Named("auth")),
		Limiter:      limiter,
		Log:          log.Named("http"),
		NewRequestID: idGen.RequestID,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Services.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Listening on :%s (storage=%s, redis=%t)", cfg.Services.HTTPPort, cfg.Storage.Driver, rdb != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down link service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed: %v", err)
	}
	log.Info("Link service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, idGen *idgen.Generator, log *logger.Logger) (storage.Storage, func()) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory storage; links are lost on restart")
		return storage.NewMemoryStorage(idGen), func() {}
	}

	if cfg.Database.MigrateOnStart {
		migrator, err := migrations.New(cfg.Database.PrimaryDSN, log.Named("migrate"))
		if err != nil {
			log.Fatal("Failed to create migrator: %v", err)
		}
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to apply migrations: %v", err)
		}
		if err := migrator.Close(); err != nil {
			log.Warn("Failed to close migrator: %v", err)
		}
	}

	db, err := database.NewDBManager(ctx, database.Config{
		PrimaryDSN:      cfg.Database.PrimaryDSN,
		ReplicaDSNs:     cfg.Database.ReplicaDSNs,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	log.Info("Connected to database (%v)", db.Stats())

	return storage.NewPostgresStorage(db, idGen, cfg.Database.QueryTimeout), db.Close
}
