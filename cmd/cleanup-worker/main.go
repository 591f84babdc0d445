// Command cleanup-worker runs the expiry sweep as a standalone process, for
// deployments that disable the in-process sweeper of link-service.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Varun5711/shortlinks/internal/config"
	"github.com/Varun5711/shortlinks/internal/database"
	"github.com/Varun5711/shortlinks/internal/idgen"
	"github.com/Varun5711/shortlinks/internal/lock"
	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/redis"
	"github.com/Varun5711/shortlinks/internal/storage"
	"github.com/Varun5711/shortlinks/internal/sweeper"
)

func main() {
	log := logger.New("cleanup-worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewDBManager(ctx, database.Config{
		PrimaryDSN:      cfg.Database.PrimaryDSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbManager.Close()

	idGen, err := idgen.NewGenerator(cfg.Snowflake.DatacenterID, cfg.Snowflake.WorkerID)
	if err != nil {
		log.Fatal("Failed to create ID generator: %v", err)
	}
	store := storage.NewPostgresStorage(dbManager, idGen, cfg.Database.QueryTimeout)

	var locker sweeper.Locker
	redisClient, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, sweeping without the cross-replica lock: %v", err)
	} else {
		defer redisClient.Close()
		locker = lock.NewDistributedLock(redisClient.Raw(), cfg.Sweeper.LockKey, cfg.Sweeper.Interval)
	}

	log.Info("Cleanup worker started. Running every %s...", cfg.Sweeper.Interval)
	sweeper.New(store, locker, cfg.Sweeper.Interval, log).Run(ctx)
}
