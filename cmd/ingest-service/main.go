package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/SolanaSergio/ApexBets-sub005/internal/cache"
	"github.com/SolanaSergio/ApexBets-sub005/internal/config"
	"github.com/SolanaSergio/ApexBets-sub005/internal/dedup"
	"github.com/SolanaSergio/ApexBets-sub005/internal/fetch"
	"github.com/SolanaSergio/ApexBets-sub005/internal/logging"
	"github.com/SolanaSergio/ApexBets-sub005/internal/processor"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/balldontlie"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/espn"
	"github.com/SolanaSergio/ApexBets-sub005/internal/providers/oddsapi"
	"github.com/SolanaSergio/ApexBets-sub005/internal/ratelimit"
	"github.com/SolanaSergio/ApexBets-sub005/internal/scheduler"
	"github.com/SolanaSergio/ApexBets-sub005/internal/server"
	"github.com/SolanaSergio/ApexBets-sub005/internal/store"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Log)

	if cfg.Webhook.Secret == "" {
		log.Warn("WEBHOOK_SECRET is empty, inbound deliveries cannot authenticate")
	}

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()
	log.Info("connected to postgres")

	// Redis backs the durable cache tier. Startup proceeds without it; the
	// cache and dedup layers degrade to their memory tiers.
	var redisClient *redis.Client
	var durableCache cache.Durable
	if opts, err := redis.ParseURL(normalizeRedisURL(cfg.Redis.URL)); err != nil {
		log.WithError(err).Warn("invalid REDIS_URL, running without the durable cache tier")
	} else {
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, running without the durable cache tier")
			redisClient.Close()
			redisClient = nil
		} else {
			durableCache = cache.NewRedis(redisClient)
			defer redisClient.Close()
			log.Info("connected to redis")
		}
	}

	dedupStore := dedup.NewStore(
		dedup.NewMemoryTier(dedup.DefaultMemoryTTL, nil),
		dedup.NewPostgresTier(db.DB(), dedup.DefaultDurableWindow),
		log,
	)
	dedupStore.Start()
	defer dedupStore.Stop()

	dataCache := cache.New(cache.NewMemory(nil), durableCache, nil, log)
	dataCache.Start()
	defer dataCache.Stop()

	budgets := ratelimit.NewRegistry()
	budgets.Register(ratelimit.NewBudget(espn.Name, cfg.ESPN.MinuteLimit, cfg.ESPN.DayLimit, nil))
	budgets.Register(ratelimit.NewBudget(oddsapi.Name, cfg.OddsAPI.MinuteLimit, cfg.OddsAPI.DayLimit, nil))
	budgets.Register(ratelimit.NewBudget(balldontlie.Name, cfg.BallDontLie.MinuteLimit, cfg.BallDontLie.DayLimit, nil))

	fetcher := fetch.New(dataCache, budgets, log)

	sched := scheduler.New(
		cfg.Scheduler,
		fetcher,
		db,
		dedupStore,
		espn.New(),
		oddsapi.New(cfg.OddsAPI.APIKey, ""),
		balldontlie.New(cfg.BallDontLie.APIKey, ""),
		log,
	)

	proc := processor.New(processor.Config{
		WebhookSecret: cfg.Webhook.Secret,
		Allowlist:     cfg.Webhook.AllowedIPs,
		Dedup:         dedupStore,
		Store:         db,
		Refresher:     sched,
		Log:           log,
	})

	router := server.Router(server.NewHandler(proc, db, log), cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	serverErrors := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("ingest service listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.WithError(err).Fatal("server error")

	case sig := <-shutdown:
		log.WithField("signal", sig.String()).Info("shutting down")

		stopScheduler()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed, closing")
			if err := srv.Close(); err != nil {
				log.WithError(err).Error("could not stop server")
			}
		}

		sched.Wait()
	}

	log.Info("shutdown complete")
}

// normalizeRedisURL accepts both "host:port" and full redis:// URLs.
func normalizeRedisURL(url string) string {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		return url
	}
	return "redis://" + url
}
