package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"greendrake/localboard/internal/api"
	"greendrake/localboard/internal/cache"
	"greendrake/localboard/internal/config"
	"greendrake/localboard/internal/db"
	"greendrake/localboard/internal/logging"
	"greendrake/localboard/internal/payments"
	"greendrake/localboard/internal/storage"
	"greendrake/localboard/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'cron' (scheduler), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.DevLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	var serveAPI, bg, img, cron bool
	switch cfg.RunMode {
	case "api":
		serveAPI = true
	case "bg":
		bg = true
	case "img":
		img = true
	case "cron":
		cron = true
	case "all":
		serveAPI, bg, img, cron = true, true, true, true
	default:
		return fmt.Errorf("invalid run mode %q", cfg.RunMode)
	}
	log = log.With(zap.String("mode", cfg.RunMode))

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Warn("error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.EnsureIndexes(indexCtx, mongoDb)
	cancelIndex()
	if err != nil {
		return err
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Warn("error disconnecting from Redis", zap.Error(err))
		}
	}()

	store := storage.NewS3Storage(cfg, log)

	provider := payments.NewClient(cfg.PaymentAPIURL, cfg.PaymentSecretKey, cfg.PaymentWebhookSecret)
	defer provider.Close()

	taskClient := tasks.NewClient(cfg)
	defer taskClient.Close()

	svcs := api.NewServices(cfg, mongoDb, redisClient, tasks.NewEnqueuer(taskClient, log), store, provider, log)
	taskProcessor := tasks.NewTaskProcessor(cfg, svcs.Listings, svcs.Moderation, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)
	fatal := make(chan error, 4)

	serve := func(name string, srv *http.Server) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("listening", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal <- fmt.Errorf("%s: %w", name, err)
			}
			log.Info("server stopped", zap.String("server", name))
		}()
	}

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(healthChecks(mongoClient, redisClient), shutdownChan, log),
	}
	serve("service", serviceSrv)

	var mainApiSrv *http.Server
	if serveAPI {
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           api.SetupRouter(ctx, cfg, svcs, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		serve("api", mainApiSrv)
	}

	// bg and img share one process in "all" mode but stay separate servers
	// so image work cannot starve the lifecycle sweeps.
	var workers []*asynq.Server
	startWorker := func(name string, background, images bool) {
		srv := tasks.NewServer(cfg, log.With(zap.String("worker", name)))
		workers = append(workers, srv)
		mux := taskProcessor.Mux(background, images)
		if err := srv.Start(mux); err != nil {
			fatal <- fmt.Errorf("%s worker: %w", name, err)
			return
		}
		log.Info("worker started", zap.String("worker", name))
	}
	if bg {
		startWorker("background", true, false)
	}
	if img {
		startWorker("images", false, true)
	}

	var scheduler *asynq.Scheduler
	if cron {
		scheduler, err = tasks.NewScheduler(cfg, log)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		log.Info("shutdown requested via service API")
	case runErr = <-fatal:
		log.Error("component failed, shutting down", zap.Error(runErr))
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Warn("api server shutdown error", zap.Error(err))
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	for _, w := range workers {
		w.Shutdown()
	}
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Warn("service server shutdown error", zap.Error(err))
	}

	wg.Wait()
	log.Info("stopped gracefully")
	return runErr
}

func healthChecks(mongoClient *mongo.Client, rdb *redis.Client) map[string]api.HealthCheck {
	return map[string]api.HealthCheck{
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}
