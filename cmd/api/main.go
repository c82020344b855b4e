package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	mongoadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/redis"
	"github.com/robertarktes/afterschool-bookings/internal/booking"
	"github.com/robertarktes/afterschool-bookings/internal/config"
	httphandler "github.com/robertarktes/afterschool-bookings/internal/http"
	"github.com/robertarktes/afterschool-bookings/internal/idempotency"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"github.com/robertarktes/afterschool-bookings/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "afterschool-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI).SetTimeout(cfg.MongoTimeout))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDatabase)

	lessons := mongoadapter.NewLessonRepository(mongoDB, logger)
	orders := mongoadapter.NewOrderRepository(mongoDB, logger)
	outbox := mongoadapter.NewOutboxRepository(mongoDB, logger)
	if err := outbox.EnsureIndexes(context.Background()); err != nil {
		logger.WithError(err).Warn("failed to create outbox indexes")
	}

	checks := map[string]httphandler.CheckFunc{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
	}
	opts := []booking.Option{}
	if cfg.CancelTransactional {
		opts = append(opts, booking.WithTransactions(mongoadapter.NewTxRunner(mongoClient)))
	}
	routerCfg := httphandler.RouterConfig{ImagesDir: cfg.ImagesDir, RateLimitPerMinute: cfg.RateLimitPerMinute}

	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		opts = append(opts, booking.WithLessonCache(redisadapter.NewCache(redisClient, cfg.LessonsCacheTTL)))
		routerCfg.Idempotency = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
		routerCfg.RateLimiter = rateLimit.NewRateLimiter(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Info("REDIS_ADDR not set, lesson cache, idempotency and rate limiting disabled")
	}

	svc := booking.NewService(lessons, orders, outbox, logger, opts...)
	handlers := httphandler.NewHandlers(svc, logger, checks)
	r := httphandler.SetupRouter(handlers, logger, routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server Shutdown")
	}
	logger.Info("Server exiting")
}
