package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/mongo"
	"github.com/robertarktes/afterschool-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/afterschool-bookings/internal/config"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"github.com/robertarktes/afterschool-bookings/internal/outbox"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required")
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "afterschool-outbox-publisher")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitOutboxMetrics()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI).SetTimeout(cfg.MongoTimeout))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	repo := mongoadapter.NewOutboxRepository(mongoClient.Database(cfg.MongoDatabase), logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	publisher := outbox.NewPublisher(repo, rabbit.NewBreakerPublisher(rabbitPub, logger), logger, cfg.OutboxBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.WithField("interval", cfg.OutboxPollInterval.String()).Info("Outbox publisher started")
	go publisher.Run(ctx, cfg.OutboxPollInterval)

	r := chi.NewRouter()
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.WithField("addr", metricsSrv.Addr).Info("Metrics server running")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown outbox publisher")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("metrics server shutdown")
	}
}
