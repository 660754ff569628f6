// main wires the courier service: config, logger, postgres, the optional
// redis cache and kafka worker, the delivery pipeline, and the HTTP surface.
// Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier/internal/platform/config"
	"courier/internal/platform/httpserver"
	"courier/internal/platform/kafka/consumer"
	"courier/internal/platform/logger"
	"courier/internal/platform/middleware"
	platformredis "courier/internal/platform/redis"
	"courier/pkg/cache"
	"courier/pkg/platform/tx"

	"courier/internal/directory"
	"courier/internal/messaging/eventlog"
	"courier/internal/messaging/handler"
	"courier/internal/messaging/metrics"
	"courier/internal/messaging/models"
	"courier/internal/messaging/pipeline"
	"courier/internal/messaging/projection"
	"courier/internal/messaging/provider"
	"courier/internal/messaging/secure"
	"courier/internal/messaging/store/events"
	"courier/internal/messaging/store/messages"
	"courier/internal/messaging/store/providers"
	"courier/internal/messaging/store/summaries"
	"courier/internal/messaging/transport"
	"courier/internal/messaging/transport/email"
	"courier/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("courier exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a local development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventStore := events.NewPostgres(db)
	summaryStore := summaries.NewPostgres(db)
	messageStore := messages.NewPostgres(db)
	providerStore := providers.NewPostgres(db)

	msgMetrics := metrics.New()

	projector := projection.New(summaryStore, eventStore, messageStore, log,
		projection.WithMetrics(msgMetrics))
	newWriter := func() *eventlog.Writer {
		return eventlog.NewWriter(eventStore, projector, log,
			eventlog.WithMetrics(msgMetrics))
	}

	resolver := provider.NewResolver()
	resolver.Register(models.ChannelEmail, providerStore)

	registry := transport.NewRegistry()
	registry.Register(models.ChannelEmail, func(p *models.Provider) transport.Transport {
		return email.New(cfg.SMTP, p)
	})

	directoryClient := directory.NewClient(cfg.Directory)
	var orgCache cache.Cache[directory.Organisation]
	if redisClient != nil {
		orgCache = cache.NewRedis[directory.Organisation](redisClient.Client, "courier")
	} else {
		orgCache = cache.NewMemory[directory.Organisation](time.Minute)
	}
	organisations := directory.NewCachedOrganisations(directoryClient, orgCache, cfg.Directory.TranslationTTL, log)

	executor := pipeline.NewExecutor(cfg.JobTokenSecret, pipeline.Deps{
		Messages:      messageStore,
		Profiles:      directoryClient,
		Organisations: organisations,
		Providers:     resolver,
		Transports:    registry,
		Preparer:      secure.New(cfg.Secure),
		NewWriter:     newWriter,
	}, log, pipeline.WithMetrics(msgMetrics))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	runTx := func(ctx context.Context, fn func(context.Context) error) error {
		return tx.Run(ctx, db, fn)
	}
	handler.New(summaryStore, eventStore, messageStore, executor, newWriter, runTx, cfg.AdminToken, log).Register(router)
	handler.NewProviderHandler(resolver, cfg.AdminToken, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	go func() {
		log.Info("courier listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var jobConsumer *consumer.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		feed := worker.NewJobFeed(executor, log)
		jobConsumer, err = consumer.New(cfg.Kafka, feed, log)
		if err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		go func() {
			log.Info("job feed consuming", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
			if err := jobConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	if jobConsumer != nil {
		jobConsumer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
