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

	"github.com/go-chi/httplog"
	"github.com/marcelsud/chat-webhooks/catalog"
	"github.com/marcelsud/chat-webhooks/config"
	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/internal/http/chi"
	"github.com/marcelsud/chat-webhooks/metrics"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/memory"
	"github.com/marcelsud/chat-webhooks/webhook/redis"
	"github.com/rs/zerolog"
)

/* The api binary wires the store, the delivery engine and the HTTP layer
 * Imports only go one direction: down. main imports the business packages,
 * which import the storage layer
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := httplog.NewLogger(cfg.GetAppName(), httplog.Options{
		JSON: true,
	}).Level(cfg.GetLogLevel())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := openRepository(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("opening store")
		return
	}
	defer repo.Close(ctx)

	policy := webhook.Policy{
		TimeoutMS:    cfg.GetWebhookTimeoutMS(),
		Retries:      cfg.GetWebhookRetries(),
		RetryDelayMS: cfg.GetWebhookRetryDelayMS(),
	}
	if err := policy.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid delivery policy in config")
		return
	}

	s := webhook.NewService(repo,
		webhook.WithKey(cfg.GetStoreKey()),
		webhook.WithPolicy(policy),
		webhook.WithLogger(logger),
	)
	s.Load(ctx)

	if err := seedCatalog(ctx, cfg.GetWebhooksFile(), s, logger); err != nil {
		logger.Error().Err(err).Msg("applying webhooks file")
		return
	}

	collector := metrics.NewStoreCollector(s)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		logger.Error().Err(err).Msg("creating metrics exporter")
		return
	}
	defer exporter.Shutdown(context.Background())

	dispatcher := delivery.NewDispatcher(
		delivery.WithRecorder(exporter),
		delivery.WithDispatcherLogger(logger),
	)
	coordinator := delivery.NewCoordinator(s, dispatcher,
		delivery.WithLogger(logger),
		delivery.WithAppName(cfg.GetAppName()),
	)
	prober := delivery.NewProber(dispatcher, s, cfg.GetAppName())

	r := chi.Handlers(ctx, chi.Services{
		Webhooks: s,
		Trigger:  coordinator,
		Prober:   prober,
		Stats:    collector,
		Metrics:  exporter.ServeHTTP(),
		Logger:   &logger,
	})
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: chi.WriteTimeout(),
		Addr:         ":" + cfg.GetPort(),
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, time.Duration(cfg.GetShutdownTimeoutS())*time.Second, errShutdown)
	logger.Info().Str("port", cfg.GetPort()).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("serving")
		return
	}
	err = <-errShutdown
	if err != nil {
		logger.Error().Err(err).Msg("shutting down")
		return
	}
}

// openRepository picks Redis unless REDIS_ADDR=memory
func openRepository(cfg *config.Config, logger zerolog.Logger) (webhook.Repository, error) {
	if !cfg.UseRedis() {
		logger.Warn().Msg("using in-memory store, webhooks will not survive a restart")
		return memory.NewRepository(), nil
	}
	repo, err := redis.NewRepository(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.GetRedisAddr(), err)
	}
	return repo, nil
}

// seedCatalog adds the webhooks declared in the YAML file that the store does not know yet
func seedCatalog(ctx context.Context, path string, s *webhook.Service, logger zerolog.Logger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug().Str("file", path).Msg("no webhooks file")
		return nil
	}
	loader := catalog.NewLoader()
	if err := loader.Load(path); err != nil {
		return err
	}
	added, err := loader.Apply(ctx, s)
	if err != nil {
		return err
	}
	logger.Info().Str("file", path).Int("added", len(added)).Msg("webhooks file applied")
	return nil
}

func shutdown(server *http.Server, ctxShutdown context.Context, timeout time.Duration, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
