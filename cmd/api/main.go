package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/blingbridge/api/routes"
	"github.com/angelmondragon/blingbridge/internal/contacts"
	"github.com/angelmondragon/blingbridge/internal/invoices"
	"github.com/angelmondragon/blingbridge/internal/options"
	"github.com/angelmondragon/blingbridge/internal/orders"
	"github.com/angelmondragon/blingbridge/internal/products"
	"github.com/angelmondragon/blingbridge/internal/saleschannels"
	"github.com/angelmondragon/blingbridge/internal/tokens"
	"github.com/angelmondragon/blingbridge/internal/triggers"
	blingwebhook "github.com/angelmondragon/blingbridge/internal/webhooks/bling"
	"github.com/angelmondragon/blingbridge/pkg/bling"
	"github.com/angelmondragon/blingbridge/pkg/config"
	"github.com/angelmondragon/blingbridge/pkg/db"
	"github.com/angelmondragon/blingbridge/pkg/logger"
	"github.com/angelmondragon/blingbridge/pkg/metrics"
	"github.com/angelmondragon/blingbridge/pkg/migrate"
	"github.com/angelmondragon/blingbridge/pkg/pubsub"
	"github.com/angelmondragon/blingbridge/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bridgeMetrics := metrics.NewBridgeMetrics(registry)

	emitter, publisher, err := buildEmitter(ctx, cfg, logg)
	if err != nil {
		return err
	}
	if publisher != nil {
		closers = append(closers, publisher)
	}

	deps, err := buildServices(cfg, logg, dbClient, redisClient, bridgeMetrics, emitter)
	if err != nil {
		return err
	}
	deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	if !blingwebhook.NewVerifier(cfg.Bling.SigningSecret()).Enabled() {
		logg.Warn(ctx, "no bling webhook secret configured; accepting unsigned deliveries (development only)")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": server.Addr})
	logg.Info(serverCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildEmitter always logs triggers and adds Pub/Sub when a project and topic are configured.
func buildEmitter(ctx context.Context, cfg *config.Config, logg *logger.Logger) (triggers.Emitter, *pubsub.Client, error) {
	emitters := triggers.MultiEmitter{triggers.NewLogEmitter(logg)}
	if !cfg.PubSub.Enabled() {
		return emitters, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	psEmitter, err := triggers.NewPubSubEmitter(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return append(emitters, psEmitter), client, nil
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	bridgeMetrics *metrics.BridgeMetrics,
	emitter triggers.Emitter,
) (routes.Deps, error) {
	optionsRepo := options.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	oauthClient, err := bling.NewOAuthClient(cfg.Bling, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	tokenService, err := tokens.NewService(tokens.ServiceParams{
		Store:    tokens.NewStore(optionsRepo, cfg.Bling.ClientID, cfg.Bling.ClientSecret),
		Endpoint: oauthClient,
		Logger:   logg,
		Recorder: bridgeMetrics,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	blingClient, err := bling.NewClient(cfg.Bling, tokenService, logg, bling.WithObserver(bridgeMetrics))
	if err != nil {
		return routes.Deps{}, err
	}

	contactService, err := contacts.NewService(contacts.ServiceParams{
		Client: blingClient,
		Cache:  optionsRepo,
		Logger: logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	productService, err := products.NewService(products.ServiceParams{
		Client: blingClient,
		Logger: logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	channelService, err := saleschannels.NewService(saleschannels.ServiceParams{
		Client:   blingClient,
		Cache:    redisClient,
		Logger:   logg,
		TTL:      cfg.Cache.SalesChannelTTL,
		StoreURL: cfg.Invoice.StoreURL,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Logger: logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	locker, err := invoices.NewRedisLocker(redisClient, cfg.Cache.InvoiceLockTTL)
	if err != nil {
		return routes.Deps{}, err
	}
	orchestrator, err := invoices.NewOrchestrator(invoices.OrchestratorParams{
		Orders:   ordersRepo,
		Client:   blingClient,
		Contacts: contactService,
		Products: productService,
		Channels: channelService,
		Locker:   locker,
		Logger:   logg,
		Recorder: bridgeMetrics,
		Debug:    cfg.App.Debug,

		SubmitTimeout: cfg.Bling.RequestTimeout,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	stateUpdater, err := invoices.NewStateUpdater(invoices.StateUpdaterParams{
		Orders: ordersRepo,
		Reader: blingClient,
		Logger: logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	guard, err := blingwebhook.NewIdempotencyGuard(redisClient, cfg.Cache.WebhookDedupTTL, "bling-webhook")
	if err != nil {
		return routes.Deps{}, err
	}
	webhookService, err := blingwebhook.NewService(blingwebhook.ServiceParams{
		Verifier: blingwebhook.NewVerifier(cfg.Bling.SigningSecret()),
		Guard:    guard,
		Emitter:  emitter,
		Updater:  stateUpdater,
		Logger:   logg,
		Recorder: bridgeMetrics,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		DB:           dbClient,
		Redis:        redisClient,
		Replay:       redisClient,
		Tokens:       tokenService,
		Orders:       orderService,
		Orchestrator: orchestrator,
		Channels:     channelService,
		Webhooks:     webhookService,
	}, nil
}
