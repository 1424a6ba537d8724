package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stratplan/db"
	"github.com/dmitrymomot/stratplan/modules/gating"
	"github.com/dmitrymomot/stratplan/pkg/config"
	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/httpserver"
	"github.com/dmitrymomot/stratplan/pkg/logger"
	"github.com/dmitrymomot/stratplan/pkg/pg"
	"github.com/dmitrymomot/stratplan/pkg/redis"
	"github.com/dmitrymomot/stratplan/pkg/requestid"
	"github.com/dmitrymomot/stratplan/svc/billing"
	"github.com/dmitrymomot/stratplan/svc/planning"
)

const readinessTimeout = 2 * time.Second

func newServeCmd() *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep subscriptions and usage in process memory (no Postgres or Redis)")
	return cmd
}

// backend is the storage a serve run works on.
type backend struct {
	repo          billing.Repository
	store         planning.Store
	subscriptions entitlement.SubscriptionStore
	invalidator   billing.Invalidator
	probes        map[string]httpserver.Probe
	close         func()
}

func runServe(ctx context.Context, memory bool) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	catalog, err := entitlement.NewCatalog(ctx, entitlement.NewYAMLSource(cfg.PlansFile))
	if err != nil {
		return err
	}

	var b *backend
	if memory {
		log.WarnContext(ctx, "running on in-memory storage, data is lost on exit")
		b = memoryBackend()
	} else if b, err = postgresBackend(ctx, cfg, log); err != nil {
		return err
	}
	defer b.close()

	var webhooks billing.WebhookParser
	if p, err := billing.NewPaddleWebhooks(cfg.Paddle); err == nil {
		webhooks = p
	} else if errors.Is(err, billing.ErrMissingWebhookSecret) {
		log.WarnContext(ctx, "PADDLE_WEBHOOK_SECRET is not set, billing webhooks are disabled")
	} else {
		return err
	}

	eval := entitlement.NewEvaluator(catalog, b.subscriptions,
		entitlement.WithUsageCounter(b.store),
		entitlement.WithLogger(log),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, readinessTimeout, b.probes))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", gating.Router(gating.RouterOptions{
		Evaluator: eval,
		Catalog:   catalog,
		Planning:  planning.NewService(b.store, eval, planning.WithLogger(log)),
		Billing: billing.NewService(b.repo, catalog, webhooks,
			billing.WithLogger(log),
			billing.WithInvalidator(b.invalidator),
		),
		Metrics:    gating.NewMetrics(reg),
		Logger:     log,
		UpgradeURL: cfg.UpgradeURL,
	}))

	log.InfoContext(ctx, "plan catalog loaded", slog.Int("plans", len(catalog.Plans())), slog.String("file", cfg.PlansFile))

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

func memoryBackend() *backend {
	repo := billing.NewMemoryRepository()
	return &backend{
		repo:          repo,
		store:         planning.NewMemoryStore(),
		subscriptions: repo,
		probes:        map[string]httpserver.Probe{},
		close:         func() {},
	}
}

func postgresBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, db.Migrations, pgCfg, log); err != nil {
		pool.Close()
		return nil, err
	}

	repo := billing.NewPostgresRepository(pool)
	b := &backend{
		repo:          repo,
		store:         planning.NewPostgresStore(pool),
		subscriptions: repo,
		probes:        map[string]httpserver.Probe{"postgres": pg.Healthcheck(pool)},
		close:         pool.Close,
	}
	if !cfg.SubscriptionCache {
		return b, nil
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		pool.Close()
		return nil, err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	cached := billing.NewCachedStore(repo, client, redisCfg.SubscriptionTTL, billing.WithCacheLogger(log))
	b.subscriptions = cached
	b.invalidator = cached
	b.probes["redis"] = redis.Healthcheck(client)
	b.close = func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", logger.Error(err))
		}
		pool.Close()
	}
	return b, nil
}
