package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/lendcart/api/controllers"
	"github.com/angelmondragon/lendcart/api/routes"
	"github.com/angelmondragon/lendcart/internal/availability"
	"github.com/angelmondragon/lendcart/internal/cart"
	"github.com/angelmondragon/lendcart/internal/checkout"
	"github.com/angelmondragon/lendcart/internal/slot"
	"github.com/angelmondragon/lendcart/pkg/config"
	"github.com/angelmondragon/lendcart/pkg/db"
	"github.com/angelmondragon/lendcart/pkg/lending"
	"github.com/angelmondragon/lendcart/pkg/logger"
	"github.com/angelmondragon/lendcart/pkg/metrics"
	"github.com/angelmondragon/lendcart/pkg/migrate"
	pkgredis "github.com/angelmondragon/lendcart/pkg/redis"
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
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"slot":   cfg.Cart.SlotName,
		"driver": cfg.Cart.SlotDriver,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(reg)

	backend, err := lending.NewClient(cfg.Backend.BaseURL,
		lending.WithTimeout(cfg.Backend.Timeout),
		lending.WithToken(cfg.Backend.APIToken),
	)
	requireResource(ctx, logg, "lending backend client", err)

	resolver, err := availability.NewResolver(backend, cfg.Cart.Location())
	requireResource(ctx, logg, "availability resolver", err)

	enricher, err := cart.NewEnricher(backend, resolver, cfg.Cart.EnrichConcurrency, cfg.Cart.FetchTimeout)
	requireResource(ctx, logg, "enricher", err)

	var (
		newSlot     func(name string) (slot.Slot, error)
		lock        checkout.Lock
		idempotency pkgredis.IdempotencyStore
		checks      []controllers.ReadinessCheck
	)

	switch cfg.Cart.SlotDriver {
	case config.SlotDriverRedis:
		redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		newSlot = func(name string) (slot.Slot, error) {
			return slot.NewRedis(redisClient, name, cfg.Cart.ContextID)
		}
		redisLock, err := checkout.NewRedisLock(redisClient, redisClient.LockKey("checkout:"+cfg.Cart.SlotName), cfg.Checkout.LockTTL)
		requireResource(ctx, logg, "checkout lock", err)
		lock = redisLock
		idempotency = redisClient
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})

	case config.SlotDriverSQL:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}
		newSlot = func(name string) (slot.Slot, error) {
			return slot.NewSQL(dbClient.DB(), dbClient, name, cfg.Cart.ContextID, cfg.Cart.PollInterval)
		}
		checks = append(checks, controllers.ReadinessCheck{Name: "database", Pinger: dbClient})

	default:
		hub := slot.NewMemoryHub()
		newSlot = func(name string) (slot.Slot, error) {
			return hub.Slot(name, cfg.Cart.ContextID), nil
		}
	}

	registry := cart.NewRegistry(func(ctx context.Context, name string) (*cart.Store, error) {
		sl, err := newSlot(name)
		if err != nil {
			return nil, err
		}
		return cart.NewStore(ctx, sl,
			cart.WithEnricher(enricher),
			cart.WithLogger(logg),
			cart.WithMetrics(cartMetrics),
			cart.WithLocation(cfg.Cart.Location()),
		)
	})

	store, err := registry.Get(ctx, cfg.Cart.SlotName)
	requireResource(ctx, logg, "cart store", err)

	checkoutService, err := checkout.NewService(store, backend, lock, logg, cartMetrics)
	requireResource(ctx, logg, "checkout service", err)

	handler := routes.NewRouter(cfg, logg, store, checkoutService, idempotency, reg, checks...)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithField(ctx, "addr", server.Addr)
	logg.Info(ctx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
		if err := registry.Close(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "cart shutdown failed", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
