package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"bloodbank/internal/audit"
	"bloodbank/internal/bank/cache"
	"bloodbank/internal/bank/handler"
	bankmetrics "bloodbank/internal/bank/metrics"
	"bloodbank/internal/bank/service"
	donorstore "bloodbank/internal/bank/store/donor"
	requeststore "bloodbank/internal/bank/store/request"
	unitstore "bloodbank/internal/bank/store/unit"
	"bloodbank/internal/jwttoken"
	"bloodbank/internal/platform/config"
	"bloodbank/internal/platform/httpserver"
	"bloodbank/internal/platform/logger"
	"bloodbank/internal/platform/middleware"
	"bloodbank/internal/platform/postgres"
	platformredis "bloodbank/internal/platform/redis"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := bankmetrics.New()
	auditInbox := make(chan audit.Event, cfg.AuditBufferSize)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(audit.NewChannelPublisher(auditInbox, log)),
		service.WithShelfLife(time.Duration(cfg.ShelfLifeDays) * 24 * time.Hour),
		service.WithMaxUnitsPerRequest(cfg.MaxUnitsPerRequest),
	}

	var (
		donors     service.DonorStore
		units      service.UnitStore
		requests   service.RequestStore
		auditStore audit.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		donors = donorstore.NewPostgres(db)
		units = unitstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		opts = append(opts, service.WithTx(newBankPostgresTx(db)))
		log.Info("using postgres stores")
	} else {
		donors = donorstore.NewInMemory()
		units = unitstore.NewInMemory()
		requests = requeststore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithAvailabilityCache(cache.NewAvailability(redisClient.Client)))
		log.Info("availability cache enabled")
	}

	h := handler.New(
		service.NewDonorService(donors, opts...),
		service.NewLedgerService(units, donors, opts...),
		service.NewRequestService(requests, opts...),
		service.NewAllocator(requests, units, opts...),
		log,
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "bloodbank", "bloodbank")

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)

	router.Get("/healthz", healthzHandler(redisClient))
	router.Handle("/metrics", promhttp.Handler())
	router.Post("/auth/staff-token", staffTokenHandler(jwtService, cfg.StaffPasswordHash))

	router.Group(h.Register)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(jwttoken.NewJWTServiceAdapter(jwtService), log))
		h.RegisterStaff(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	worker := audit.NewWorker(auditStore, auditInbox)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting bloodbank server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthzHandler(redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
