package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/trip-booking/internal/boardingpass"
	"github.com/example/trip-booking/internal/booking"
	"github.com/example/trip-booking/internal/catalog"
	"github.com/example/trip-booking/internal/config"
	httpapi "github.com/example/trip-booking/internal/http"
	"github.com/example/trip-booking/internal/logging"
	"github.com/example/trip-booking/internal/notify"
	"github.com/example/trip-booking/internal/payments"
	"github.com/example/trip-booking/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("trip-booking", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage unavailable", "backend", cfg.StorageBackend(), "error", err)
		os.Exit(1)
	}
	defer closeKV()

	cat := catalog.Default()
	hub := httpapi.NewWSHub(logger)

	var email notify.EmailSender = &notify.LogEmailSender{Logger: logger}
	if cfg.EmailEndpoint != "" {
		email = notify.NewHTTPEmailSender(cfg.EmailEndpoint, cfg.EmailAPIKey)
	}

	var agency notify.AgencyNotifier = &notify.LogAgencyNotifier{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaAgencyNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kn.Close()
		agency = kn
	}

	var exporter boardingpass.Exporter
	if cfg.RendererEndpoint != "" {
		exporter = boardingpass.NewHTTPRenderer(cfg.RendererEndpoint)
	}

	gateways := func() payments.Gateway {
		return payments.NewSimulator(payments.RealClock(), cfg.PaymentAuthorizeDelay, cfg.PaymentConfirmDelay)
	}
	if cfg.StripeAPIKey != "" {
		gateways = func() payments.Gateway {
			g := payments.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeCurrency)
			g.PaymentMethod = cfg.StripePaymentMethod
			return g
		}
	}

	sessions := booking.NewRegistry(booking.Deps{
		Trips:        cat.ByID,
		Email:        email,
		Run:          booking.GoRunner,
		Publisher:    hub,
		Logger:       logger,
		PhaseTimeout: cfg.PaymentPhaseTimeout,
	}, gateways, kv, logger)
	go sessions.RunSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionIdleTimeout, hub.CloseSession)

	srv := httpapi.NewServer(httpapi.Options{
		Catalog:  cat,
		Sessions: sessions,
		Agency:   notify.NewAgencyTracker(agency, logger, nil),
		Exporter: exporter,
		Prefs:    kv,
		Hub:      hub,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("trip-booking listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend(), "stripe", cfg.StripeAPIKey != "")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("trip-booking stopped")
}

// openStorage picks the key/value backend and runs migrations when asked.
func openStorage(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.KV, func(), error) {
	switch cfg.StorageBackend() {
	case "postgres":
		pg, err := storage.NewPostgresKV(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RunMigrations {
			applied, err := storage.Migrate(ctx, pg.DB())
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
			logger.Info("migrations applied", "files", applied)
		}
		return pg, func() { pg.Close() }, nil
	case "redis":
		rkv := storage.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisNamespace)
		return rkv, func() { rkv.Close() }, nil
	}
	return storage.NewMemoryKV(), func() {}, nil
}
