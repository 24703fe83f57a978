package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/logger"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/routes"
	"shuttle_tracker/internal/services"
	"shuttle_tracker/internal/store"
	"shuttle_tracker/internal/store/gormstore"
	"shuttle_tracker/internal/store/memstore"
)

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logrus.Warn("Using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}
	db, err := config.OpenDB(cfg.DB)
	if err != nil {
		return nil, err
	}
	return gormstore.New(db), nil
}

// purgeNotifications deletes expired notifications every interval until ctx is done.
func purgeNotifications(ctx context.Context, svc *services.NotificationService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Purge(ctx); err != nil {
				logrus.WithError(err).Warn("Notification purge failed")
			}
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging to file
	accessLog := logger.Setup(cfg.LogFile, cfg.LogLevel)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open store")
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector()
	}
	var gauge hub.SubscriberGauge
	if collector != nil {
		gauge = collector
	}
	locations := hub.NewLocationHub(gauge)
	defer locations.Close()

	svc := services.New(st, cfg, services.Options{Metrics: collector, Publisher: locations})
	auth := &middleware.Auth{
		Tokens: middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry),
		Users:  svc.Users,
	}

	r := routes.SetupRouter(routes.Deps{
		Services:       svc,
		Auth:           auth,
		Hub:            locations,
		Metrics:        collector,
		AccessLog:      accessLog,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.PurgeInterval > 0 {
		go purgeNotifications(ctx, svc.Notifications, cfg.Notifications.PurgeInterval)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
