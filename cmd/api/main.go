package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-storefront/internal/cache"
	"catalog-storefront/internal/catalog"
	"catalog-storefront/internal/config"
	"catalog-storefront/internal/editor"
	"catalog-storefront/internal/gateway"
	"catalog-storefront/internal/handlers"
	"catalog-storefront/internal/logger"
	"catalog-storefront/internal/middleware"
	"catalog-storefront/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	if err := logger.Init(logger.DefaultConfig()); err != nil {
		logrus.WithError(err).Fatal("failed to initialize logging")
	}
	log := logger.GetAppLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.Init(cfg.EphemeralTTL)
	defer store.Close()

	gw := gateway.New(ctx, cfg, store, log)
	if gw.IsConfigured() {
		if err := gw.Ping(ctx); err != nil {
			log.WithError(err).Warn("catalog backend not reachable yet")
		}
		if created, err := gateway.EnsureUser(ctx, gw.Table(gateway.TableUsers), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.WithError(err).Warn("could not seed admin user")
		} else if created {
			log.WithField("email", cfg.AdminEmail).Info("admin user created")
		}
	} else {
		log.Warn("Modo Demo: catalog backend is not configured, changes are not persisted")
	}

	events, unsubscribe := gw.Auth().Subscribe()
	defer unsubscribe()
	go auditSessions(events, logger.GetAuditLogger())

	repo := catalog.NewProductRepository(gw, store, cfg.EphemeralTTL, logger.GetLogger("catalog"))
	newEditor := func() *editor.Editor {
		return editor.New(repo, gw.Table(gateway.TableProducts))
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.GetLogger("http")))
	routes.RegisterRoutes(router, routes.Handlers{
		Products: handlers.NewProductHandler(repo),
		Admin:    handlers.NewAdminHandler(repo, newEditor),
		Auth:     handlers.NewAuthHandler(gw.Auth()),
	}, gw.Auth())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if err := gw.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("closing catalog backend failed")
	}
}

func auditSessions(events <-chan gateway.SessionEvent, audit *logrus.Logger) {
	for ev := range events {
		entry := audit.WithField("event", string(ev.Kind))
		if s, ok := ev.Session.(gateway.LoggedIn); ok {
			entry = entry.WithField("user", s.User.Email)
		}
		entry.Info("session change")
	}
}
