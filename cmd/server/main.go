package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itqanpos/backend/internal/config"
	"github.com/itqanpos/backend/internal/httpapi"
	"github.com/itqanpos/backend/internal/notify"
	"github.com/itqanpos/backend/internal/service"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/store/memory"
	pgstore "github.com/itqanpos/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.LogLevel)

	if err := validateAuthSecret(cfg.AuthSecret); err != nil {
		log.WithError(err).Fatal("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback")
		}
		if err := pg.Migrate(); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		if cfg.SeedDemoData {
			repo = memory.NewSeeded()
			log.Info("repository: in-memory (seeded)")
		} else {
			repo = memory.New()
			log.Info("repository: in-memory")
		}
	}

	events := notify.Publisher(notify.NoopPublisher{})
	if cfg.RedisAddr != "" {
		redisPub := notify.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel)
		if err := redisPub.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unavailable, events disabled")
		} else {
			events = redisPub
			closers = append(closers, redisPub.Close)
			log.Info("events: redis")
		}
	} else {
		log.Info("events: disabled")
	}

	svc := service.New(repo, service.Options{Events: events, Logger: log})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, log, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close error")
		}
	}
	log.Info("server stopped")
}

func validateAuthSecret(secret string) error {
	if len(secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
