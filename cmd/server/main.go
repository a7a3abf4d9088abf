package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/server/api"
	"repairjournal/internal/app/server/config"
	"repairjournal/internal/app/server/scheduler"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/session"
	"repairjournal/internal/infrastructure/broker"
	"repairjournal/internal/infrastructure/migration"
	"repairjournal/internal/infrastructure/storage/postgres"
	"repairjournal/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

type changeBus interface {
	document.Publisher
	document.Subscriber
}

func main() {
	conf := config.MustLoad()
	log := logger.New(conf.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.DB.DatabaseURI == "" {
		log.Error("DATABASE_URI is not set")
		os.Exit(1)
	}

	if err := migration.NewMigration(conf.DB, migration.DefaultEngine).Up(); err != nil {
		log.Error("apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	storage, err := postgres.New(ctx, conf.DB)
	if err != nil {
		log.Error("init storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	var bus changeBus = broker.NewMemory()
	if conf.Redis.Addr != "" {
		client, err := broker.NewRedisClient(ctx, conf.Redis)
		if err != nil {
			log.Error("init redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer client.Close()
		bus = broker.NewRedis(client, log)
		log.Info("change feed via redis", slog.String("addr", conf.Redis.Addr))
	} else {
		log.Info("change feed in memory, REDIS_ADDR is not set")
	}

	sessionService := session.NewService(postgres.NewSessionRepository(storage, log), conf.Session.TTL, log)
	documentService := document.NewService(postgres.NewDocumentRepository(storage, log), bus, log)

	cleaner := scheduler.New(sessionService, documentService, conf.Cleanup.Retention, log)
	if err := cleaner.Start(conf.Cleanup.Schedule); err != nil {
		log.Error("start scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr: conf.Server.RunAddress,
		Handler: api.New(api.Deps{
			DB:        storage,
			Sessions:  sessionService,
			Documents: documentService,
			Changes:   bus,
		}, log),
		ReadHeaderTimeout: 5 * time.Second,
		// потоки SSE закрываются вместе с ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("server started", slog.String("addr", conf.Server.RunAddress), slog.String("env", conf.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.String("error", err.Error()))
	}
	cleaner.Stop(shutdownCtx)
}
