package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/offline"
	srvconfig "repairjournal/internal/app/server/config"
	"repairjournal/internal/infrastructure/broker"
	"repairjournal/web"
)

const shutdownTimeout = 5 * time.Second

// Serve запускает офлайн-кэш оболочки приложения перед сервером журнала
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.ServerURL == "" {
		return ErrOffline
	}
	origin, err := url.Parse(a.cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}

	var storage offline.Storage = offline.NewMemoryStorage()
	if a.cfg.Worker.RedisAddr != "" {
		client, err := broker.NewRedisClient(ctx, srvconfig.Redis{
			Addr:     a.cfg.Worker.RedisAddr,
			Password: a.cfg.Worker.RedisPassword,
			DB:       a.cfg.Worker.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("cache storage: %w", err)
		}
		defer client.Close()
		storage = offline.NewRedisStorage(client)
	}

	worker := offline.New(offline.Config{
		Version:  a.cfg.Worker.Version,
		Origin:   origin,
		Assets:   web.Assets,
		Denylist: a.cfg.Worker.Denylist,
	}, storage, nil, a.log)

	// без установленного кэша прокси работает как обычный, запросы идут в сеть
	if err := worker.Start(ctx); err != nil {
		a.log.Warn("offline cache install failed", slog.String("error", err.Error()))
	}

	srv := &http.Server{
		Addr:              a.cfg.Worker.Listen,
		Handler:           offline.Handler(worker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("offline cache listening",
			slog.String("addr", a.cfg.Worker.Listen),
			slog.String("origin", origin.String()),
			slog.String("cache", worker.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
