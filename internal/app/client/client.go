package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/auth"
	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/app/client/config"
	"repairjournal/internal/app/client/kv"
	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/app/client/session"
	"repairjournal/internal/app/client/view"
	"repairjournal/internal/domain/identity"
)

var (
	ErrForbidden = errors.New("действие недоступно для вашей роли")
	ErrOffline   = errors.New("синхронизация не настроена: укажите server_url")
)

type App struct {
	cfg *config.Config
	log *slog.Logger
	out io.Writer

	store     kv.Store
	sessions  *session.Store
	directory *identity.Directory
	auth      *auth.Authenticator
	remote    *remote.Client
	boot      *bootstrap.Controller
	panel     *view.Panel
	renderer  *gatedRenderer

	mu sync.Mutex
}

// New собирает клиента; сеть не используется до первого запуска журнала
func New(cfg *config.Config, out io.Writer, log *slog.Logger) (*App, error) {
	directory, err := cfg.IdentityProvider()
	if err != nil {
		return nil, fmt.Errorf("справочник пользователей: %w", err)
	}

	var store kv.Store
	sqliteStore, err := kv.NewSQLiteStore(cfg.KVPath)
	if err != nil {
		log.Warn("Не удалось открыть хранилище сессии, сессия не сохранится", slog.String("error", err.Error()))
		store = kv.NewMemoryStore()
	} else {
		store = sqliteStore
	}

	return newApp(cfg, out, log, store, directory, remote.DocstoreConnector), nil
}

func newApp(cfg *config.Config, out io.Writer, log *slog.Logger, store kv.Store, directory *identity.Directory, connector remote.Connector) *App {
	sessions := session.NewStore(store)
	rc := remote.New(connector, log)
	panel := view.NewPanel(out)
	renderer := &gatedRenderer{renderer: view.NewTableRenderer(out)}

	return &App{
		cfg:       cfg,
		log:       log,
		out:       out,
		store:     store,
		sessions:  sessions,
		directory: directory,
		auth:      auth.New(directory, sessions, log),
		remote:    rc,
		boot: bootstrap.New(bootstrap.Config{
			MaxAttempts: cfg.Bootstrap.MaxAttempts,
			RetryDelay:  cfg.Bootstrap.RetryDelay,
			Remote:      remoteConfig(cfg),
		}, sessions, rc, panel, renderer, log),
		panel:    panel,
		renderer: renderer,
	}
}

func remoteConfig(cfg *config.Config) *remote.Config {
	if cfg.ServerURL == "" {
		return nil
	}
	return &remote.Config{
		ServerURL:       cfg.ServerURL,
		PersistencePath: cfg.CachePath,
		Timeout:         cfg.Timeout,
		ReconnectDelay:  cfg.ReconnectDelay,
	}
}

func (a *App) Directory() *identity.Directory {
	return a.directory
}

func (a *App) Panel() *view.Panel {
	return a.panel
}

// Login проверяет выбранную учетную запись и сохраняет сессию
func (a *App) Login(ctx context.Context, role identity.Role, name, password string) (session.Session, error) {
	a.auth.SelectIdentity(role, name)
	return a.auth.AttemptLogin(ctx, password)
}

func (a *App) Logout(ctx context.Context) error {
	a.boot.Teardown()
	return a.auth.Logout(ctx)
}

func (a *App) WhoAmI(ctx context.Context) (session.Session, error) {
	return a.sessions.Load(ctx)
}

// Start запускает журнал; render выводит таблицы после загрузки
func (a *App) Start(ctx context.Context, render bool) (*bootstrap.AppContext, error) {
	a.renderer.enable(render)
	if err := a.boot.Initialize(ctx); err != nil {
		return nil, err
	}
	return a.boot.Context(), nil
}

// Reload - ручной перезапуск после ошибки запуска
func (a *App) Reload(ctx context.Context) (*bootstrap.AppContext, error) {
	a.renderer.enable(true)
	if err := a.boot.Reload(ctx); err != nil {
		return nil, err
	}
	return a.boot.Context(), nil
}

func (a *App) Close() error {
	return errors.Join(a.remote.Close(), a.store.Close())
}

// gatedRenderer пропускает вывод для команд, которым нужны только данные
type gatedRenderer struct {
	renderer *view.TableRenderer

	mu      sync.Mutex
	enabled bool
}

func (g *gatedRenderer) enable(on bool) {
	g.mu.Lock()
	g.enabled = on
	g.mu.Unlock()
}

func (g *gatedRenderer) Render(ctx context.Context, app *bootstrap.AppContext) error {
	g.mu.Lock()
	on := g.enabled
	g.mu.Unlock()
	if !on {
		return nil
	}
	return g.renderer.Render(ctx, app)
}
