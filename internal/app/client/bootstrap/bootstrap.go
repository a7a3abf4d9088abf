// Package bootstrap запускает клиентское приложение: проверяет сессию, подключает
// синхронизацию, загружает журнал и отображает его. Неудачные попытки повторяются
// ограниченное число раз, после чего показывается ошибка с ручной перезагрузкой.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/app/client/session"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/journal"
	"repairjournal/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

var (
	ErrUnauthenticated    = errors.New("bootstrap: not authenticated")
	ErrBootstrapExhausted = errors.New("bootstrap: attempts exhausted")
	ErrInProgress         = errors.New("bootstrap: already in progress")
)

type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

type SessionLoader interface {
	Load(ctx context.Context) (session.Session, error)
}

type Remote interface {
	ConnectOnce(ctx context.Context, cfg *remote.Config) (*remote.Handle, error)
}

// Navigator - переходы интерфейса, которые запрашивает контроллер
type Navigator interface {
	RedirectToLogin()
	ShowFatal(err error, reload func(ctx context.Context) error)
}

type Renderer interface {
	Render(ctx context.Context, app *AppContext) error
}

// AppContext - состояние приложения от проверки сессии до выхода
type AppContext struct {
	Session   session.Session
	DeviceID  string
	Equipment []journal.Equipment
	Repairs   []journal.Repair
	Online    bool
	FromCache bool
	Handle    *remote.Handle
}

type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// Remote - nil означает работу без синхронизации
	Remote *remote.Config
}

type Controller struct {
	cfg      Config
	sessions SessionLoader
	remote   Remote
	nav      Navigator
	renderer Renderer
	log      *slog.Logger
	deviceID string
	after    func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	state    State
	attempts int
	app      *AppContext
}

func New(cfg Config, sessions SessionLoader, rmt Remote, nav Navigator, renderer Renderer, log *slog.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Controller{
		cfg:      cfg,
		sessions: sessions,
		remote:   rmt,
		nav:      nav,
		renderer: renderer,
		log:      log.With(slog.String("component", "bootstrap")),
		deviceID: uuid.NewString(),
		after:    time.After,
		state:    StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Controller) DeviceID() string {
	return c.deviceID
}

// Context возвращает контекст приложения; nil до успешного запуска
func (c *Controller) Context() *AppContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.app
}

// Initialize выполняет попытки запуска по очереди, пока одна не завершится успешно
// или не будет исчерпан лимит. Повторный вызов после успеха ничего не делает.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateReady:
		c.mu.Unlock()
		return nil
	case c.state == StateAttempting:
		c.mu.Unlock()
		return ErrInProgress
	case c.state == StateFailed || c.attempts >= c.cfg.MaxAttempts:
		c.mu.Unlock()
		return ErrBootstrapExhausted
	}
	c.state = StateAttempting
	c.mu.Unlock()

	for {
		app, err := c.attempt(ctx)
		if err == nil {
			c.finish(StateReady, app)
			metrics.BootstrapAttemptsTotal.WithLabelValues("ready").Inc()
			c.log.Info("journal ready",
				slog.Bool("online", app.Online),
				slog.Int("equipment", len(app.Equipment)),
				slog.Int("repairs", len(app.Repairs)),
			)
			return nil
		}

		if errors.Is(err, ErrUnauthenticated) {
			c.finish(StateIdle, nil)
			metrics.BootstrapAttemptsTotal.WithLabelValues("unauthenticated").Inc()
			c.log.Info("no session, redirecting to login", slog.String("reason", err.Error()))
			c.nav.RedirectToLogin()
			return err
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		if attempts >= c.cfg.MaxAttempts {
			c.finish(StateFailed, nil)
			metrics.BootstrapAttemptsTotal.WithLabelValues("failed").Inc()
			c.log.Error("bootstrap failed",
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
			c.nav.ShowFatal(err, c.Reload)
			return fmt.Errorf("%w: %w", ErrBootstrapExhausted, err)
		}

		metrics.BootstrapAttemptsTotal.WithLabelValues("retry").Inc()
		c.log.Warn("bootstrap attempt failed, retrying",
			slog.Int("attempt", attempts),
			slog.Bool("transient", remote.IsTransient(err)),
			slog.Duration("delay", c.cfg.RetryDelay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			c.finish(StateIdle, nil)
			return ctx.Err()
		case <-c.after(c.cfg.RetryDelay):
		}
	}
}

// Reload - ручной перезапуск после исчерпания попыток
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAttempting {
		c.mu.Unlock()
		return ErrInProgress
	}
	c.state = StateIdle
	c.attempts = 0
	c.app = nil
	c.mu.Unlock()

	return c.Initialize(ctx)
}

// Teardown сбрасывает контекст приложения при выходе пользователя
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAttempting {
		return
	}
	c.state = StateIdle
	c.attempts = 0
	c.app = nil
}

func (c *Controller) finish(state State, app *AppContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.app = app
}

func (c *Controller) attempt(ctx context.Context) (*AppContext, error) {
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	app := &AppContext{
		Session:   sess,
		DeviceID:  c.deviceID,
		Equipment: []journal.Equipment{},
		Repairs:   []journal.Repair{},
	}

	handle, err := c.remote.ConnectOnce(ctx, c.cfg.Remote)
	switch {
	case errors.Is(err, remote.ErrConfigMissing):
		c.log.Info("remote sync unavailable, working offline", slog.String("reason", err.Error()))
	case err != nil:
		return nil, fmt.Errorf("connect: %w", err)
	default:
		app.Handle = handle
		app.Online = true
	}

	if err := c.load(ctx, app); err != nil {
		return nil, err
	}

	if c.renderer != nil {
		if err := c.renderer.Render(ctx, app); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}

	return app, nil
}

// load читает сначала справочник оборудования, затем заявки
func (c *Controller) load(ctx context.Context, app *AppContext) error {
	if app.Handle == nil {
		return nil
	}

	equipment, err := app.Handle.List(ctx, document.CollectionEquipment)
	if err != nil {
		return fmt.Errorf("load equipment: %w", err)
	}
	app.Equipment = journal.DecodeEquipment(equipment.Documents, c.log)

	repairs, err := app.Handle.List(ctx, document.CollectionRepairs)
	if err != nil {
		return fmt.Errorf("load repairs: %w", err)
	}
	app.Repairs = journal.DecodeRepairs(repairs.Documents, c.log)

	app.FromCache = equipment.FromCache || repairs.FromCache
	return nil
}
