package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/docstore"
)

// ErrConfigMissing - сервер документов не настроен; клиент работает без синхронизации
var ErrConfigMissing = errors.New("remote sync is not configured")

type Config struct {
	ServerURL       string
	PersistencePath string
	Timeout         time.Duration
	ReconnectDelay  time.Duration
}

type PersistenceStatus string

const (
	PersistenceEnabled            PersistenceStatus = "enabled"
	PersistenceFailedPrecondition PersistenceStatus = "failed-precondition"
	PersistenceUnimplemented      PersistenceStatus = "unimplemented"
	PersistenceError              PersistenceStatus = "error"
)

// Connector создает клиента SDK по конфигурации
type Connector func(cfg docstore.Config, log *slog.Logger) (Store, error)

// DocstoreConnector подключает настоящий SDK
func DocstoreConnector(cfg docstore.Config, log *slog.Logger) (Store, error) {
	return docstore.New(cfg, log)
}

type Client struct {
	connector Connector
	log       *slog.Logger

	mu     sync.Mutex
	handle *Handle
}

func New(connector Connector, log *slog.Logger) *Client {
	return &Client{
		connector: connector,
		log:       log.With(slog.String("component", "remote")),
	}
}

// ConnectOnce создает соединение при первом вызове и возвращает тот же Handle при последующих.
// Ошибки входа и настройки кэша не фатальны и отражаются в полях Handle.
func (c *Client) ConnectOnce(ctx context.Context, cfg *Config) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		if !c.handle.SignedIn() {
			c.handle.signIn(ctx)
		}
		return c.handle, nil
	}

	if c.connector == nil || cfg == nil || cfg.ServerURL == "" {
		return nil, ErrConfigMissing
	}

	store, err := c.connector(docstore.Config{
		BaseURL:        cfg.ServerURL,
		Timeout:        cfg.Timeout,
		ReconnectDelay: cfg.ReconnectDelay,
	}, c.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMissing, err)
	}

	h := &Handle{store: store, log: c.log}
	h.persistence = h.enablePersistence(cfg.PersistencePath)
	h.signIn(ctx)

	c.handle = h
	c.log.Info("remote connected",
		slog.String("server", cfg.ServerURL),
		slog.Bool("signed_in", h.SignedIn()),
		slog.String("persistence", string(h.persistence)),
	)
	return h, nil
}

// Handle возвращает текущее соединение или nil
func (c *Client) Handle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return nil
	}
	err := c.handle.close()
	c.handle = nil
	return err
}

// IsTransient отличает временный сбой сети или сервера от ошибок конфигурации и данных
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrConfigMissing) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, docstore.ErrOffline) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *docstore.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError || statusErr.Code == http.StatusTooManyRequests
	}
	return false
}
