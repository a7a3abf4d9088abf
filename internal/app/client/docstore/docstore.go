// Package docstore - клиент сервера документов журнала: анонимный вход, чтение и запись
// документов, лента изменений SSE и локальный кэш SQLite для работы без сети.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultReconnectDelay = 3 * time.Second
	userAgent             = "RepairJournal-Client/1.0"
)

var (
	ErrOffline         = errors.New("document server unreachable")
	ErrUnauthenticated = errors.New("document server rejected credentials")
	ErrNotFound        = errors.New("document not found")
	ErrClosed          = errors.New("docstore closed")

	// ErrPersistenceUnimplemented - локальный кэш не поддерживается в этом окружении
	ErrPersistenceUnimplemented = errors.New("persistence unimplemented")
	// ErrPersistenceFailedPrecondition - кэш уже открыт другим процессом
	ErrPersistenceFailedPrecondition = errors.New("persistence failed precondition")
)

// StatusError - ответ сервера с кодом ошибки, не покрытый сентинелами
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("document server: status %d", e.Code)
	}
	return fmt.Sprintf("document server: status %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	ReconnectDelay time.Duration
	// HTTPClient заменяет транспорт по умолчанию (тесты, прокси)
	HTTPClient *http.Client
}

type Client struct {
	baseURL        string
	client         *http.Client
	stream         *http.Client
	reconnectDelay time.Duration
	log            *slog.Logger

	mu     sync.RWMutex
	token  string
	uid    string
	cache  *cache
	closed bool
}

// New не выполняет сетевых запросов
func New(cfg Config, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid document server url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reconnect := cfg.ReconnectDelay
	if reconnect <= 0 {
		reconnect = defaultReconnectDelay
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		}
	}
	// лента изменений живет дольше любого таймаута запроса
	stream := &http.Client{Transport: client.Transport}

	return &Client{
		baseURL:        u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/"),
		client:         client,
		stream:         stream,
		reconnectDelay: reconnect,
		log:            log.With(slog.String("component", "docstore")),
	}, nil
}

// SignInAnonymously получает токен сессии без учетных данных
func (c *Client) SignInAnonymously(ctx context.Context) error {
	var body struct {
		Token string `json:"token"`
		UID   string `json:"uid"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/auth/anonymous", nil, &body); err != nil {
		return fmt.Errorf("anonymous sign-in: %w", err)
	}
	if body.Token == "" {
		return fmt.Errorf("anonymous sign-in: %w", &StatusError{Code: http.StatusOK, Message: "empty token"})
	}

	c.mu.Lock()
	c.token = body.Token
	c.uid = body.UID
	c.mu.Unlock()

	c.log.Debug("signed in anonymously", slog.String("uid", body.UID))
	return nil
}

func (c *Client) UID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

func (c *Client) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// EnablePersistence открывает локальный кэш документов и очередь неотправленных записей.
// Кэш принадлежит одному процессу до Close.
func (c *Client) EnablePersistence(path string) error {
	if path == "" {
		return ErrPersistenceUnimplemented
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cache != nil {
		return nil
	}

	cache, err := openCache(path)
	if err != nil {
		return err
	}
	c.cache = cache
	c.log.Debug("persistence enabled", slog.String("path", path))
	return nil
}

func (c *Client) PersistenceEnabled() bool {
	return c.localCache() != nil
}

func (c *Client) localCache() *cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.client.CloseIdleConnections()
	if c.cache != nil {
		err := c.cache.close()
		c.cache = nil
		return err
	}
	return nil
}
