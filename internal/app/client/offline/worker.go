// Package offline - кэширующий прокси оболочки приложения. Отдает сохраненные
// ресурсы без сети, пополняет кэш успешными ответами и удаляет старые поколения
// при активации новой версии.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/exp/slog"

	"repairjournal/internal/metrics"
)

const (
	CachePrefix = "repair-journal-"

	MessageSkipWaiting = "SKIP_WAITING"
)

var (
	ErrNotInstalled   = errors.New("offline worker is not installed")
	ErrUnknownMessage = errors.New("unknown worker message")
)

// DefaultDenylist - сторонние хосты, запросы к которым не кэшируются
var DefaultDenylist = []string{
	"googleapis.com",
	"firebaseio.com",
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"adservice.google.com",
}

type Phase string

const (
	PhaseInstalling Phase = "installing"
	PhaseWaiting    Phase = "waiting"
	PhaseActivating Phase = "activating"
	PhaseActive     Phase = "active"
	PhaseRedundant  Phase = "redundant"
)

type Config struct {
	Version  string
	Origin   *url.URL
	Assets   []string
	Denylist []string
}

func CacheName(version string) string {
	return CachePrefix + version
}

type Worker struct {
	cfg       Config
	name      string
	storage   Storage
	transport http.RoundTripper
	proxy     *httputil.ReverseProxy
	log       *slog.Logger

	mu          sync.RWMutex
	phase       Phase
	skipWaiting bool
	cache       Cache
}

// New создает worker; transport - сеть, nil означает http.DefaultTransport
func New(cfg Config, storage Storage, transport http.RoundTripper, log *slog.Logger) *Worker {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}

	origin := cfg.Origin
	w := &Worker{
		cfg:       cfg,
		name:      CacheName(cfg.Version),
		storage:   storage,
		transport: transport,
		log:       log.With(slog.String("component", "offline_worker"), slog.String("cache", CacheName(cfg.Version))),
	}
	w.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			if !pr.In.URL.IsAbs() {
				pr.SetURL(origin)
			}
			pr.Out.Host = ""
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler: func(rw http.ResponseWriter, r *http.Request, err error) {
			w.log.Debug("network request failed", slog.String("url", r.URL.String()), slog.String("error", err.Error()))
			http.Error(rw, "network unavailable", http.StatusBadGateway)
		},
	}
	return w
}

func (w *Worker) Name() string {
	return w.name
}

func (w *Worker) Phase() Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

func (w *Worker) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = p
	w.mu.Unlock()
	w.log.Info("worker phase changed", slog.String("phase", string(p)))
}

// Start устанавливает текущую версию и, если ожидание пропущено, сразу активирует ее
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	w.mu.RLock()
	skip := w.skipWaiting
	w.mu.RUnlock()
	if !skip {
		return nil
	}
	return w.Activate(ctx)
}

// Install загружает все ресурсы оболочки в текущее поколение. Ошибка любого ресурса
// отменяет установку.
func (w *Worker) Install(ctx context.Context) error {
	w.setPhase(PhaseInstalling)

	cache, err := w.storage.Open(ctx, w.name)
	if err != nil {
		w.setPhase(PhaseRedundant)
		return fmt.Errorf("install: %w", err)
	}

	for _, asset := range w.cfg.Assets {
		if err := w.precache(ctx, cache, asset); err != nil {
			w.setPhase(PhaseRedundant)
			return fmt.Errorf("install %s: %w", asset, err)
		}
	}

	w.mu.Lock()
	w.cache = cache
	w.phase = PhaseWaiting
	w.skipWaiting = true
	w.mu.Unlock()

	w.log.Info("worker installed", slog.Int("assets", len(w.cfg.Assets)))
	return nil
}

func (w *Worker) precache(ctx context.Context, cache Cache, asset string) error {
	target := w.cfg.Origin.ResolveReference(&url.URL{Path: asset})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}

	resp, err := w.fetch(req)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.Status)
	}
	return cache.Put(ctx, cacheKey(target), resp)
}

// Activate удаляет все поколения, кроме текущего, и начинает обслуживать запросы
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.RLock()
	installed := w.cache != nil
	w.mu.RUnlock()
	if !installed {
		return ErrNotInstalled
	}

	w.setPhase(PhaseActivating)

	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	for _, name := range names {
		if name == w.name {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("activate: %w", err)
		}
		w.log.Info("stale cache deleted", slog.String("name", name))
	}

	w.setPhase(PhaseActive)
	return nil
}

// HandleMessage обрабатывает команды оператора
func (w *Worker) HandleMessage(ctx context.Context, msg string) error {
	if msg != MessageSkipWaiting {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg)
	}

	w.mu.Lock()
	w.skipWaiting = true
	waiting := w.phase == PhaseWaiting
	w.mu.Unlock()

	if !waiting {
		return nil
	}
	return w.Activate(ctx)
}

func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	active := w.phase == PhaseActive
	cache := w.cache
	w.mu.RUnlock()

	if !active || w.bypass(r) {
		metrics.CacheRequestsTotal.WithLabelValues("bypass").Inc()
		w.proxy.ServeHTTP(rw, r)
		return
	}

	target := w.cfg.Origin.ResolveReference(&url.URL{
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	})
	key := cacheKey(target)

	cached, ok, err := cache.Match(r.Context(), key)
	if err != nil {
		w.log.Warn("cache lookup failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if ok {
		metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
		writeResponse(rw, cached)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := w.fetch(req)
	if err != nil {
		w.fallback(rw, r, cache)
		return
	}

	if resp.Status == http.StatusOK {
		if err := cache.Put(r.Context(), key, resp); err != nil {
			w.log.Warn("cache put failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		metrics.CacheRequestsTotal.WithLabelValues("stored").Inc()
	} else {
		metrics.CacheRequestsTotal.WithLabelValues("network").Inc()
	}
	writeResponse(rw, resp)
}

// bypass - запросы, которые идут в сеть без участия кэша
func (w *Worker) bypass(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if !r.URL.IsAbs() {
		return false
	}

	host := r.URL.Hostname()
	for _, denied := range w.cfg.Denylist {
		if host == denied || strings.HasSuffix(host, "."+denied) {
			return true
		}
	}
	return r.URL.Scheme != w.cfg.Origin.Scheme || r.URL.Host != w.cfg.Origin.Host
}

func (w *Worker) fallback(rw http.ResponseWriter, r *http.Request, cache Cache) {
	if isNavigation(r) {
		for _, p := range []string{"/", "/index.html"} {
			root := w.cfg.Origin.ResolveReference(&url.URL{Path: p})
			resp, ok, err := cache.Match(r.Context(), cacheKey(root))
			if err == nil && ok {
				metrics.CacheRequestsTotal.WithLabelValues("fallback").Inc()
				writeResponse(rw, resp)
				return
			}
		}
	}

	metrics.CacheRequestsTotal.WithLabelValues("unavailable").Inc()
	http.Error(rw, "offline", http.StatusServiceUnavailable)
}

func (w *Worker) fetch(req *http.Request) (*Response, error) {
	resp, err := w.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	header := resp.Header.Clone()
	header.Del("Content-Length")
	return &Response{Status: resp.StatusCode, Header: header, Body: body}, nil
}

func writeResponse(rw http.ResponseWriter, resp *Response) {
	for k, values := range resp.Header {
		for _, v := range values {
			rw.Header().Add(k, v)
		}
	}
	rw.WriteHeader(resp.Status)
	_, _ = io.Copy(rw, bytes.NewReader(resp.Body))
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func cacheKey(u *url.URL) string {
	return http.MethodGet + " " + u.String()
}
