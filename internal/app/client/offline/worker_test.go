package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairjournal/internal/utils/logger"
	"repairjournal/web"
)

type network struct {
	origin string
	down   atomic.Bool

	mu    sync.Mutex
	hosts []string
}

func (n *network) RoundTrip(r *http.Request) (*http.Response, error) {
	n.mu.Lock()
	n.hosts = append(n.hosts, r.URL.Host)
	n.mu.Unlock()

	if n.down.Load() {
		return nil, errors.New("network is down")
	}
	if r.URL.Host != n.origin {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("third party")),
			Request:    r,
		}, nil
	}
	return http.DefaultTransport.RoundTrip(r)
}

func (n *network) Hosts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.hosts...)
}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	shell := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>shell</html>")
	}
	mux.HandleFunc("GET /{$}", shell)
	mux.HandleFunc("GET /index.html", shell)
	mux.HandleFunc("GET /app.js", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "console.log(1)")
	})
	mux.HandleFunc("GET /extra.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "extra")
	})
	mux.HandleFunc("GET /files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.EscapedPath())
	})
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "api")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newWorker(t *testing.T, storage Storage, assets ...string) (*Worker, *network) {
	t.Helper()
	srv := newOrigin(t)
	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)

	if assets == nil {
		assets = []string{"/", "/index.html", "/app.js"}
	}
	netw := &network{origin: origin.Host}
	w := New(Config{Version: "v2", Origin: origin, Assets: assets}, storage, netw, logger.Discard())
	return w, netw
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWorker_StartDeletesStaleGenerations(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	for _, name := range []string{"repair-journal-v1", "repair-journal-v0", "legacy"} {
		_, err := storage.Open(ctx, name)
		require.NoError(t, err)
	}

	w, _ := newWorker(t, storage)
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, PhaseActive, w.Phase())

	names, err := storage.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"repair-journal-v2"}, names)

	cache, err := storage.Open(ctx, w.Name())
	require.NoError(t, err)
	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestWorker_InstallFailsOnMissingAsset(t *testing.T) {
	w, _ := newWorker(t, NewMemoryStorage(), "/", "/missing.js")

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseRedundant, w.Phase())
	assert.ErrorIs(t, w.Activate(context.Background()), ErrNotInstalled)
}

func TestWorker_SkipWaitingMessage(t *testing.T) {
	ctx := context.Background()
	w, _ := newWorker(t, NewMemoryStorage())

	require.NoError(t, w.Install(ctx))
	assert.Equal(t, PhaseWaiting, w.Phase())

	assert.ErrorIs(t, w.HandleMessage(ctx, "RELOAD"), ErrUnknownMessage)
	assert.Equal(t, PhaseWaiting, w.Phase())

	require.NoError(t, w.HandleMessage(ctx, MessageSkipWaiting))
	assert.Equal(t, PhaseActive, w.Phase())
}

func TestWorker_NetworkResponseIsCached(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	w, netw := newWorker(t, storage)
	require.NoError(t, w.Start(ctx))

	rec := get(w, "/extra.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extra", rec.Body.String())

	cache, _ := storage.Open(ctx, w.Name())
	key := cacheKey(w.cfg.Origin.ResolveReference(&url.URL{Path: "/extra.txt"}))
	cached, ok, err := cache.Match(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "extra", string(cached.Body))

	netw.down.Store(true)
	rec = get(w, "/extra.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extra", rec.Body.String())
}

func TestWorker_KeepsEscapedPath(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	w, _ := newWorker(t, storage)
	require.NoError(t, w.Start(ctx))

	rec := get(w, "/files/a%2Fb")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/files/a%2Fb", rec.Body.String())

	cache, _ := storage.Open(ctx, w.Name())
	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, http.MethodGet+" "+w.cfg.Origin.String()+"/files/a%2Fb")
	assert.NotContains(t, keys, http.MethodGet+" "+w.cfg.Origin.String()+"/files/a/b")
}

func TestWorker_ErrorResponsesAreNotCached(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	w, _ := newWorker(t, storage)
	require.NoError(t, w.Start(ctx))

	rec := get(w, "/nope.css")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cache, _ := storage.Open(ctx, w.Name())
	keys, _ := cache.Keys(ctx)
	assert.Len(t, keys, 3)
}

func TestWorker_OfflineFallback(t *testing.T) {
	w, netw := newWorker(t, NewMemoryStorage())
	require.NoError(t, w.Start(context.Background()))
	netw.down.Store(true)

	rec := get(w, "/journal/today", "Sec-Fetch-Mode", "navigate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>shell</html>", rec.Body.String())

	rec = get(w, "/journal/today", "Accept", "text/html,application/xhtml+xml")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(w, "/img/logo.png")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWorker_Bypass(t *testing.T) {
	w, netw := newWorker(t, NewMemoryStorage())
	require.NoError(t, w.Start(context.Background()))

	rec := get(w, "/api/v1/health")
	assert.Equal(t, "api", rec.Body.String())

	rec = get(w, "http://www.google-analytics.com/collect")
	assert.Equal(t, "third party", rec.Body.String())

	rec = get(w, "http://cdn.example.org/lib.js")
	assert.Equal(t, "third party", rec.Body.String())

	hosts := netw.Hosts()
	assert.Contains(t, hosts, "www.google-analytics.com")
	assert.Contains(t, hosts, "cdn.example.org")

	req := httptest.NewRequest(http.MethodPost, "/app.js", strings.NewReader("x"))
	rec = httptest.NewRecorder()
	w.ServeHTTP(rec, req)
	// POST уходит в сеть, а не в кэш, где /app.js уже есть
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	netw.down.Store(true)
	rec = get(w, "/api/v1/health")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestWorker_NotActiveGoesToNetwork(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	w, _ := newWorker(t, storage)

	rec := get(w, "/extra.txt")
	assert.Equal(t, "extra", rec.Body.String())

	names, _ := storage.Names(ctx)
	assert.Empty(t, names)
}

func TestWorker_InstallsEmbeddedShell(t *testing.T) {
	srv := httptest.NewServer(web.Handler())
	t.Cleanup(srv.Close)
	origin, _ := url.Parse(srv.URL)

	w := New(Config{Version: "test", Origin: origin, Assets: web.Assets}, NewMemoryStorage(), nil, logger.Discard())
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, PhaseActive, w.Phase())
}

func TestHandler_Control(t *testing.T) {
	w, _ := newWorker(t, NewMemoryStorage())
	require.NoError(t, w.Install(context.Background()))
	h := Handler(w)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/__worker/message", strings.NewReader("BOGUS")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/__worker/message", strings.NewReader(`{"type":"SKIP_WAITING"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"phase":"active","cache":"repair-journal-v2"}`, rec.Body.String())

	rec = get(h, "/app.js")
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = get(h, "/__worker/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "repair_journal_cache_requests_total")
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage := NewRedisStorage(client)

	stale, err := storage.Open(ctx, "repair-journal-v1")
	require.NoError(t, err)
	require.NoError(t, stale.Put(ctx, "GET http://x/", &Response{Status: 200, Body: []byte("old")}))

	_, ok, err := stale.Match(ctx, "GET http://x/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	w, _ := newWorker(t, storage)
	require.NoError(t, w.Start(ctx))

	names, err := storage.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"repair-journal-v2"}, names)
	assert.False(t, mr.Exists(redisCachePrefix+"repair-journal-v1"))

	rec := get(w, "/extra.txt")
	assert.Equal(t, "extra", rec.Body.String())

	cache, err := storage.Open(ctx, w.Name())
	require.NoError(t, err)
	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	removed, err := storage.Delete(ctx, "repair-journal-v9")
	require.NoError(t, err)
	assert.False(t, removed)
}
