package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/docstore"
	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/app/client/session"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/identity"
	"repairjournal/internal/utils/logger"
)

type fakeStore struct {
	lists atomic.Int32
	docs  map[document.Collection][]document.Document
}

func (f *fakeStore) SignInAnonymously(context.Context) error { return nil }
func (f *fakeStore) EnablePersistence(string) error          { return nil }

func (f *fakeStore) List(_ context.Context, col document.Collection) (docstore.ListResult, error) {
	f.lists.Add(1)
	return docstore.ListResult{Documents: f.docs[col]}, nil
}

func (f *fakeStore) Create(context.Context, document.Collection, string, json.RawMessage) (document.Document, error) {
	return document.Document{}, nil
}

func (f *fakeStore) Update(context.Context, document.Collection, string, json.RawMessage) (document.Document, error) {
	return document.Document{}, nil
}

func (f *fakeStore) Delete(context.Context, document.Collection, string) error { return nil }
func (f *fakeStore) Flush(context.Context) (int, error)                        { return 0, nil }
func (f *fakeStore) PendingCount(context.Context) (int, error)                 { return 0, nil }
func (f *fakeStore) Close() error                                              { return nil }

func (f *fakeStore) Listen(ctx context.Context, _ document.Collection, _ func(), _ func(document.Change)) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeSessions struct {
	err error
}

func (f *fakeSessions) Load(context.Context) (session.Session, error) {
	if f.err != nil {
		return session.Session{}, f.err
	}
	return session.New(identity.RoleAdmin, "Попов Н.В."), nil
}

type fakeNavigator struct {
	mu        sync.Mutex
	redirects int
	fatals    []error
	reload    func(context.Context) error
}

func (f *fakeNavigator) RedirectToLogin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects++
}

func (f *fakeNavigator) ShowFatal(err error, reload func(context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fatals = append(f.fatals, err)
	f.reload = reload
}

type fakeRenderer struct {
	mu       sync.Mutex
	failures int
	calls    int
	last     *AppContext
	block    chan struct{}
}

func (f *fakeRenderer) Render(_ context.Context, app *AppContext) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = app
	if f.failures > 0 {
		f.failures--
		return errors.New("render failed")
	}
	return nil
}

func (f *fakeRenderer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	ctrl       *Controller
	store      *fakeStore
	connects   *atomic.Int32
	nav        *fakeNavigator
	renderer   *fakeRenderer
	sessions   *fakeSessions
	delays     []time.Duration
	delaysLock sync.Mutex
}

func newFixture(t *testing.T, remoteCfg *remote.Config) *fixture {
	t.Helper()

	f := &fixture{
		store: &fakeStore{docs: map[document.Collection][]document.Document{
			document.CollectionEquipment: {
				{ID: "e1", Data: json.RawMessage(`{"name":"Пресс"}`)},
			},
			document.CollectionRepairs: {
				{ID: "r2", Data: json.RawMessage(`{"equipmentId":"e1","description":"Шум"}`)},
				{ID: "r1", Data: json.RawMessage(`{"equipmentId":"e1","description":"Течь","status":"completed"}`)},
			},
		}},
		connects: new(atomic.Int32),
		nav:      &fakeNavigator{},
		renderer: &fakeRenderer{},
		sessions: &fakeSessions{},
	}

	connector := func(docstore.Config, *slog.Logger) (remote.Store, error) {
		f.connects.Add(1)
		return f.store, nil
	}
	rc := remote.New(connector, logger.Discard())
	t.Cleanup(func() { _ = rc.Close() })

	f.ctrl = New(Config{Remote: remoteCfg}, f.sessions, rc, f.nav, f.renderer, logger.Discard())
	f.ctrl.after = func(d time.Duration) <-chan time.Time {
		f.delaysLock.Lock()
		f.delays = append(f.delays, d)
		f.delaysLock.Unlock()
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return f
}

var onlineCfg = &remote.Config{ServerURL: "http://localhost:8080"}

func TestInitialize_Success(t *testing.T) {
	f := newFixture(t, onlineCfg)

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	assert.Equal(t, StateReady, f.ctrl.State())

	app := f.ctrl.Context()
	require.NotNil(t, app)
	assert.True(t, app.Online)
	assert.NotNil(t, app.Handle)
	assert.Equal(t, "Попов Н.В.", app.Session.Name)
	assert.True(t, app.Session.Permissions.CanExport)
	assert.Equal(t, f.ctrl.DeviceID(), app.DeviceID)
	require.Len(t, app.Equipment, 1)
	require.Len(t, app.Repairs, 2)
	assert.Equal(t, "r2", app.Repairs[0].ID)
	assert.Same(t, app, f.renderer.last)
}

func TestInitialize_ReadyIsNoop(t *testing.T) {
	f := newFixture(t, onlineCfg)

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	require.NoError(t, f.ctrl.Initialize(context.Background()))

	assert.Equal(t, 1, f.renderer.Calls())
	assert.Equal(t, int32(2), f.store.lists.Load())
	assert.Equal(t, int32(1), f.connects.Load())
}

func TestInitialize_RetriesThenFails(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.renderer.failures = 100

	err := f.ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, ErrBootstrapExhausted)

	assert.Equal(t, StateFailed, f.ctrl.State())
	assert.Equal(t, DefaultMaxAttempts, f.ctrl.Attempts())
	assert.Equal(t, DefaultMaxAttempts, f.renderer.Calls())
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, f.delays)
	assert.Len(t, f.nav.fatals, 1)
	assert.Nil(t, f.ctrl.Context())
	// соединение создается один раз и переиспользуется всеми попытками
	assert.Equal(t, int32(1), f.connects.Load())

	err = f.ctrl.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrBootstrapExhausted)
	assert.Equal(t, DefaultMaxAttempts, f.renderer.Calls())
	assert.Len(t, f.nav.fatals, 1)
}

func TestInitialize_RecoversOnRetry(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.renderer.failures = 1

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Equal(t, 1, f.ctrl.Attempts())
	assert.Equal(t, 2, f.renderer.Calls())
	assert.Empty(t, f.nav.fatals)
}

func TestInitialize_Unauthenticated(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.sessions.err = session.ErrNoSession

	err := f.ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, session.ErrNoSession)

	assert.Equal(t, 1, f.nav.redirects)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Zero(t, f.ctrl.Attempts())
	assert.Zero(t, f.renderer.Calls())
	assert.Zero(t, f.connects.Load())
	assert.Empty(t, f.delays)
}

func TestInitialize_ConfigMissingDegrades(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctrl.Initialize(context.Background()))

	app := f.ctrl.Context()
	require.NotNil(t, app)
	assert.False(t, app.Online)
	assert.Nil(t, app.Handle)
	assert.NotNil(t, app.Repairs)
	assert.Empty(t, app.Repairs)
	assert.Zero(t, f.connects.Load())
}

func TestInitialize_InProgress(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.renderer.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Initialize(context.Background()) }()

	require.Eventually(t, func() bool {
		return f.ctrl.State() == StateAttempting
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.ctrl.Initialize(context.Background()), ErrInProgress)
	assert.ErrorIs(t, f.ctrl.Reload(context.Background()), ErrInProgress)

	close(f.renderer.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, f.ctrl.State())
}

func TestReload_AfterFailure(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.renderer.failures = DefaultMaxAttempts
	deviceID := f.ctrl.DeviceID()

	require.ErrorIs(t, f.ctrl.Initialize(context.Background()), ErrBootstrapExhausted)
	require.NotNil(t, f.nav.reload)

	require.NoError(t, f.nav.reload(context.Background()))
	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Zero(t, f.ctrl.Attempts())
	assert.Equal(t, deviceID, f.ctrl.Context().DeviceID)
}

func TestTeardown(t *testing.T) {
	f := newFixture(t, onlineCfg)
	deviceID := f.ctrl.DeviceID()

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	f.ctrl.Teardown()
	assert.Nil(t, f.ctrl.Context())
	assert.Equal(t, StateIdle, f.ctrl.State())

	require.NoError(t, f.ctrl.Initialize(context.Background()))
	assert.Equal(t, 2, f.renderer.Calls())
	assert.Equal(t, deviceID, f.ctrl.Context().DeviceID)
	assert.Equal(t, int32(1), f.connects.Load())
}

func TestInitialize_CancelledWhileWaiting(t *testing.T) {
	f := newFixture(t, onlineCfg)
	f.renderer.failures = 100
	f.ctrl.after = func(time.Duration) <-chan time.Time { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Initialize(ctx) }()

	require.Eventually(t, func() bool { return f.ctrl.Attempts() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, 1, f.renderer.Calls())
}
