package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/auth"
	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/app/client/config"
	"repairjournal/internal/app/client/docstore"
	"repairjournal/internal/app/client/kv"
	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/identity"
	"repairjournal/internal/domain/journal"
	"repairjournal/internal/utils/logger"
)

type memoryDocs struct {
	mu      sync.Mutex
	seq     int
	docs    map[document.Collection]map[string]document.Document
	pending int
	closes  int
}

func newMemoryDocs() *memoryDocs {
	return &memoryDocs{docs: map[document.Collection]map[string]document.Document{
		document.CollectionEquipment: {},
		document.CollectionRepairs:   {},
	}}
}

func (m *memoryDocs) SignInAnonymously(context.Context) error { return nil }
func (m *memoryDocs) EnablePersistence(string) error          { return nil }
func (m *memoryDocs) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *memoryDocs) List(_ context.Context, col document.Collection) (docstore.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]document.Document, 0, len(m.docs[col]))
	for _, d := range m.docs[col] {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docstore.ListResult{Documents: docs}, nil
}

func (m *memoryDocs) Create(_ context.Context, col document.Collection, id string, data json.RawMessage) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if id == "" {
		id = fmt.Sprintf("%s-%04d", col, m.seq)
	}
	doc := document.Document{
		ID:         id,
		Collection: col,
		Data:       data,
		CreatedAt:  time.Date(2020, 1, 1, 0, 0, m.seq, 0, time.UTC),
	}
	m.docs[col][id] = doc
	return doc, nil
}

func (m *memoryDocs) Update(_ context.Context, col document.Collection, id string, patch json.RawMessage) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[col][id]
	if !ok {
		return document.Document{}, docstore.ErrNotFound
	}
	fields := map[string]json.RawMessage{}
	_ = json.Unmarshal(doc.Data, &fields)
	update := map[string]json.RawMessage{}
	_ = json.Unmarshal(patch, &update)
	for k, v := range update {
		fields[k] = v
	}
	doc.Data, _ = json.Marshal(fields)
	m.docs[col][id] = doc
	return doc, nil
}

func (m *memoryDocs) Delete(_ context.Context, col document.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[col], id)
	return nil
}

func (m *memoryDocs) Flush(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.pending
	m.pending = 0
	return n, nil
}

func (m *memoryDocs) PendingCount(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, nil
}

func (m *memoryDocs) Listen(ctx context.Context, _ document.Collection, _ func(), _ func(document.Change)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *memoryDocs) seed(col document.Collection, id, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.docs[col][id] = document.Document{
		ID:         id,
		Collection: col,
		Data:       json.RawMessage(data),
		CreatedAt:  time.Date(2020, 1, 1, 0, 0, m.seq, 0, time.UTC),
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:            config.EnvLocal,
		ServerURL:      serverURL,
		ExportDir:      t.TempDir(),
		Timeout:        time.Second,
		ReconnectDelay: time.Millisecond,
		Bootstrap:      config.Bootstrap{MaxAttempts: 1, RetryDelay: time.Millisecond},
	}
}

func newTestApp(t *testing.T, serverURL string, docs *memoryDocs) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	connector := func(docstore.Config, *slog.Logger) (remote.Store, error) { return docs, nil }
	a := newApp(testConfig(t, serverURL), out, logger.Discard(), kv.NewMemoryStore(), identity.DefaultDirectory(), connector)
	t.Cleanup(func() { _ = a.Close() })
	return a, out
}

func loggedIn(t *testing.T, role identity.Role, name, password string) (*App, *memoryDocs, *syncBuffer) {
	t.Helper()
	docs := newMemoryDocs()
	docs.seed(document.CollectionEquipment, "e1a2b3c4-0000", `{"name":"Пресс","location":"Цех 1"}`)
	docs.seed(document.CollectionRepairs, "r9f8e7d6-0000", `{"equipmentId":"e1a2b3c4-0000","description":"Шум","status":"open","author":"Смирнова Е.А."}`)

	a, out := newTestApp(t, "http://journal.local", docs)
	_, err := a.Login(context.Background(), role, name, password)
	require.NoError(t, err)
	return a, docs, out
}

func TestApp_Login(t *testing.T) {
	a, _ := newTestApp(t, "", newMemoryDocs())
	ctx := context.Background()

	_, err := a.Login(ctx, identity.RoleAdmin, "Попов Н.В.", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
	_, err = a.WhoAmI(ctx)
	assert.Error(t, err)

	sess, err := a.Login(ctx, identity.RoleAdmin, "Попов Н.В.", "Tab5180")
	require.NoError(t, err)
	assert.Equal(t, identity.Permissions{CanAdd: true, CanDelete: true, CanComplete: true, CanExport: true}, sess.Permissions)

	who, err := a.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess, who)

	require.NoError(t, a.Logout(ctx))
	_, err = a.WhoAmI(ctx)
	assert.Error(t, err)
}

func TestApp_StartWithoutSession(t *testing.T) {
	a, out := newTestApp(t, "", newMemoryDocs())

	_, err := a.Start(context.Background(), true)
	assert.ErrorIs(t, err, bootstrap.ErrUnauthenticated)
	assert.True(t, a.Panel().LoginRequested())
	assert.Contains(t, out.String(), "journal auth login")
}

func TestApp_StartRendersJournal(t *testing.T) {
	a, _, out := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")

	app, err := a.Start(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, app.Online)
	assert.Contains(t, out.String(), "Пресс")
	assert.Contains(t, out.String(), "Шум")
}

func TestApp_AddRepair(t *testing.T) {
	a, docs, out := loggedIn(t, identity.RoleAuthor, "Смирнова Е.А.", "Avt2041")

	repair, err := a.AddRepair(context.Background(), "e1a2", "Течь масла")
	require.NoError(t, err)
	assert.Equal(t, "e1a2b3c4-0000", repair.EquipmentID)
	assert.Equal(t, "Смирнова Е.А.", repair.Author)
	assert.Equal(t, journal.StatusOpen, repair.Status)
	assert.NotEmpty(t, repair.DeviceID)
	// команды изменения не печатают журнал
	assert.Empty(t, out.String())

	res, _ := docs.List(context.Background(), document.CollectionRepairs)
	assert.Len(t, res.Documents, 2)

	_, err = a.AddRepair(context.Background(), "zz", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.AddRepair(context.Background(), "e1", "")
	var verr *journal.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestApp_Permissions(t *testing.T) {
	ctx := context.Background()

	repairer, _, _ := loggedIn(t, identity.RoleRepair, "Ремонтная бригада №1", "")
	_, err := repairer.AddRepair(ctx, "e1", "x")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = repairer.AddEquipment(ctx, "Станок", "")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, repairer.DeleteRepair(ctx, "r9"), ErrForbidden)
	_, err = repairer.Export(ctx)
	assert.ErrorIs(t, err, ErrForbidden)

	author, _, _ := loggedIn(t, identity.RoleAuthor, "Кузнецов И.П.", "Avt3307")
	_, err = author.CompleteRepair(ctx, "r9")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, author.DeleteRepair(ctx, "r9"), ErrForbidden)
}

func TestApp_CompleteRepair(t *testing.T) {
	ctx := context.Background()
	a, _, _ := loggedIn(t, identity.RoleRepair, "Ремонтная бригада №2", "")

	repair, err := a.CompleteRepair(ctx, "r9f8")
	require.NoError(t, err)
	assert.True(t, repair.Completed())
	assert.Equal(t, "Ремонтная бригада №2", repair.CompletedBy)
	require.NotNil(t, repair.CompletedAt)
	assert.Equal(t, "Шум", repair.Description)
}

func TestApp_CompleteRepair_AlreadyCompleted(t *testing.T) {
	docs := newMemoryDocs()
	docs.seed(document.CollectionRepairs, "r1", `{"equipmentId":"e","description":"x","status":"completed","author":"a"}`)
	a, _ := newTestApp(t, "http://journal.local", docs)
	_, err := a.Login(context.Background(), identity.RoleAdmin, "Попов Н.В.", "Tab5180")
	require.NoError(t, err)

	_, err = a.CompleteRepair(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestApp_DeleteRepair(t *testing.T) {
	a, docs, _ := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")

	require.NoError(t, a.DeleteRepair(context.Background(), "r9f8e7d6-0000"))
	res, _ := docs.List(context.Background(), document.CollectionRepairs)
	assert.Empty(t, res.Documents)
}

func TestApp_AddEquipmentAndList(t *testing.T) {
	ctx := context.Background()
	a, _, _ := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")

	e, err := a.AddEquipment(ctx, " Станок ", "Цех 3")
	require.NoError(t, err)
	assert.Equal(t, "Станок", e.Name)

	list, err := a.ListEquipment(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Станок", list[0].Name)
}

func TestApp_Offline(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, "", newMemoryDocs())
	_, err := a.Login(ctx, identity.RoleAdmin, "Попов Н.В.", "Tab5180")
	require.NoError(t, err)

	list, err := a.ListEquipment(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = a.AddRepair(ctx, "e1", "x")
	assert.ErrorIs(t, err, ErrOffline)
	_, err = a.Sync(ctx)
	assert.ErrorIs(t, err, ErrOffline)
	assert.ErrorIs(t, a.Watch(ctx), ErrOffline)
}

func TestApp_Export(t *testing.T) {
	a, _, _ := loggedIn(t, identity.RoleAuthor, "Смирнова Е.А.", "Avt2041")

	path, err := a.Export(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Пресс")
	assert.Contains(t, string(data), "Шум")
}

func TestApp_Sync(t *testing.T) {
	a, docs, _ := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")
	docs.pending = 2

	res, err := a.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Flushed: 2, Pending: 0, Online: true}, res)
}

func TestApp_Watch(t *testing.T) {
	a, _, out := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "Шум") >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestApp_CloseReleasesRemote(t *testing.T) {
	a, docs, _ := loggedIn(t, identity.RoleAdmin, "Попов Н.В.", "Tab5180")

	_, err := a.Start(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	docs.mu.Lock()
	defer docs.mu.Unlock()
	assert.Equal(t, 1, docs.closes)
}
