package document

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"repairjournal/internal/app/server/api/http/middleware/auth"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/infrastructure/broker"
	"repairjournal/internal/utils/logger"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, col document.Collection, id string, authorUID string, data json.RawMessage) (document.Document, error) {
	args := m.Called(ctx, col, id, authorUID, data)
	return args.Get(0).(document.Document), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, col document.Collection, id string, patch json.RawMessage) (document.Document, error) {
	args := m.Called(ctx, col, id, patch)
	return args.Get(0).(document.Document), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, col document.Collection, id string) error {
	args := m.Called(ctx, col, id)
	return args.Error(0)
}

func (m *MockService) List(ctx context.Context, col document.Collection) ([]document.Document, error) {
	args := m.Called(ctx, col)
	return args.Get(0).([]document.Document), args.Error(1)
}

func (m *MockService) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) CreateAnonymous(ctx context.Context) (string, string, error) {
	args := m.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockSessions) Validate(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

const authHeader = "Authorization: Bearer tok"

func setup(t *testing.T, svc document.Servicer, changes document.Subscriber) humatest.TestAPI {
	t.Helper()
	sessions := new(MockSessions)
	sessions.On("Validate", mock.Anything, "tok").Return("uid-1", nil).Maybe()

	_, api := humatest.New(t)
	mws := huma.Middlewares{auth.New(sessions, logger.Discard()).Middleware()}
	NewHandler(svc, changes, logger.Discard(), mws).SetupRoutes(api)
	return api
}

func TestHandler_List(t *testing.T) {
	svc := new(MockService)
	now := time.Now().UTC()
	svc.On("List", mock.Anything, document.CollectionRepairs).Return([]document.Document{
		{ID: "r2", Collection: document.CollectionRepairs, Data: json.RawMessage(`{"a":2}`), CreatedAt: now},
		{ID: "r1", Collection: document.CollectionRepairs, Data: json.RawMessage(`{"a":1}`), CreatedAt: now.Add(-time.Minute)},
	}, nil)

	api := setup(t, svc, broker.NewMemory())
	resp := api.Get("/api/v1/collections/repairs/documents", authHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	var body ListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Documents, 2)
	assert.Equal(t, "r2", body.Documents[0].ID)
}

func TestHandler_RequiresBearer(t *testing.T) {
	api := setup(t, new(MockService), broker.NewMemory())

	resp := api.Get("/api/v1/collections/repairs/documents")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandler_UnknownCollection(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything, document.Collection("users")).Return([]document.Document(nil), document.ErrUnknownCollection)

	api := setup(t, svc, broker.NewMemory())
	resp := api.Get("/api/v1/collections/users/documents", authHeader)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandler_Create(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, document.CollectionEquipment, "e1", "uid-1", mock.MatchedBy(func(d json.RawMessage) bool {
		return strings.Contains(string(d), "Пресс")
	})).Return(document.Document{ID: "e1", Collection: document.CollectionEquipment}, nil)

	api := setup(t, svc, broker.NewMemory())
	resp := api.Post("/api/v1/collections/equipment/documents", authHeader, map[string]any{
		"id":   "e1",
		"data": map[string]any{"name": "Пресс"},
	})
	assert.Equal(t, http.StatusCreated, resp.Code)
	svc.AssertExpectations(t)
}

func TestHandler_Create_InvalidData(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, document.CollectionRepairs, "", "uid-1", mock.Anything).
		Return(document.Document{}, document.ErrInvalidData)

	api := setup(t, svc, broker.NewMemory())
	resp := api.Post("/api/v1/collections/repairs/documents", authHeader, map[string]any{
		"data": []int{1, 2},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	svc := new(MockService)
	svc.On("Update", mock.Anything, document.CollectionRepairs, "missing", mock.Anything).
		Return(document.Document{}, document.ErrNotFound)
	svc.On("Delete", mock.Anything, document.CollectionRepairs, "r1").Return(nil)

	api := setup(t, svc, broker.NewMemory())

	resp := api.Put("/api/v1/collections/repairs/documents/missing", authHeader, map[string]any{
		"data": map[string]any{"status": "completed"},
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Delete("/api/v1/collections/repairs/documents/r1", authHeader)
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestHandler_Stream(t *testing.T) {
	b := broker.NewMemory()
	api := setup(t, new(MockService), b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// ждем подписки обработчика, затем публикуем и закрываем поток
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			_ = b.Publish(ctx, document.CollectionRepairs, document.Change{
				Type:     document.ChangeAdded,
				Document: document.Document{ID: "r9"},
			})
			time.Sleep(20 * time.Millisecond)
		}
		cancel()
	}()

	resp := api.GetCtx(ctx, "/api/v1/collections/repairs/stream", authHeader)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "event: change")
	assert.Contains(t, resp.Body.String(), `"r9"`)
}
