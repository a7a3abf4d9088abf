package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/session"
	"repairjournal/internal/infrastructure/broker"
	"repairjournal/internal/utils/logger"
)

type memSessions struct {
	tokens map[string]string
}

func (m *memSessions) Create(_ context.Context, uid, hash string, _ time.Time) error {
	m.tokens[hash] = uid
	return nil
}

func (m *memSessions) Validate(_ context.Context, hash string) (string, error) {
	uid, ok := m.tokens[hash]
	if !ok {
		return "", session.ErrInvalidSession
	}
	return uid, nil
}

func (m *memSessions) PurgeExpired(context.Context) (int64, error) { return 0, nil }

type emptyDocs struct{}

func (emptyDocs) Upsert(_ context.Context, d document.Document) (document.Document, bool, error) {
	return d, true, nil
}
func (emptyDocs) Update(context.Context, document.Collection, string, json.RawMessage) (document.Document, error) {
	return document.Document{}, document.ErrNotFound
}
func (emptyDocs) Delete(context.Context, document.Collection, string) (document.Document, error) {
	return document.Document{}, document.ErrNotFound
}
func (emptyDocs) List(context.Context, document.Collection) ([]document.Document, error) {
	return []document.Document{}, nil
}
func (emptyDocs) PurgeDeleted(context.Context, time.Time) (int64, error) { return 0, nil }

func TestNew_Routes(t *testing.T) {
	log := logger.Discard()
	b := broker.NewMemory()
	mux := New(Deps{
		Sessions:  session.NewService(&memSessions{tokens: map[string]string{}}, time.Hour, log),
		Documents: document.NewService(emptyDocs{}, b, log),
		Changes:   b,
	}, log)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	for path, want := range map[string]int{
		"/api/v1/health":                        http.StatusOK,
		"/":                                     http.StatusOK,
		"/metrics":                              http.StatusOK,
		"/api/v1/collections/repairs/documents": http.StatusUnauthorized,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}

	resp, err := http.Post(srv.URL+"/api/v1/auth/anonymous", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
