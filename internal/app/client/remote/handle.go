package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/docstore"
	"repairjournal/internal/domain/document"
)

// Store - операции SDK, которые использует фасад
type Store interface {
	SignInAnonymously(ctx context.Context) error
	EnablePersistence(path string) error
	List(ctx context.Context, col document.Collection) (docstore.ListResult, error)
	Create(ctx context.Context, col document.Collection, id string, data json.RawMessage) (document.Document, error)
	Update(ctx context.Context, col document.Collection, id string, patch json.RawMessage) (document.Document, error)
	Delete(ctx context.Context, col document.Collection, id string) error
	Flush(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
	Listen(ctx context.Context, col document.Collection, onOpen func(), onChange func(document.Change)) error
	Close() error
}

// Record - запись для Write: пустой ID создает документ, иначе поля сливаются с существующими
type Record struct {
	ID   string
	Data json.RawMessage
}

// Snapshot - упорядоченное состояние коллекции, новые документы первыми
type Snapshot struct {
	Collection document.Collection
	Documents  []document.Document
	FromCache  bool
}

type Unsubscribe func()

type Handle struct {
	store       Store
	log         *slog.Logger
	persistence PersistenceStatus

	mu       sync.RWMutex
	signedIn bool
}

func (h *Handle) SignedIn() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.signedIn
}

func (h *Handle) Persistence() PersistenceStatus {
	return h.persistence
}

func (h *Handle) signIn(ctx context.Context) {
	if err := h.store.SignInAnonymously(ctx); err != nil {
		h.log.Warn("anonymous sign-in failed", slog.String("error", err.Error()))
		return
	}
	h.mu.Lock()
	h.signedIn = true
	h.mu.Unlock()
}

func (h *Handle) enablePersistence(path string) PersistenceStatus {
	err := h.store.EnablePersistence(path)
	switch {
	case err == nil:
		return PersistenceEnabled
	case errors.Is(err, docstore.ErrPersistenceFailedPrecondition):
		h.log.Warn("offline cache is held by another journal process")
		return PersistenceFailedPrecondition
	case errors.Is(err, docstore.ErrPersistenceUnimplemented):
		h.log.Info("offline cache is not available")
		return PersistenceUnimplemented
	default:
		h.log.Warn("offline cache setup failed", slog.String("error", err.Error()))
		return PersistenceError
	}
}

func (h *Handle) List(ctx context.Context, col document.Collection) (Snapshot, error) {
	res, err := h.store.List(ctx, col)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Collection: col, Documents: res.Documents, FromCache: res.FromCache}, nil
}

func (h *Handle) Write(ctx context.Context, col document.Collection, rec Record) (document.Document, error) {
	if rec.ID == "" {
		return h.store.Create(ctx, col, "", rec.Data)
	}
	return h.store.Update(ctx, col, rec.ID, rec.Data)
}

func (h *Handle) Delete(ctx context.Context, col document.Collection, id string) error {
	return h.store.Delete(ctx, col, id)
}

func (h *Handle) Flush(ctx context.Context) (int, error) {
	return h.store.Flush(ctx)
}

func (h *Handle) PendingCount(ctx context.Context) (int, error) {
	return h.store.PendingCount(ctx)
}

// close освобождает соединение и блокировку локального кэша
func (h *Handle) close() error {
	return h.store.Close()
}

// Subscribe отдает начальный снимок синхронно, затем снимок после каждого изменения.
// После переподключения ленты снимок перечитывается целиком.
func (h *Handle) Subscribe(ctx context.Context, col document.Collection, onChange func(Snapshot)) (Unsubscribe, error) {
	snap, err := h.List(ctx, col)
	if err != nil {
		return nil, err
	}

	sub := &subscription{handle: h, col: col, onChange: onChange, snap: snap}
	sub.deliver()

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		first := true
		err := h.store.Listen(subCtx, col, func() {
			if first {
				first = false
				return
			}
			sub.reload(subCtx)
		}, sub.apply)
		if err != nil && subCtx.Err() == nil {
			h.log.Warn("change feed stopped", slog.String("collection", string(col)), slog.String("error", err.Error()))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

type subscription struct {
	handle   *Handle
	col      document.Collection
	onChange func(Snapshot)

	mu   sync.Mutex
	snap Snapshot
}

func (s *subscription) deliver() {
	if s.onChange == nil {
		return
	}
	docs := make([]document.Document, len(s.snap.Documents))
	copy(docs, s.snap.Documents)
	s.onChange(Snapshot{Collection: s.col, Documents: docs, FromCache: s.snap.FromCache})
}

func (s *subscription) reload(ctx context.Context) {
	snap, err := s.handle.List(ctx, s.col)
	if err != nil {
		s.handle.log.Debug("reload snapshot", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.deliver()
}

func (s *subscription) apply(change document.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.snap.Documents[:0:0]
	for _, d := range s.snap.Documents {
		if d.ID != change.Document.ID {
			docs = append(docs, d)
		}
	}
	if change.Type != document.ChangeRemoved {
		docs = append(docs, change.Document)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	s.snap = Snapshot{Collection: s.col, Documents: docs}
	s.deliver()
}
