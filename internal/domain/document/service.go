package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"repairjournal/internal/metrics"
)

type Servicer interface {
	Create(ctx context.Context, col Collection, id string, authorUID string, data json.RawMessage) (Document, error)
	Update(ctx context.Context, col Collection, id string, patch json.RawMessage) (Document, error)
	Delete(ctx context.Context, col Collection, id string) error
	List(ctx context.Context, col Collection) ([]Document, error)
	PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error)
}

type Service struct {
	repo Repository
	pub  Publisher
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, pub Publisher, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		pub:  pub,
		log:  log.With(slog.String("component", "document_service")),
		now:  time.Now,
	}
}

// Create сохраняет документ; id от клиента делает запись идемпотентной
func (s *Service) Create(ctx context.Context, col Collection, id string, authorUID string, data json.RawMessage) (Document, error) {
	if err := validate(col, data); err != nil {
		return Document{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	doc, created, err := s.repo.Upsert(ctx, Document{
		ID:         id,
		Collection: col,
		Data:       data,
		AuthorUID:  authorUID,
	})
	if err != nil {
		return Document{}, fmt.Errorf("upsert %s/%s: %w", col, id, err)
	}

	changeType := ChangeModified
	if created {
		changeType = ChangeAdded
	}
	s.publish(ctx, col, Change{Type: changeType, Document: doc})
	metrics.DocumentWritesTotal.WithLabelValues(string(col), "create").Inc()

	return doc, nil
}

func (s *Service) Update(ctx context.Context, col Collection, id string, patch json.RawMessage) (Document, error) {
	if err := validate(col, patch); err != nil {
		return Document{}, err
	}

	doc, err := s.repo.Update(ctx, col, id, patch)
	if err != nil {
		return Document{}, fmt.Errorf("update %s/%s: %w", col, id, err)
	}

	s.publish(ctx, col, Change{Type: ChangeModified, Document: doc})
	metrics.DocumentWritesTotal.WithLabelValues(string(col), "update").Inc()

	return doc, nil
}

func (s *Service) Delete(ctx context.Context, col Collection, id string) error {
	if !col.Valid() {
		return ErrUnknownCollection
	}

	doc, err := s.repo.Delete(ctx, col, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", col, id, err)
	}

	s.publish(ctx, col, Change{Type: ChangeRemoved, Document: doc})
	metrics.DocumentWritesTotal.WithLabelValues(string(col), "delete").Inc()

	return nil
}

func (s *Service) List(ctx context.Context, col Collection) ([]Document, error) {
	if !col.Valid() {
		return nil, ErrUnknownCollection
	}
	return s.repo.List(ctx, col)
}

func (s *Service) PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.PurgeDeleted(ctx, s.now().Add(-retention))
}

// ошибка публикации не отменяет уже зафиксированную запись
func (s *Service) publish(ctx context.Context, col Collection, change Change) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, col, change); err != nil {
		s.log.Warn("publish change failed",
			slog.String("collection", string(col)),
			slog.String("id", change.Document.ID),
			slog.String("error", err.Error()),
		)
	}
}

func validate(col Collection, data json.RawMessage) error {
	if !col.Valid() {
		return ErrUnknownCollection
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidData
	}
	return nil
}
