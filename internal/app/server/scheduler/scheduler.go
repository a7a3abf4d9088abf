package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

const jobTimeout = time.Minute

// SessionPurger удаляет истекшие анонимные сессии
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// DocumentPurger физически удаляет документы, помеченные удаленными дольше retention
type DocumentPurger interface {
	PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error)
}

type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionPurger
	documents DocumentPurger
	retention time.Duration
	log       *slog.Logger
}

func New(sessions SessionPurger, documents DocumentPurger, retention time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		sessions:  sessions,
		documents: documents,
		retention: retention,
		log:       log.With(slog.String("component", "scheduler")),
	}
}

// Start регистрирует очистку по расписанию в формате cron с секундами
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.Cleanup); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop ждет завершения выполняющихся задач не дольше ctx
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if s.sessions != nil {
		n, err := s.sessions.PurgeExpired(ctx)
		if err != nil {
			s.log.Error("purge sessions failed", slog.String("error", err.Error()))
		} else if n > 0 {
			s.log.Info("expired sessions purged", slog.Int64("count", n))
		}
	}

	if s.documents != nil && s.retention > 0 {
		n, err := s.documents.PurgeDeleted(ctx, s.retention)
		if err != nil {
			s.log.Error("purge documents failed", slog.String("error", err.Error()))
		} else if n > 0 {
			s.log.Info("deleted documents purged", slog.Int64("count", n))
		}
	}
}
