package document

import (
	"context"
	"encoding/json"
	"time"
)

type Repository interface {
	// Upsert создает документ или перезаписывает существующий (последняя запись побеждает)
	Upsert(ctx context.Context, doc Document) (Document, bool, error)
	Update(ctx context.Context, col Collection, id string, patch json.RawMessage) (Document, error)
	Delete(ctx context.Context, col Collection, id string) (Document, error)
	List(ctx context.Context, col Collection) ([]Document, error)
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// Publisher рассылает подписчикам зафиксированные изменения
type Publisher interface {
	Publish(ctx context.Context, col Collection, change Change) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, col Collection) (<-chan Change, func() error, error)
}
