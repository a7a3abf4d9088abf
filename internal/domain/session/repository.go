package session

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, uid string, tokenHash string, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string) (string, error)
	PurgeExpired(ctx context.Context) (int64, error)
}
