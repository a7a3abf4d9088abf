// Package kv - постоянное хранилище ключ-значение клиента (аналог localStorage).
package kv

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("kv: store is closed")

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany записывает все пары атомарно
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
