package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"

	"repairjournal/internal/app/server/config"
	"repairjournal/internal/domain/document"
)

const channelPrefix = "repair_journal:changes:"

func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Redis разносит изменения коллекций между экземплярами сервера через pub/sub
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	return &Redis{
		client: client,
		log:    log.With("component", "redis_broker"),
	}
}

func channel(col document.Collection) string {
	return channelPrefix + string(col)
}

func (b *Redis) Publish(ctx context.Context, col document.Collection, change document.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, channel(col), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context, col document.Collection) (<-chan document.Change, func() error, error) {
	ps := b.client.Subscribe(ctx, channel(col))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan document.Change, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change document.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.log.Warn("skip malformed change", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- change:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() error {
		var err error
		once.Do(func() {
			close(done)
			err = ps.Close()
		})
		return err
	}
	return out, cancel, nil
}
