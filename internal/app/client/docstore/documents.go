package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/document"
)

// ListResult - упорядоченный снимок коллекции, новые документы первыми
type ListResult struct {
	Documents []document.Document
	FromCache bool
}

func documentsPath(col document.Collection) string {
	return "/api/v1/collections/" + url.PathEscape(string(col)) + "/documents"
}

func documentPath(col document.Collection, id string) string {
	return documentsPath(col) + "/" + url.PathEscape(id)
}

// List читает коллекцию с сервера; без сети отдает локальный кэш, если он включен.
// Неотправленные записи всегда видны в результате.
func (c *Client) List(ctx context.Context, col document.Collection) (ListResult, error) {
	var body struct {
		Documents []document.Document `json:"documents"`
	}
	err := c.call(ctx, http.MethodGet, documentsPath(col), nil, &body)

	cache := c.localCache()
	if err != nil {
		if cache != nil && errors.Is(err, ErrOffline) {
			docs, cerr := cache.list(ctx, col)
			if cerr != nil {
				return ListResult{}, cerr
			}
			c.log.Debug("serving collection from cache", slog.String("collection", string(col)), slog.Int("count", len(docs)))
			return ListResult{Documents: docs, FromCache: true}, nil
		}
		return ListResult{}, fmt.Errorf("list %s: %w", col, err)
	}
	if body.Documents == nil {
		body.Documents = []document.Document{}
	}
	if cache == nil {
		return ListResult{Documents: body.Documents}, nil
	}

	if err := cache.replace(ctx, col, body.Documents); err != nil {
		c.log.Warn("refresh cache failed", slog.String("collection", string(col)), slog.String("error", err.Error()))
		return ListResult{Documents: body.Documents}, nil
	}
	if err := c.replayPendingInto(ctx, cache, col); err != nil {
		c.log.Warn("overlay pending writes failed", slog.String("error", err.Error()))
	}
	docs, err := cache.list(ctx, col)
	if err != nil {
		return ListResult{Documents: body.Documents}, nil
	}
	return ListResult{Documents: docs}, nil
}

func (c *Client) replayPendingInto(ctx context.Context, cache *cache, col document.Collection) error {
	ops, err := cache.pending(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Collection != col {
			continue
		}
		if err := cache.apply(ctx, op, c.UID()); err != nil {
			return err
		}
	}
	return nil
}

type createRequest struct {
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

type updateRequest struct {
	Data json.RawMessage `json:"data"`
}

// Create создает документ; повторная запись с тем же id перезаписывает его.
// Пустой id генерируется на клиенте, чтобы запись из очереди не задвоилась.
func (c *Client) Create(ctx context.Context, col document.Collection, id string, data json.RawMessage) (document.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	op := pendingOp{Kind: opCreate, Collection: col, ID: id, Data: data}
	return c.write(ctx, op)
}

// Update сливает patch с полями документа
func (c *Client) Update(ctx context.Context, col document.Collection, id string, patch json.RawMessage) (document.Document, error) {
	return c.write(ctx, pendingOp{Kind: opUpdate, Collection: col, ID: id, Data: patch})
}

func (c *Client) Delete(ctx context.Context, col document.Collection, id string) error {
	_, err := c.write(ctx, pendingOp{Kind: opDelete, Collection: col, ID: id})
	return err
}

func (c *Client) write(ctx context.Context, op pendingOp) (document.Document, error) {
	cache := c.localCache()

	// старые записи из очереди уходят раньше новой
	if cache != nil {
		if n, err := cache.pendingCount(ctx); err == nil && n > 0 {
			if _, err := c.Flush(ctx); err != nil && !errors.Is(err, ErrOffline) {
				c.log.Warn("flush before write", slog.String("error", err.Error()))
			}
		}
	}

	doc, err := c.send(ctx, op)
	if err == nil {
		c.cacheResult(ctx, op, doc)
		return doc, nil
	}
	if cache == nil || !errors.Is(err, ErrOffline) {
		return document.Document{}, err
	}

	op.QueuedAt = time.Now().UTC()
	if qerr := cache.enqueue(ctx, op); qerr != nil {
		return document.Document{}, errors.Join(err, qerr)
	}
	if aerr := cache.apply(ctx, op, c.UID()); aerr != nil {
		c.log.Warn("apply queued write to cache", slog.String("error", aerr.Error()))
	}
	c.log.Info("write queued until connection returns",
		slog.String("op", string(op.Kind)),
		slog.String("collection", string(op.Collection)),
		slog.String("id", op.ID),
	)

	if op.Kind == opDelete {
		return document.Document{}, nil
	}
	doc, gerr := cache.get(ctx, op.Collection, op.ID)
	if gerr != nil {
		return document.Document{ID: op.ID, Collection: op.Collection, Data: op.Data}, nil
	}
	return doc, nil
}

func (c *Client) send(ctx context.Context, op pendingOp) (document.Document, error) {
	var doc document.Document
	var err error
	switch op.Kind {
	case opCreate:
		err = c.call(ctx, http.MethodPost, documentsPath(op.Collection), createRequest{ID: op.ID, Data: op.Data}, &doc)
	case opUpdate:
		err = c.call(ctx, http.MethodPut, documentPath(op.Collection, op.ID), updateRequest{Data: op.Data}, &doc)
	case opDelete:
		err = c.call(ctx, http.MethodDelete, documentPath(op.Collection, op.ID), nil, nil)
	default:
		err = fmt.Errorf("unknown op %q", op.Kind)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
	}
	return doc, nil
}

func (c *Client) cacheResult(ctx context.Context, op pendingOp, doc document.Document) {
	cache := c.localCache()
	if cache == nil {
		return
	}
	var err error
	if op.Kind == opDelete {
		err = cache.remove(ctx, op.Collection, op.ID)
	} else {
		err = cache.put(ctx, doc)
	}
	if err != nil {
		c.log.Warn("update cache", slog.String("error", err.Error()))
	}
}

// Flush отправляет очередь по порядку. Останавливается на первой сетевой ошибке;
// записи, отклоненные сервером, удаляются из очереди.
func (c *Client) Flush(ctx context.Context) (int, error) {
	cache := c.localCache()
	if cache == nil {
		return 0, nil
	}

	ops, err := cache.pending(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, op := range ops {
		doc, err := c.send(ctx, op)
		switch {
		case err == nil:
			c.cacheResult(ctx, op, doc)
			sent++
		case errors.Is(err, ErrOffline), errors.Is(err, ErrUnauthenticated), ctx.Err() != nil:
			return sent, err
		default:
			c.log.Warn("dropping rejected queued write",
				slog.Int64("seq", op.Seq),
				slog.String("error", err.Error()),
			)
		}
		if err := cache.dequeue(ctx, op.Seq); err != nil {
			return sent, fmt.Errorf("dequeue %d: %w", op.Seq, err)
		}
	}
	return sent, nil
}

// PendingCount - число записей, ожидающих отправки
func (c *Client) PendingCount(ctx context.Context) (int, error) {
	cache := c.localCache()
	if cache == nil {
		return 0, nil
	}
	return cache.pendingCount(ctx)
}
