package docstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/document"
)

const changeEvent = "change"

// Listen читает ленту изменений коллекции до отмены ctx, переподключаясь с паузой.
// onOpen вызывается после каждого (пере)подключения: пропущенные изменения
// нужно добрать повторным List.
func (c *Client) Listen(ctx context.Context, col document.Collection, onOpen func(), onChange func(document.Change)) error {
	path := "/api/v1/collections/" + url.PathEscape(string(col)) + "/stream"
	for {
		err := c.listenOnce(ctx, path, onOpen, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrNotFound) {
			return err
		}
		c.log.Debug("change stream interrupted",
			slog.String("collection", string(col)),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) listenOnce(ctx context.Context, path string, onOpen func(), onChange func(document.Change)) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, body)
	}

	if onOpen != nil {
		onOpen()
	}
	return readEvents(resp.Body, func(event, data string) {
		if event != changeEvent {
			return
		}
		var change document.Change
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			c.log.Warn("skip malformed change", slog.String("error", err.Error()))
			return
		}
		c.applyChange(ctx, change)
		if onChange != nil {
			onChange(change)
		}
	})
}

func (c *Client) applyChange(ctx context.Context, change document.Change) {
	cache := c.localCache()
	if cache == nil {
		return
	}
	var err error
	if change.Type == document.ChangeRemoved {
		err = cache.remove(ctx, change.Document.Collection, change.Document.ID)
	} else {
		err = cache.put(ctx, change.Document)
	}
	if err != nil {
		c.log.Warn("apply change to cache", slog.String("error", err.Error()))
	}
}

// readEvents разбирает поток text/event-stream; возвращает ошибку чтения или io.EOF
func readEvents(r io.Reader, dispatch func(event, data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		event string
		data  strings.Builder
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				if event == "" {
					event = "message"
				}
				dispatch(event, data.String())
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
