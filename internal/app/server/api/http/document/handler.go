package document

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"golang.org/x/exp/slog"

	"repairjournal/internal/app/server/api/http/middleware/auth"
	"repairjournal/internal/domain/document"
)

const heartbeatInterval = 15 * time.Second

type Handler struct {
	service    document.Servicer
	changes    document.Subscriber
	log        *slog.Logger
	middleware huma.Middlewares
	heartbeat  time.Duration
}

func NewHandler(service document.Servicer, changes document.Subscriber, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		changes:    changes,
		log:        log.With(slog.String("component", "document_handler")),
		middleware: mws,
		heartbeat:  heartbeatInterval,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
	sse.Register(api, h.streamOp(), map[string]any{
		"change":    document.Change{},
		"heartbeat": Heartbeat{},
	}, h.stream)
}

func (h *Handler) list(ctx context.Context, input *collectionInput) (*listOutput, error) {
	docs, err := h.service.List(ctx, document.Collection(input.Collection))
	if err != nil {
		return nil, h.mapError(err)
	}
	return &listOutput{Body: ListResponse{Documents: docs}}, nil
}

func (h *Handler) create(ctx context.Context, input *createInput) (*documentOutput, error) {
	uid, ok := auth.GetUID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	doc, err := h.service.Create(ctx, document.Collection(input.Collection), input.Body.ID, uid, input.Body.Data)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*documentOutput, error) {
	doc, err := h.service.Update(ctx, document.Collection(input.Collection), input.ID, input.Body.Data)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *Handler) delete(ctx context.Context, input *deleteInput) (*struct{}, error) {
	if err := h.service.Delete(ctx, document.Collection(input.Collection), input.ID); err != nil {
		return nil, h.mapError(err)
	}
	return nil, nil
}

func (h *Handler) stream(ctx context.Context, input *collectionInput, send sse.Sender) {
	col := document.Collection(input.Collection)
	if !col.Valid() {
		h.log.Debug("stream for unknown collection", slog.String("collection", input.Collection))
		return
	}
	changes, cancel, err := h.changes.Subscribe(ctx, col)
	if err != nil {
		h.log.Error("subscribe to changes", slog.String("collection", input.Collection), slog.String("error", err.Error()))
		return
	}
	defer func() {
		if err := cancel(); err != nil {
			h.log.Warn("unsubscribe", slog.String("error", err.Error()))
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if err := send.Data(Heartbeat{At: t}); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := send.Data(change); err != nil {
				h.log.Debug("stream client gone", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, document.ErrUnknownCollection):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, document.ErrInvalidData):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		h.log.Error("document operation failed", slog.String("error", err.Error()))
		return huma.Error500InternalServerError("internal error")
	}
}
