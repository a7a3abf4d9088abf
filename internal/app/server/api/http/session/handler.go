package session

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/session"
)

type Handler struct {
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.anonymousOp(), h.anonymous)
}

func (h *Handler) anonymous(ctx context.Context, _ *struct{}) (*anonymousOutput, error) {
	token, uid, err := h.session.CreateAnonymous(ctx)
	if err != nil {
		h.log.Error("create anonymous session", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("create session failed")
	}

	return &anonymousOutput{
		Body: AnonymousResponse{Token: token, UID: uid, Status: "Ok"},
	}, nil
}
