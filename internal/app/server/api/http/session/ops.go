package session

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) anonymousOp() huma.Operation {
	return huma.Operation{
		OperationID:   "auth-anonymous",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/anonymous",
		Summary:       "Анонимный вход",
		Description:   "Выдает токен сессии без учетных данных. Пользователи журнала проверяются на клиенте.",
		Tags:          []string{"auth"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}
