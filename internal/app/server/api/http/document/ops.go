package document

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "documents-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{collection}/documents",
		Summary:     "Список документов коллекции",
		Description: "Документы упорядочены по времени создания, новые первыми.",
		Tags:        []string{"documents"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "documents-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/collections/{collection}/documents",
		Summary:       "Создать или перезаписать документ",
		Tags:          []string{"documents"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "documents-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/collections/{collection}/documents/{id}",
		Summary:     "Обновить поля документа",
		Tags:        []string{"documents"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "documents-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/collections/{collection}/documents/{id}",
		Summary:       "Удалить документ",
		Tags:          []string{"documents"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) streamOp() huma.Operation {
	return huma.Operation{
		OperationID: "documents-stream",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{collection}/stream",
		Summary:     "Лента изменений коллекции (SSE)",
		Tags:        []string{"documents"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
