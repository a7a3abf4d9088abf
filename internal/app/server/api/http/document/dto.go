package document

import (
	"encoding/json"
	"time"

	"repairjournal/internal/domain/document"
)

type collectionInput struct {
	Collection string `path:"collection" doc:"Коллекция документов"`
}

type listOutput struct {
	Body ListResponse
}

type ListResponse struct {
	Documents []document.Document `json:"documents"`
}

type createInput struct {
	Collection string `path:"collection" doc:"Коллекция документов"`
	Body       createRequest
}

type createRequest struct {
	ID   string          `json:"id,omitempty" doc:"Идентификатор от клиента; повторная запись с тем же id перезаписывает документ"`
	Data json.RawMessage `json:"data" doc:"Поля документа (JSON объект)"`
}

type updateInput struct {
	Collection string `path:"collection" doc:"Коллекция документов"`
	ID         string `path:"id" doc:"Идентификатор документа"`
	Body       updateRequest
}

type updateRequest struct {
	Data json.RawMessage `json:"data" doc:"Изменяемые поля верхнего уровня"`
}

type deleteInput struct {
	Collection string `path:"collection" doc:"Коллекция документов"`
	ID         string `path:"id" doc:"Идентификатор документа"`
}

type documentOutput struct {
	Body document.Document
}

// Heartbeat держит соединение ленты открытым через прокси
type Heartbeat struct {
	At time.Time `json:"at"`
}
