package document

import (
	"encoding/json"
	"time"
)

// Collection - логическая коллекция хранилища документов
type Collection string

const (
	CollectionEquipment Collection = "equipment"
	CollectionRepairs   Collection = "repairs"
)

func (c Collection) Valid() bool {
	return c == CollectionEquipment || c == CollectionRepairs
}

// Document - непрозрачный документ; сервер знает только id, метки времени и автора
type Document struct {
	ID         string          `json:"id"`
	Collection Collection      `json:"collection"`
	Data       json.RawMessage `json:"data"`
	AuthorUID  string          `json:"author_uid,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change - событие ленты изменений коллекции
type Change struct {
	Type     ChangeType `json:"type"`
	Document Document   `json:"document"`
}
