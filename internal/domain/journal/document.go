package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/document"
)

func EquipmentFromDocument(doc document.Document) (Equipment, error) {
	var e Equipment
	if err := json.Unmarshal(doc.Data, &e); err != nil {
		return Equipment{}, fmt.Errorf("decode equipment %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	e.CreatedAt = doc.CreatedAt
	return e, nil
}

func RepairFromDocument(doc document.Document) (Repair, error) {
	var r Repair
	if err := json.Unmarshal(doc.Data, &r); err != nil {
		return Repair{}, fmt.Errorf("decode repair %s: %w", doc.ID, err)
	}
	r.ID = doc.ID
	r.CreatedAt = doc.CreatedAt
	if r.Status == "" {
		r.Status = StatusOpen
	}
	return r, nil
}

// DecodeEquipment переводит документы в записи, пропуская нечитаемые; порядок сохраняется
func DecodeEquipment(docs []document.Document, log *slog.Logger) []Equipment {
	out := make([]Equipment, 0, len(docs))
	for _, doc := range docs {
		e, err := EquipmentFromDocument(doc)
		if err != nil {
			log.Warn("skip malformed document", slog.String("error", err.Error()))
			continue
		}
		out = append(out, e)
	}
	return out
}

func DecodeRepairs(docs []document.Document, log *slog.Logger) []Repair {
	out := make([]Repair, 0, len(docs))
	for _, doc := range docs {
		r, err := RepairFromDocument(doc)
		if err != nil {
			log.Warn("skip malformed document", slog.String("error", err.Error()))
			continue
		}
		out = append(out, r)
	}
	return out
}

// Payload - данные документа после проверки полей
func (e Equipment) Payload() (json.RawMessage, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func (r Repair) Payload() (json.RawMessage, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// CompletionPatch - частичное обновление, закрывающее заявку
func CompletionPatch(by string, at time.Time) (json.RawMessage, error) {
	if by == "" {
		return nil, &ValidationError{Fields: map[string]string{"completedBy": "is required"}}
	}
	at = at.UTC()
	return json.Marshal(struct {
		Status      Status     `json:"status"`
		CompletedBy string     `json:"completedBy"`
		CompletedAt *time.Time `json:"completedAt"`
	}{StatusCompleted, by, &at})
}

// Index - оборудование по id для вывода названий в таблице заявок
func Index(equipment []Equipment) map[string]Equipment {
	idx := make(map[string]Equipment, len(equipment))
	for _, e := range equipment {
		idx[e.ID] = e
	}
	return idx
}
