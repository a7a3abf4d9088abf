package journal

import (
	"time"
)

// Status - состояние заявки на ремонт
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

// Equipment - справочная запись об оборудовании
type Equipment struct {
	ID        string    `json:"-"`
	Name      string    `json:"name" validate:"required,max=200"`
	Location  string    `json:"location,omitempty" validate:"max=200"`
	CreatedAt time.Time `json:"-"`
}

// Repair - заявка на ремонт оборудования
type Repair struct {
	ID          string     `json:"-"`
	EquipmentID string     `json:"equipmentId" validate:"required"`
	Description string     `json:"description" validate:"required,max=2000"`
	Status      Status     `json:"status" validate:"required,repair_status"`
	Author      string     `json:"author" validate:"required"`
	DeviceID    string     `json:"deviceId,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (r Repair) Completed() bool {
	return r.Status == StatusCompleted
}
