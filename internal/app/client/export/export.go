// Package export выгружает заявки на ремонт в CSV.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/domain/journal"
)

const fileTimeLayout = "20060102-150405"

var header = []string{
	"id", "equipment", "location", "description", "status",
	"author", "device", "created_at", "completed_by", "completed_at",
}

// Sink - место назначения выгрузки; возвращает адрес сохраненного файла
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// WriteCSV пишет заявки в исходном порядке
func WriteCSV(w io.Writer, repairs []journal.Repair, equipment map[string]journal.Equipment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range repairs {
		e := equipment[r.EquipmentID]
		name := e.Name
		if name == "" {
			name = r.EquipmentID
		}
		completedAt := ""
		if r.CompletedAt != nil {
			completedAt = r.CompletedAt.UTC().Format(time.RFC3339)
		}
		createdAt := ""
		if !r.CreatedAt.IsZero() {
			createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
		}

		if err := cw.Write([]string{
			r.ID, name, e.Location, r.Description, string(r.Status),
			r.Author, r.DeviceID, createdAt, r.CompletedBy, completedAt,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

type Exporter struct {
	sink Sink
	log  *slog.Logger
	now  func() time.Time
}

func NewExporter(sink Sink, log *slog.Logger) *Exporter {
	return &Exporter{
		sink: sink,
		log:  log.With(slog.String("component", "export")),
		now:  time.Now,
	}
}

func (e *Exporter) Export(ctx context.Context, repairs []journal.Repair, equipment []journal.Equipment) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, repairs, journal.Index(equipment)); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}

	name := fmt.Sprintf("repairs-%s.csv", e.now().UTC().Format(fileTimeLayout))
	location, err := e.sink.Save(ctx, name, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	e.log.Info("repairs exported", slog.String("location", location), slog.Int("rows", len(repairs)))
	return location, nil
}
