package view

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/domain/journal"
)

const timeLayout = "02.01.2006 15:04"

// TableRenderer выводит журнал таблицами в терминал
type TableRenderer struct {
	out io.Writer
}

func NewTableRenderer(out io.Writer) *TableRenderer {
	return &TableRenderer{out: out}
}

func (r *TableRenderer) Render(_ context.Context, app *bootstrap.AppContext) error {
	r.status(app)

	if err := r.RenderEquipment(app.Equipment); err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	return r.RenderRepairs(app.Repairs, journal.Index(app.Equipment))
}

func (r *TableRenderer) status(app *bootstrap.AppContext) {
	mode := color.GreenString("онлайн")
	switch {
	case !app.Online:
		mode = color.YellowString("без синхронизации")
	case app.FromCache:
		mode = color.YellowString("офлайн, данные из кэша")
	}
	fmt.Fprintf(r.out, "%s (%s) | устройство %s | %s\n\n",
		color.New(color.Bold).Sprint(app.Session.Name), app.Session.Role, shortID(app.DeviceID), mode)
}

func (r *TableRenderer) RenderEquipment(equipment []journal.Equipment) error {
	rows := make([][]string, 0, len(equipment))
	for _, e := range equipment {
		rows = append(rows, []string{shortID(e.ID), e.Name, e.Location, formatTime(e.CreatedAt)})
	}
	return r.table([]string{"ID", "Оборудование", "Место", "Добавлено"}, rows, "Оборудование не добавлено")
}

func (r *TableRenderer) RenderRepairs(repairs []journal.Repair, equipment map[string]journal.Equipment) error {
	rows := make([][]string, 0, len(repairs))
	for _, rep := range repairs {
		name := rep.EquipmentID
		if e, ok := equipment[rep.EquipmentID]; ok {
			name = e.Name
		}
		completed := ""
		if rep.CompletedAt != nil {
			completed = formatTime(*rep.CompletedAt)
		}
		rows = append(rows, []string{
			shortID(rep.ID),
			name,
			rep.Description,
			statusLabel(rep.Status),
			rep.Author,
			formatTime(rep.CreatedAt),
			rep.CompletedBy,
			completed,
		})
	}
	return r.table(
		[]string{"ID", "Оборудование", "Неисправность", "Статус", "Автор", "Создана", "Выполнил", "Выполнена"},
		rows,
		"Заявок нет",
	)
}

func (r *TableRenderer) table(header []string, rows [][]string, empty string) error {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, empty)
		return nil
	}

	table := tablewriter.NewTable(r.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.On},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func statusLabel(s journal.Status) string {
	if s == journal.StatusCompleted {
		return "выполнена"
	}
	return "открыта"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
