package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/app/client/export"
	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/identity"
	"repairjournal/internal/domain/journal"
)

var (
	ErrNotFound         = errors.New("запись не найдена")
	ErrAmbiguousID      = errors.New("под префикс подходит несколько записей, уточните id")
	ErrAlreadyCompleted = errors.New("заявка уже выполнена")
)

// SyncResult - итог отправки отложенных записей
type SyncResult struct {
	Flushed int
	Pending int
	Online  bool
}

// ready запускает журнал без вывода и проверяет право на действие
func (a *App) ready(ctx context.Context, allowed func(identity.Permissions) bool) (*bootstrap.AppContext, error) {
	app, err := a.Start(ctx, false)
	if err != nil {
		return nil, err
	}
	if allowed != nil && !allowed(app.Session.Permissions) {
		a.log.Warn("action rejected",
			slog.String("user", app.Session.Name),
			slog.String("role", string(app.Session.Role)),
		)
		return nil, ErrForbidden
	}
	if app.Handle == nil {
		return nil, ErrOffline
	}
	return app, nil
}

func (a *App) AddRepair(ctx context.Context, equipmentID, description string) (journal.Repair, error) {
	app, err := a.ready(ctx, func(p identity.Permissions) bool { return p.CanAdd })
	if err != nil {
		return journal.Repair{}, err
	}

	equipment, err := findEquipment(app.Equipment, equipmentID)
	if err != nil {
		return journal.Repair{}, err
	}

	payload, err := journal.Repair{
		EquipmentID: equipment.ID,
		Description: strings.TrimSpace(description),
		Status:      journal.StatusOpen,
		Author:      app.Session.Name,
		DeviceID:    app.DeviceID,
	}.Payload()
	if err != nil {
		return journal.Repair{}, err
	}

	doc, err := app.Handle.Write(ctx, document.CollectionRepairs, remote.Record{Data: payload})
	if err != nil {
		return journal.Repair{}, fmt.Errorf("сохранение заявки: %w", err)
	}
	return journal.RepairFromDocument(doc)
}

func (a *App) CompleteRepair(ctx context.Context, id string) (journal.Repair, error) {
	app, err := a.ready(ctx, func(p identity.Permissions) bool { return p.CanComplete })
	if err != nil {
		return journal.Repair{}, err
	}

	repair, err := findRepair(app.Repairs, id)
	if err != nil {
		return journal.Repair{}, err
	}
	if repair.Completed() {
		return journal.Repair{}, ErrAlreadyCompleted
	}

	patch, err := journal.CompletionPatch(app.Session.Name, time.Now())
	if err != nil {
		return journal.Repair{}, err
	}

	doc, err := app.Handle.Write(ctx, document.CollectionRepairs, remote.Record{ID: repair.ID, Data: patch})
	if err != nil {
		return journal.Repair{}, fmt.Errorf("закрытие заявки: %w", err)
	}
	return journal.RepairFromDocument(doc)
}

func (a *App) DeleteRepair(ctx context.Context, id string) error {
	app, err := a.ready(ctx, func(p identity.Permissions) bool { return p.CanDelete })
	if err != nil {
		return err
	}

	repair, err := findRepair(app.Repairs, id)
	if err != nil {
		return err
	}

	if err := app.Handle.Delete(ctx, document.CollectionRepairs, repair.ID); err != nil {
		return fmt.Errorf("удаление заявки: %w", err)
	}
	return nil
}

func (a *App) AddEquipment(ctx context.Context, name, location string) (journal.Equipment, error) {
	app, err := a.ready(ctx, func(p identity.Permissions) bool { return p.CanAdd })
	if err != nil {
		return journal.Equipment{}, err
	}

	payload, err := journal.Equipment{Name: strings.TrimSpace(name), Location: strings.TrimSpace(location)}.Payload()
	if err != nil {
		return journal.Equipment{}, err
	}

	doc, err := app.Handle.Write(ctx, document.CollectionEquipment, remote.Record{Data: payload})
	if err != nil {
		return journal.Equipment{}, fmt.Errorf("сохранение оборудования: %w", err)
	}
	return journal.EquipmentFromDocument(doc)
}

func (a *App) ListEquipment(ctx context.Context) ([]journal.Equipment, error) {
	app, err := a.Start(ctx, false)
	if err != nil {
		return nil, err
	}
	if app.Handle == nil {
		return app.Equipment, nil
	}

	snap, err := app.Handle.List(ctx, document.CollectionEquipment)
	if err != nil {
		return nil, fmt.Errorf("загрузка оборудования: %w", err)
	}
	return journal.DecodeEquipment(snap.Documents, a.log), nil
}

// Export выгружает заявки в бакет, если он настроен, иначе в каталог выгрузок
func (a *App) Export(ctx context.Context) (string, error) {
	app, err := a.Start(ctx, false)
	if err != nil {
		return "", err
	}
	if !app.Session.Permissions.CanExport {
		return "", ErrForbidden
	}

	var sink export.Sink = export.NewFileSink(a.cfg.ExportDir)
	if a.cfg.Export.Bucket != "" {
		minioSink, err := export.NewMinioSink(export.MinioConfig{
			Endpoint:  a.cfg.Export.Endpoint,
			AccessKey: a.cfg.Export.AccessKey,
			SecretKey: a.cfg.Export.SecretKey,
			Bucket:    a.cfg.Export.Bucket,
			Region:    a.cfg.Export.Region,
			UseSSL:    a.cfg.Export.UseSSL,
		})
		if err != nil {
			return "", err
		}
		sink = minioSink
	}

	return export.NewExporter(sink, a.log).Export(ctx, app.Repairs, app.Equipment)
}

// Sync отправляет записи, сделанные без сети
func (a *App) Sync(ctx context.Context) (SyncResult, error) {
	app, err := a.ready(ctx, nil)
	if err != nil {
		return SyncResult{}, err
	}

	flushed, flushErr := app.Handle.Flush(ctx)
	pending, err := app.Handle.PendingCount(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Flushed: flushed, Pending: pending, Online: flushErr == nil}
	if flushErr != nil && !remote.IsTransient(flushErr) {
		return res, flushErr
	}
	return res, nil
}

func findEquipment(list []journal.Equipment, id string) (journal.Equipment, error) {
	var found []journal.Equipment
	for _, e := range list {
		if e.ID == id {
			return e, nil
		}
		if id != "" && strings.HasPrefix(e.ID, id) {
			found = append(found, e)
		}
	}
	return pick(found, "оборудование "+id)
}

func findRepair(list []journal.Repair, id string) (journal.Repair, error) {
	var found []journal.Repair
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
		if id != "" && strings.HasPrefix(r.ID, id) {
			found = append(found, r)
		}
	}
	return pick(found, "заявка "+id)
}

func pick[T any](found []T, what string) (T, error) {
	var zero T
	switch len(found) {
	case 0:
		return zero, fmt.Errorf("%s: %w", what, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return zero, fmt.Errorf("%s: %w", what, ErrAmbiguousID)
	}
}
