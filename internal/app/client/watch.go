package client

import (
	"context"

	"golang.org/x/exp/slog"

	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/app/client/remote"
	"repairjournal/internal/domain/document"
	"repairjournal/internal/domain/journal"
)

// Watch выводит журнал и перерисовывает его при каждом изменении коллекций до отмены ctx
func (a *App) Watch(ctx context.Context) error {
	app, err := a.Start(ctx, true)
	if err != nil {
		return err
	}
	if app.Handle == nil {
		return ErrOffline
	}

	// подписки отдают начальный снимок сразу, поэтому первая отрисовка повторяется
	rerender := func(update func(app *bootstrap.AppContext)) {
		a.mu.Lock()
		defer a.mu.Unlock()
		update(app)
		if err := a.renderer.renderer.Render(ctx, app); err != nil {
			a.log.Warn("render failed", slog.String("error", err.Error()))
		}
	}

	stopEquipment, err := app.Handle.Subscribe(ctx, document.CollectionEquipment, func(s remote.Snapshot) {
		rerender(func(app *bootstrap.AppContext) {
			app.Equipment = journal.DecodeEquipment(s.Documents, a.log)
		})
	})
	if err != nil {
		return err
	}
	defer stopEquipment()

	stopRepairs, err := app.Handle.Subscribe(ctx, document.CollectionRepairs, func(s remote.Snapshot) {
		rerender(func(app *bootstrap.AppContext) {
			app.Repairs = journal.DecodeRepairs(s.Documents, a.log)
			app.FromCache = s.FromCache
		})
	})
	if err != nil {
		return err
	}
	defer stopRepairs()

	<-ctx.Done()
	return nil
}
