// cmd/client/cmd/journal/journal.go
package journal

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
	"repairjournal/internal/app/client/bootstrap"
	"repairjournal/internal/app/client/view"
)

var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Показать журнал",
	Long: `Загрузка оборудования и заявок с выводом таблиц.

Если запуск не удался после всех попыток, в терминале можно повторить
загрузку нажатием Enter.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		_, err := app.Start(cmd.Context(), true)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bootstrap.ErrUnauthenticated):
			// подсказка о входе уже выведена
			return nil
		case errors.Is(err, bootstrap.ErrBootstrapExhausted) && term.IsTerminal(int(os.Stdin.Fd())):
			if err := app.Panel().PromptReload(cmd.Context(), os.Stdin); err != nil && !errors.Is(err, view.ErrNoReload) {
				return err
			}
			return nil
		default:
			return err
		}
	},
}

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Следить за журналом",
	Long:  `Вывод журнала с перерисовкой при каждом изменении на сервере. Завершение по Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Watch(ctx); err != nil && !errors.Is(err, bootstrap.ErrUnauthenticated) {
			return err
		}
		return nil
	},
}

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Отправить отложенные изменения",
	Long:  `Отправка на сервер записей, сделанных без сети.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		res, err := app.Sync(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}

		if !res.Online {
			fmt.Printf("⚠️  Сервер недоступен, в очереди: %d\n", res.Pending)
			return nil
		}
		fmt.Printf("✓ Отправлено: %d, в очереди: %d\n", res.Flushed, res.Pending)
		return nil
	},
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить офлайн-кэш веб-клиента",
	Long: `Локальный прокси перед сервером журнала: оболочка веб-клиента
кэшируется при установке и отдается из кэша, когда сеть недоступна.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.Serve(ctx)
	},
}
