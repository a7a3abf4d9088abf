package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
	"repairjournal/internal/app/client/session"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из журнала",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		if err := app.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}
		fmt.Println("Сессия завершена")
		return nil
	},
}

var WhoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Показать текущего пользователя",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		sess, err := app.WhoAmI(cmd.Context())
		if errors.Is(err, session.ErrNoSession) {
			fmt.Println("Вход не выполнен")
			return nil
		}
		if err != nil {
			return err
		}

		p := sess.Permissions
		fmt.Printf("%s (%s)\n", sess.Name, roleLabel(sess.Role))
		fmt.Printf("  добавление: %s, выполнение: %s, удаление: %s, выгрузка: %s\n",
			yesNo(p.CanAdd), yesNo(p.CanComplete), yesNo(p.CanDelete), yesNo(p.CanExport))
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}
