// cmd/client/cmd/auth/login.go
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
	"repairjournal/internal/app/client/auth"
	"repairjournal/internal/app/client/view"
	"repairjournal/internal/domain/identity"
)

const maxLoginAttempts = 3

var (
	loginRole     string
	loginName     string
	loginPassword string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в журнал",
	Long: `Вход под учетной записью из справочника пользователей.

Роль и имя можно передать флагами, иначе они выбираются из списка.
Ремонтные бригады входят без пароля. Сессия сохраняется локально
до выполнения journal auth logout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)
		if app == nil {
			return fmt.Errorf("приложение не инициализировано")
		}

		in := bufio.NewReader(os.Stdin)
		interactive := term.IsTerminal(int(os.Stdin.Fd()))

		role := identity.Role(loginRole)
		if role == "" {
			if !interactive {
				return fmt.Errorf("укажите роль флагом --role")
			}
			var err error
			if role, err = chooseRole(in); err != nil {
				return err
			}
		}
		if !role.Valid() {
			return fmt.Errorf("неизвестная роль %q", role)
		}

		name := loginName
		if name == "" {
			if !interactive {
				return fmt.Errorf("укажите пользователя флагом --name")
			}
			var err error
			if name, err = chooseName(in, app.Directory().Names(role)); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		flash := view.NewFlash(os.Stdout, auth.MessageTTL)
		defer flash.Stop()

		password := loginPassword
		for attempt := 1; ; attempt++ {
			if password == "" && !role.Passwordless() && interactive {
				fmt.Print("Пароль: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("ошибка чтения пароля: %w", err)
				}
				fmt.Println()
				password = string(raw)
			}

			sess, err := app.Login(ctx, role, name, password)
			if err == nil {
				fmt.Printf("✅ Вход выполнен: %s (%s)\n", sess.Name, sess.Role)
				return nil
			}

			var authErr *auth.Error
			if !errors.As(err, &authErr) || !interactive || attempt >= maxLoginAttempts {
				return err
			}
			flash.Show(err)
			password = ""
		}
	},
}

func chooseRole(in *bufio.Reader) (identity.Role, error) {
	roles := identity.Roles()
	labels := make([]string, 0, len(roles))
	for _, r := range roles {
		labels = append(labels, roleLabel(r))
	}

	i, err := choose(in, "Роль", labels)
	if err != nil {
		return "", err
	}
	return roles[i], nil
}

func chooseName(in *bufio.Reader, names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("в роли нет пользователей")
	}
	i, err := choose(in, "Пользователь", names)
	if err != nil {
		return "", err
	}
	return names[i], nil
}

func choose(in *bufio.Reader, title string, options []string) (int, error) {
	for i, opt := range options {
		fmt.Printf("  %d. %s\n", i+1, opt)
	}
	fmt.Printf("%s [1-%d]: ", title, len(options))

	line, err := in.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения ввода: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(options) {
		return 0, fmt.Errorf("нужно число от 1 до %d", len(options))
	}
	return n - 1, nil
}

func roleLabel(r identity.Role) string {
	switch r {
	case identity.RoleAdmin:
		return "Администратор"
	case identity.RoleAuthor:
		return "Автор заявок"
	case identity.RoleRepair:
		return "Ремонтная бригада"
	}
	return r.String()
}

func init() {
	LoginCmd.Flags().StringVar(&loginRole, "role", "", "роль: admin, author или repair")
	LoginCmd.Flags().StringVar(&loginName, "name", "", "имя пользователя из справочника")
	LoginCmd.Flags().StringVar(&loginPassword, "password", "", "пароль (по умолчанию запрашивается)")
}
