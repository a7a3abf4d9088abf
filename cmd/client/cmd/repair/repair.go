// cmd/client/cmd/repair/repair.go
package repair

import (
	"fmt"

	"github.com/spf13/cobra"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
)

// RepairCmd - родительская команда для операций с заявками на ремонт
var RepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Заявки на ремонт",
	Long: `Создание, выполнение, удаление и выгрузка заявок.

Заявку и оборудование можно указать началом идентификатора,
если он однозначен.`,
}

var (
	equipmentID string
	description string
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить заявку",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		r, err := app.AddRepair(cmd.Context(), equipmentID, description)
		if err != nil {
			return fmt.Errorf("ошибка создания заявки: %w", err)
		}
		fmt.Printf("✅ Заявка создана: %s\n", r.ID)
		return nil
	},
}

var CompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Отметить заявку выполненной",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		r, err := app.CompleteRepair(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка выполнения заявки: %w", err)
		}
		fmt.Printf("✅ Заявка %s выполнена: %s\n", r.ID, r.CompletedBy)
		return nil
	},
}

var DeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить заявку",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		if err := app.DeleteRepair(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка удаления заявки: %w", err)
		}
		fmt.Println("✅ Заявка удалена")
		return nil
	},
}

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Выгрузить заявки в CSV",
	Long:  `Выгрузка в бакет, если он указан в настройках export, иначе в локальный каталог выгрузок.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		location, err := app.Export(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка выгрузки: %w", err)
		}
		fmt.Printf("✅ Выгружено: %s\n", location)
		return nil
	},
}

func init() {
	AddCmd.Flags().StringVarP(&equipmentID, "equipment", "e", "", "id оборудования")
	AddCmd.Flags().StringVarP(&description, "description", "d", "", "описание неисправности")
	_ = AddCmd.MarkFlagRequired("equipment")
	_ = AddCmd.MarkFlagRequired("description")
}
