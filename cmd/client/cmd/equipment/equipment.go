// cmd/client/cmd/equipment/equipment.go
package equipment

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repairjournal/cmd/client/cmd/types"
	"repairjournal/internal/app/client"
	"repairjournal/internal/app/client/view"
)

// EquipmentCmd - родительская команда справочника оборудования
var EquipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Оборудование",
}

var (
	name     string
	location string
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Добавить оборудование",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		e, err := app.AddEquipment(cmd.Context(), name, location)
		if err != nil {
			return fmt.Errorf("ошибка добавления оборудования: %w", err)
		}
		fmt.Printf("✅ Оборудование добавлено: %s\n", e.ID)
		return nil
	},
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список оборудования",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		list, err := app.ListEquipment(cmd.Context())
		if err != nil {
			return err
		}
		return view.NewTableRenderer(os.Stdout).RenderEquipment(list)
	},
}

func init() {
	AddCmd.Flags().StringVarP(&name, "name", "n", "", "название")
	AddCmd.Flags().StringVarP(&location, "location", "l", "", "место установки")
	_ = AddCmd.MarkFlagRequired("name")
}
