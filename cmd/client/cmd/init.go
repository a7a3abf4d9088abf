// cmd/client/cmd/init.go
package cmd

import (
	"repairjournal/cmd/client/cmd/auth"
	"repairjournal/cmd/client/cmd/equipment"
	"repairjournal/cmd/client/cmd/journal"
	"repairjournal/cmd/client/cmd/repair"
)

func init() {
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.WhoAmICmd)

	rootCmd.AddCommand(journal.ShowCmd)
	rootCmd.AddCommand(journal.WatchCmd)
	rootCmd.AddCommand(journal.SyncCmd)
	rootCmd.AddCommand(journal.ServeCmd)

	rootCmd.AddCommand(repair.RepairCmd)
	repair.RepairCmd.AddCommand(repair.AddCmd)
	repair.RepairCmd.AddCommand(repair.CompleteCmd)
	repair.RepairCmd.AddCommand(repair.DeleteCmd)
	repair.RepairCmd.AddCommand(repair.ExportCmd)

	rootCmd.AddCommand(equipment.EquipmentCmd)
	equipment.EquipmentCmd.AddCommand(equipment.AddCmd)
	equipment.EquipmentCmd.AddCommand(equipment.ListCmd)
}
