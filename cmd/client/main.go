package main

import "repairjournal/cmd/client/cmd"

func main() {
	cmd.Execute()
}
