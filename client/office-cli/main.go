package main

import "AgentOffice/client/office-cli/cmd"

func main() {
	cmd.Execute()
}
