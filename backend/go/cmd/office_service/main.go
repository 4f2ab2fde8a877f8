package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "backend/go/internal/config/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "office_service",
	Short: "State and notification backend of the agent office dashboard",
}

func main() {
	rootCmd.AddCommand(newServeCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
