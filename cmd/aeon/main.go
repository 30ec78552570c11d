package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aeonplan/core/cmd/aeon/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "aeon",
		Short:         "Aeon board and timeline server",
		Long:          `Aeon serves a kanban board and a Gantt timeline per project, kept in memory and synced to Postgres in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewReplayCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
