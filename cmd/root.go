package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "quant-platform",
	Short:        "Market-data job scheduler and admin API",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(migrateCmd)
}
