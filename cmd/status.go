package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the engine has learned so far",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		status, err := eng.agent.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("training samples:  %d\n", status.TotalSamples)
		fmt.Printf("memory events:     %d\n", status.MemoryEvents)
		fmt.Printf("7-day acceptance:  %.0f%%\n", status.AvgAccuracy*100)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
