package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run daily maintenance: backfill rewards and refresh the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.agent.Maintenance(cmd.Context(), time.Now()); err != nil {
			return err
		}
		fmt.Println("Maintenance complete.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(maintainCmd)
}
