package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the action catalog",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all actions and their stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		actions, err := eng.models.AllActions(cmd.Context())
		if err != nil {
			return err
		}

		for _, a := range actions {
			state := " "
			if !a.Enabled {
				state = "disabled"
			}
			avg := 0.0
			if a.TotalPulls > 0 {
				avg = a.TotalReward / float64(a.TotalPulls)
			}
			fmt.Printf("%-20s %-12s pulls=%-5d avg_reward=%.2f %s\n", a.Name, a.Category, a.TotalPulls, avg, state)
		}
		return nil
	},
}

var actionsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable an action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActionEnabled(cmd, args[0], true)
	},
}

var actionsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable an action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActionEnabled(cmd, args[0], false)
	},
}

func setActionEnabled(cmd *cobra.Command, name string, enabled bool) error {
	eng, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.models.SetEnabled(cmd.Context(), name, enabled); err != nil {
		return err
	}
	fmt.Printf("Action %s %s.\n", name, map[bool]string{true: "enabled", false: "disabled"}[enabled])
	return nil
}

func init() {
	actionsCmd.AddCommand(actionsListCmd, actionsEnableCmd, actionsDisableCmd)
	rootCmd.AddCommand(actionsCmd)
}
