package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completeOutcome float64

var completeCmd = &cobra.Command{
	Use:   "complete <event-type> <description>",
	Short: "Log a finished activity so the engine can learn from it",
	Long: `Log a finished activity. Known event types (study_session, workout,
checkin, skill_practice, assignment_completed, break, weekly_review) also
train the matching action's model; anything else is remembered only.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if completeOutcome < 0 || completeOutcome > 1 {
			return fmt.Errorf("outcome must be in [0,1], got %g", completeOutcome)
		}

		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		eventID, err := eng.agent.RecordCompleted(cmd.Context(), args[0], args[1], completeOutcome, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Logged event %s.\n", eventID)
		return nil
	},
}

func init() {
	completeCmd.Flags().Float64Var(&completeOutcome, "outcome", 0.8, "how it went, 0 to 1")
	rootCmd.AddCommand(completeCmd)
}
