package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/breaking-byts/lifeos/core/agent"
)

var (
	feedbackAccepted bool
	feedbackScore    int
	feedbackOutcome  float64
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <recommendation-id>",
	Short: "Record how a recommendation went",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid recommendation id %q", args[0])
		}

		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		fb := agent.Feedback{
			RecommendationID: id,
			Accepted:         feedbackAccepted,
		}
		if cmd.Flags().Changed("score") {
			fb.FeedbackScore = &feedbackScore
		}
		if cmd.Flags().Changed("outcome") {
			if feedbackOutcome < 0 || feedbackOutcome > 1 {
				return fmt.Errorf("outcome must be in [0,1], got %g", feedbackOutcome)
			}
			fb.OutcomeScore = &feedbackOutcome
		}

		if err := eng.agent.RecordFeedback(cmd.Context(), fb); err != nil {
			return err
		}
		fmt.Println("Feedback recorded.")
		return nil
	},
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackAccepted, "accepted", false, "the recommendation was followed")
	feedbackCmd.Flags().IntVar(&feedbackScore, "score", 0, "quick reaction: -1, 0, or 1")
	feedbackCmd.Flags().Float64Var(&feedbackOutcome, "outcome", 0, "how it went, 0 to 1")
	rootCmd.AddCommand(feedbackCmd)
}
