package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	recommendCount int
	recommendJSON  bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest what to do next",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.close()

		recommendations, err := eng.agent.Recommend(cmd.Context(), recommendCount)
		if err != nil {
			return err
		}

		if recommendJSON {
			return json.NewEncoder(os.Stdout).Encode(recommendations)
		}

		if len(recommendations) == 0 {
			fmt.Println("No actions are enabled. Run 'lifeos actions list' to check the catalog.")
			return nil
		}

		for i, rec := range recommendations {
			fmt.Printf("%d. %s (confidence: %s)\n", i+1, strings.ReplaceAll(rec.Action.Name, "_", " "), rec.Confidence)
			fmt.Printf("   %s\n", rec.Explanation)
			fmt.Printf("   expected reward %.2f, uncertainty %.2f  [#%d]\n", rec.ExpectedReward, rec.Uncertainty, rec.ID)
			if i == 0 && len(rec.Similar) > 0 {
				fmt.Println("   similar past experiences:")
				for _, s := range rec.Similar {
					fmt.Printf("     - %s (outcome %.2f, similarity %.2f)\n", s.Description, s.Outcome, s.Similarity)
				}
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendCount, "count", "n", 3, "number of recommendations")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(recommendCmd)
}
